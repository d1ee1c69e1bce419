// Package cachebuilder turns a downloaded, verified master index into
// the solver-ready binary cache under the repository's solv directory.
// It dispatches to the parser matching the repository's probed type,
// normalizes each parser's native package records into pkg/solv's
// reduced Package shape, and writes the cache plus its freshness
// cookie atomically.
package cachebuilder

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"

	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/freshness"
	"github.com/repocore/reposync/pkg/fsutil"
	"github.com/repocore/reposync/pkg/layout"
	"github.com/repocore/reposync/pkg/media"
	"github.com/repocore/reposync/pkg/model"
	"github.com/repocore/reposync/pkg/parser/rpmplaindir"
	"github.com/repocore/reposync/pkg/parser/yast2"
	"github.com/repocore/reposync/pkg/parser/yum"
	"github.com/repocore/reposync/pkg/solv"
)

// Builder constructs solver caches for one cache root.
type Builder struct {
	Layout layout.Layout
	Media  media.Provider
}

// New returns a Builder rooted at l.
func New(l layout.Layout, m media.Provider) *Builder {
	return &Builder{Layout: l, Media: m}
}

// Result is what a successful Build produces: the cache's freshness
// cookie plus whatever metadata the build observed about the
// repository itself rather than its packages (currently only whether
// a YaST2 license file was found).
type Result struct {
	Cookie     model.Cookie
	HasLicense bool
}

// Build rebuilds alias's solver cache from the metadata already staged
// at metadataPath (the Outcome.MetadataPath produced by pkg/downloader)
// and returns the cookie to record for future freshness comparisons.
func (b *Builder) Build(ctx context.Context, repo model.RepoInfo, metadataPath, baseURL string) (Result, error) {
	dir := b.Layout.SolvRepoDir(repo.Alias)
	if err := fsutil.EnsureDir(dir); err != nil {
		return Result{}, errors.Wrap(errors.KindIoFailed, "cachebuilder.Build", err)
	}

	var pkgs []solv.Package
	var hasLicense bool
	var err error

	switch repo.Type {
	case model.RepoTypeRPMMD:
		pkgs, err = b.buildRPMMD(ctx, metadataPath, baseURL)
	case model.RepoTypeYaST2:
		pkgs, hasLicense, err = b.buildYaST2(ctx, metadataPath, baseURL)
	case model.RepoTypePlainDir:
		pkgs, err = buildPlainDir(metadataPath)
	default:
		return Result{}, errors.New(errors.KindRepoUnknownType, "cachebuilder.Build", string(repo.Type))
	}
	if err != nil {
		return Result{}, err
	}

	cache := &solv.Cache{Alias: repo.Alias, Priority: repo.Priority, Packages: pkgs}
	cachePath := filepath.Join(dir, "solv")
	if err := solv.Write(cachePath, cache); err != nil {
		return Result{}, err
	}

	cookie, err := freshness.CookieFromFile(metadataPath)
	if err != nil {
		return Result{}, err
	}
	if err := writeCookie(b.Layout.SolvCookiePath(repo.Alias), cookie); err != nil {
		return Result{}, err
	}
	return Result{Cookie: cookie, HasLicense: hasLicense}, nil
}

// buildRPMMD parses repomd.xml (already downloaded to metadataPath) and
// fetches+decompresses primary.xml to extract package records.
func (b *Builder) buildRPMMD(ctx context.Context, metadataPath, baseURL string) ([]solv.Package, error) {
	f, err := os.Open(metadataPath)
	if err != nil {
		return nil, errors.Wrap(errors.KindIoFailed, "cachebuilder.buildRPMMD", err)
	}
	rm, err := yum.ParseRepomd(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}

	primaryData := rm.ByType("primary")
	if primaryData == nil {
		return nil, errors.New(errors.KindCacheCorrupted, "cachebuilder.buildRPMMD", "repomd.xml has no primary section")
	}

	h, err := b.Media.Open(ctx, baseURL, primaryData.Location.Href)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, "cachebuilder.buildRPMMD", err)
	}
	defer func() { _ = h.Close() }()

	decomp, err := yum.Decompress(primaryData.Location.Href, h.Body)
	if err != nil {
		return nil, err
	}

	primary, err := yum.ParsePrimary(decomp)
	if err != nil {
		return nil, err
	}

	pkgs := make([]solv.Package, 0, len(primary.Packages))
	for _, p := range primary.Packages {
		provides := make([]string, 0, len(p.Format.Provides))
		for _, e := range p.Format.Provides {
			provides = append(provides, e.Name)
		}
		requires := make([]string, 0, len(p.Format.Requires))
		for _, e := range p.Format.Requires {
			requires = append(requires, e.Name)
		}
		pkgs = append(pkgs, solv.Package{
			Name:     p.Name,
			Epoch:    p.Version.Epoch,
			Version:  p.Version.Ver,
			Release:  p.Version.Rel,
			Arch:     p.Arch,
			License:  p.Format.License,
			Provides: provides,
			Requires: requires,
			Location: p.Location.Href,
		})
	}
	return pkgs, nil
}

// licenseCandidates are the paths zypp checks, in order, to decide
// whether a YaST2 repository requires interactive license acceptance.
var licenseCandidates = []string{"media.1/license.zip", "license.txt"}

// buildYaST2 parses content, follows its DESCRDIR entries, and reads
// each packages descriptor found there. It also probes for a license
// file so the caller can record RepoInfo.HasLicense.
func (b *Builder) buildYaST2(ctx context.Context, metadataPath, baseURL string) ([]solv.Package, bool, error) {
	f, err := os.Open(metadataPath)
	if err != nil {
		return nil, false, errors.Wrap(errors.KindIoFailed, "cachebuilder.buildYaST2", err)
	}
	content, err := yast2.ParseContent(f)
	_ = f.Close()
	if err != nil {
		return nil, false, err
	}

	var pkgs []solv.Package
	for _, descr := range content.DescrDirs {
		h, err := b.Media.Open(ctx, baseURL, descr+"/packages")
		if err != nil {
			continue // some DESCRDIR entries are locale-only, without a packages file
		}
		r := h.Body
		if isGzipPath(descr) {
			gr, gErr := gzip.NewReader(r)
			if gErr == nil {
				r = gr
			}
		}
		list, err := yast2.ParsePackages(r)
		_ = h.Close()
		if err != nil {
			continue
		}
		for _, e := range list.Entries {
			pkgs = append(pkgs, solv.Package{
				Name:     e.Name,
				Version:  e.Version,
				Release:  e.Release,
				Arch:     e.Arch,
				Location: e.Location,
			})
		}
	}

	return pkgs, b.probeLicense(ctx, baseURL), nil
}

func (b *Builder) probeLicense(ctx context.Context, baseURL string) bool {
	for _, candidate := range licenseCandidates {
		h, err := b.Media.Open(ctx, baseURL, candidate)
		if err == nil {
			_ = h.Close()
			return true
		}
	}
	return false
}

// buildPlainDir enumerates the loose RPM files under metadataPath,
// which for RPMPLAINDIR repositories is the repository's base
// directory itself rather than a downloaded index file.
func buildPlainDir(dirPath string) ([]solv.Package, error) {
	entries, err := rpmplaindir.Scan(filepath.Dir(dirPath))
	if err != nil {
		return nil, err
	}
	pkgs := make([]solv.Package, 0, len(entries))
	for _, e := range entries {
		pkgs = append(pkgs, solv.Package{
			Name:     e.Name,
			Version:  e.Version,
			Release:  e.Release,
			Arch:     e.Architecture,
			License:  e.License,
			Provides: e.Provides,
			Requires: e.Requires,
			Location: e.Path,
		})
	}
	return pkgs, nil
}

func isGzipPath(p string) bool {
	return filepath.Ext(p) == ".gz"
}

// writeCookie writes c's checksum to path via a temp-file-then-rename,
// the same atomicity Write gives the solv cache itself, so a failure
// between the cache write and the cookie write never leaves a cookie
// that doesn't correspond to the cache it's meant to anchor.
func writeCookie(path string, c model.Cookie) error {
	if err := fsutil.EnsureFileDir(path); err != nil {
		return errors.Wrap(errors.KindIoFailed, "cachebuilder.writeCookie", err)
	}

	tmpPath := path + ".new"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(errors.KindIoFailed, "cachebuilder.writeCookie", err)
	}
	if _, err := f.WriteString(c.Checksum); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.KindIoFailed, "cachebuilder.writeCookie", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.KindIoFailed, "cachebuilder.writeCookie", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.KindIoFailed, "cachebuilder.writeCookie", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.KindIoFailed, "cachebuilder.writeCookie", err)
	}
	return nil
}

// ReadCookie loads a previously written cookie, returning an empty
// Cookie (never an error) if none has been built yet.
func ReadCookie(path string) model.Cookie {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Cookie{}
	}
	return model.Cookie{Checksum: string(data)}
}
