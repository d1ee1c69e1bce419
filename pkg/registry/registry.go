// Package registry persists RepoInfo and ServiceInfo as INI-style
// `.repo`/`.service` files under the known-repos and known-services
// directories. It owns the file-level reconciliation invariant: adding
// an alias always creates a new file; removing the last alias left in
// a file deletes that file; removing one of several aliases sharing a
// file rewrites the file without it; and a filename collision is
// resolved by appending the smallest `_N` suffix that is free.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/fsutil"
	"github.com/repocore/reposync/pkg/model"
)

// Codec converts between a section and a typed entry. RepoCodec and
// ServiceCodec are the two implementations; both registries share the
// same file-reconciliation machinery below them.
type Codec[T any] interface {
	Alias(T) string
	Encode(T) *section
	Decode(*section) (T, error)
}

// Registry manages one directory of INI files holding entries of type T.
type Registry[T any] struct {
	dir   string
	ext   string
	codec Codec[T]
}

// New returns a Registry rooted at dir, writing files with the given
// extension (".repo" or ".service").
func New[T any](dir, ext string, codec Codec[T]) *Registry[T] {
	return &Registry[T]{dir: dir, ext: ext, codec: codec}
}

// entryFile tracks which file an alias was loaded from, so remove/update
// know which file to rewrite or delete.
type entryFile struct {
	path     string
	sections []*section
}

// Load reads every file in the registry directory and returns the
// decoded entries keyed by alias, alongside the source-file bookkeeping
// Remove/Update need.
func (r *Registry[T]) Load() (map[string]T, map[string]*entryFile, error) {
	entries := map[string]T{}
	fileOf := map[string]*entryFile{}

	dirEntries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, fileOf, nil
		}
		return nil, nil, errors.Wrap(errors.KindIoFailed, "registry.Load", err)
	}

	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), r.ext) {
			continue
		}
		path := filepath.Join(r.dir, de.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, errors.Wrap(errors.KindIoFailed, "registry.Load", err)
		}
		sections, err := parseINI(f)
		_ = f.Close()
		if err != nil {
			return nil, nil, errors.Wrap(errors.KindCacheCorrupted, "registry.Load", err)
		}

		ef := &entryFile{path: path, sections: sections}
		for _, s := range sections {
			entry, err := r.codec.Decode(s)
			if err != nil {
				return nil, nil, errors.Wrap(errors.KindCacheCorrupted, "registry.Load", err)
			}
			alias := r.codec.Alias(entry)
			entries[alias] = entry
			fileOf[alias] = ef
		}
	}

	return entries, fileOf, nil
}

// Add writes a brand new file for entry, resolving a name collision by
// appending the smallest free "_N" suffix to the alias's filename.
func (r *Registry[T]) Add(entry T) (string, error) {
	if err := fsutil.EnsureDir(r.dir); err != nil {
		return "", errors.Wrap(errors.KindIoFailed, "registry.Add", err)
	}

	alias := r.codec.Alias(entry)
	path := r.freeFilePath(alias)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fsutil.FileModeDefault)
	if err != nil {
		return "", errors.Wrap(errors.KindIoFailed, "registry.Add", err)
	}
	defer func() { _ = f.Close() }()

	if err := writeINI(f, []*section{r.codec.Encode(entry)}); err != nil {
		return "", errors.Wrap(errors.KindIoFailed, "registry.Add", err)
	}
	return path, nil
}

// freeFilePath returns alias.ext under dir, or alias_N.ext for the
// smallest N >= 1 that does not already exist.
func (r *Registry[T]) freeFilePath(alias string) string {
	base := filepath.Join(r.dir, alias+r.ext)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return base
	}
	for n := 1; ; n++ {
		candidate := filepath.Join(r.dir, fmt.Sprintf("%s_%d%s", alias, n, r.ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// Remove deletes entry's section from its source file, per the ledger
// returned by Load. If it was the only section in that file, the file
// itself is deleted; otherwise the file is rewritten without it.
func (r *Registry[T]) Remove(alias string, fileOf map[string]*entryFile) error {
	ef, ok := fileOf[alias]
	if !ok {
		return errors.New(errors.KindNotFound, "registry.Remove", alias)
	}

	remaining := ef.sections[:0:0]
	for _, s := range ef.sections {
		if s.alias != alias {
			remaining = append(remaining, s)
		}
	}

	if len(remaining) == 0 {
		if err := os.Remove(ef.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(errors.KindIoFailed, "registry.Remove", err)
		}
		return nil
	}

	f, err := os.OpenFile(ef.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(errors.KindIoFailed, "registry.Remove", err)
	}
	defer func() { _ = f.Close() }()

	if err := writeINI(f, remaining); err != nil {
		return errors.Wrap(errors.KindIoFailed, "registry.Remove", err)
	}
	return nil
}

// Update rewrites entry's section in place within its source file,
// preserving every other section and the file's sibling order.
func (r *Registry[T]) Update(entry T, fileOf map[string]*entryFile) error {
	alias := r.codec.Alias(entry)
	ef, ok := fileOf[alias]
	if !ok {
		return errors.New(errors.KindNotFound, "registry.Update", alias)
	}

	newSections := make([]*section, len(ef.sections))
	for i, s := range ef.sections {
		if s.alias == alias {
			newSections[i] = r.codec.Encode(entry)
		} else {
			newSections[i] = s
		}
	}

	f, err := os.OpenFile(ef.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(errors.KindIoFailed, "registry.Update", err)
	}
	defer func() { _ = f.Close() }()

	if err := writeINI(f, newSections); err != nil {
		return errors.Wrap(errors.KindIoFailed, "registry.Update", err)
	}
	ef.sections = newSections
	return nil
}

// RepoCodec implements Codec[model.RepoInfo] for .repo files.
type RepoCodec struct{}

// Alias implements Codec.
func (RepoCodec) Alias(r model.RepoInfo) string { return r.Alias }

// Encode implements Codec.
func (RepoCodec) Encode(r model.RepoInfo) *section {
	s := newSection(r.Alias)
	s.set("name", r.Name)
	s.set("enabled", boolStr(r.Enabled))
	s.set("autorefresh", boolStr(r.Autorefresh))
	s.set("baseurl", strings.Join(r.BaseURLs, " "))
	if r.MirrorListURL != "" {
		s.set("mirrorlist", r.MirrorListURL)
	}
	if r.Path != "" {
		s.set("path", r.Path)
	}
	s.set("type", string(r.Type))
	s.set("priority", strconv.FormatUint(uint64(r.Priority), 10))
	s.set("gpgcheck", boolStr(r.GPGCheck))
	if r.GPGCheckRepo != nil {
		s.set("repo_gpgcheck", boolStr(*r.GPGCheckRepo))
	}
	s.set("pkg_gpgcheck", boolStr(r.PkgGPGCheck))
	if len(r.GPGKeyURLs) > 0 {
		s.set("gpgkey", strings.Join(r.GPGKeyURLs, " "))
	}
	// keeppackages is only written when the caller has pinned it
	// explicitly; an absent key means Decode re-derives it from the
	// base URL's scheme on every load, matching the recomputation
	// repo_seting_test exercises across successive setBaseUrl calls.
	if r.KeepPackagesExplicit {
		s.set("keeppackages", boolStr(r.KeepPackages))
	}
	if r.KeepInactive {
		s.set("keepinactive", boolStr(r.KeepInactive))
	}
	if r.Service != "" {
		s.set("service", r.Service)
	}
	return s
}

// Decode implements Codec.
func (RepoCodec) Decode(s *section) (model.RepoInfo, error) {
	r := model.RepoInfo{Alias: s.alias}
	r.Name, _ = s.get("name")
	r.Enabled = getBool(s, "enabled", true)
	r.Autorefresh = getBool(s, "autorefresh", false)
	if v, ok := s.get("baseurl"); ok && v != "" {
		r.BaseURLs = strings.Fields(v)
	}
	r.MirrorListURL, _ = s.get("mirrorlist")
	r.Path, _ = s.get("path")
	if v, ok := s.get("type"); ok {
		r.Type = model.RepoType(v)
	}
	if v, ok := s.get("priority"); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			r.Priority = uint(n)
		}
	}
	r.GPGCheck = getBool(s, "gpgcheck", true)
	if v, ok := s.get("repo_gpgcheck"); ok {
		b := v == "1" || strings.EqualFold(v, "true")
		r.GPGCheckRepo = &b
	}
	r.PkgGPGCheck = getBool(s, "pkg_gpgcheck", false)
	if v, ok := s.get("gpgkey"); ok && v != "" {
		r.GPGKeyURLs = strings.Fields(v)
	}
	if v, ok := s.get("keeppackages"); ok {
		r.KeepPackagesExplicit = true
		r.KeepPackages = v == "1" || strings.EqualFold(v, "true")
	} else if len(r.BaseURLs) > 0 {
		r.KeepPackages = model.DeriveKeepPackages(r.BaseURLs[0])
	}
	r.KeepInactive = getBool(s, "keepinactive", false)
	r.Service, _ = s.get("service")
	return r, nil
}

// ServiceCodec implements Codec[model.ServiceInfo] for .service files.
type ServiceCodec struct{}

// Alias implements Codec.
func (ServiceCodec) Alias(s model.ServiceInfo) string { return s.Alias }

// Encode implements Codec.
func (ServiceCodec) Encode(svc model.ServiceInfo) *section {
	s := newSection(svc.Alias)
	s.set("name", svc.Name)
	s.set("url", svc.URL)
	s.set("enabled", boolStr(svc.Enabled))
	s.set("autorefresh", boolStr(svc.Autorefresh))
	s.set("type", string(svc.Type))
	if svc.TTL > 0 {
		s.set("ttl_in_seconds", strconv.FormatInt(int64(svc.TTL.Seconds()), 10))
	}
	if !svc.LastRefresh.IsZero() {
		s.set("lrf_dirty", "0")
	}
	if len(svc.ReposToEnable) > 0 {
		s.set("repos_to_enable", strings.Join(svc.ReposToEnable, " "))
	}
	if len(svc.ReposToDisable) > 0 {
		s.set("repos_to_disable", strings.Join(svc.ReposToDisable, " "))
	}
	return s
}

// Decode implements Codec.
func (ServiceCodec) Decode(s *section) (model.ServiceInfo, error) {
	svc := model.ServiceInfo{Alias: s.alias}
	svc.Name, _ = s.get("name")
	svc.URL, _ = s.get("url")
	svc.Enabled = getBool(s, "enabled", true)
	svc.Autorefresh = getBool(s, "autorefresh", true)
	if v, ok := s.get("type"); ok {
		svc.Type = model.ServiceType(v)
	} else {
		svc.Type = model.ServiceTypeRepoIndex
	}
	if v, ok := s.get("ttl_in_seconds"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			svc.TTL = time.Duration(n) * time.Second
		}
	}
	if v, ok := s.get("repos_to_enable"); ok && v != "" {
		svc.ReposToEnable = strings.Fields(v)
	}
	if v, ok := s.get("repos_to_disable"); ok && v != "" {
		svc.ReposToDisable = strings.Fields(v)
	}
	return svc, nil
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func getBool(s *section, key string, def bool) bool {
	v, ok := s.get(key)
	if !ok || v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true")
}

// SortedAliases returns m's keys sorted for stable CLI listing order.
func SortedAliases[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
