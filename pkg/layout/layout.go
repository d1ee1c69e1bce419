// Package layout computes the on-disk paths every other reposync
// component reads from or writes to. Centralizing the path formulas
// here means pkg/registry, pkg/downloader, and pkg/cachebuilder never
// hardcode a join of "raw" or "solv" themselves; they all ask Layout.
package layout

import (
	"path/filepath"
)

// Layout resolves every path under a single cache root the way the
// teacher's config package resolves GetIndexDir/GetArtifactCacheDir
// under a single CacheDir.
type Layout struct {
	CacheRoot string
}

// New returns a Layout rooted at cacheRoot. cacheRoot should already be
// an absolute, cleaned path; callers resolve that once in pkg/config.
func New(cacheRoot string) Layout {
	return Layout{CacheRoot: cacheRoot}
}

// KnownReposDir is where .repo registry files live.
func (l Layout) KnownReposDir() string {
	return filepath.Join(l.CacheRoot, "repos.d")
}

// KnownServicesDir is where .service registry files live.
func (l Layout) KnownServicesDir() string {
	return filepath.Join(l.CacheRoot, "services.d")
}

// ServicePluginsDir is where plugin-service executables are discovered.
func (l Layout) ServicePluginsDir() string {
	return filepath.Join(l.CacheRoot, "services.d", "plugins")
}

// PubkeyCacheDir is where imported and yet-untrusted GPG keys are
// cached between runs, keyed by key id.
func (l Layout) PubkeyCacheDir() string {
	return filepath.Join(l.CacheRoot, "pubkeys.d")
}

// RawDir is the root of downloaded-but-not-yet-parsed metadata, one
// subdirectory per repository alias.
func (l Layout) RawDir() string {
	return filepath.Join(l.CacheRoot, "raw")
}

// RawRepoDir returns the raw metadata directory for a single alias.
func (l Layout) RawRepoDir(alias string) string {
	return filepath.Join(l.RawDir(), alias)
}

// SolvDir is the root of solver-ready binary caches, one subdirectory
// per repository alias.
func (l Layout) SolvDir() string {
	return filepath.Join(l.CacheRoot, "solv")
}

// SolvRepoDir returns the solver cache directory for a single alias.
func (l Layout) SolvRepoDir(alias string) string {
	return filepath.Join(l.SolvDir(), alias)
}

// SolvCookiePath is where a built cache's freshness cookie is recorded,
// compared against the freshly probed RepoStatus on every refresh to
// decide whether a rebuild is necessary.
func (l Layout) SolvCookiePath(alias string) string {
	return filepath.Join(l.SolvRepoDir(alias), "cookie")
}

// MetadataLockPath is the process-wide metadata lock file.
func (l Layout) MetadataLockPath() string {
	return filepath.Join(l.CacheRoot, ".metadata.lock")
}

// RepoFilePath returns the path a repository with the given alias would
// be written to when added as a freestanding (non-service-owned) entry.
func (l Layout) RepoFilePath(alias string) string {
	return filepath.Join(l.KnownReposDir(), alias+".repo")
}

// ServiceFilePath returns the path of the .service file for alias.
func (l Layout) ServiceFilePath(alias string) string {
	return filepath.Join(l.KnownServicesDir(), alias+".service")
}
