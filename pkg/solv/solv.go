// Package solv writes and reads the solver-ready binary cache that
// pkg/cachebuilder produces from parsed repository metadata. The wire
// format is a gob-encoded Cache value; no third-party serialization
// library in the retrieved pack targets a solver-pool binary cache
// format, so this is the one place reposync falls back to the standard
// library's encoding/gob rather than an ecosystem codec (see DESIGN.md).
package solv

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/repocore/reposync/pkg/errors"
)

// Package is one solver-visible package record, reduced from whichever
// parser (yum, yast2, rpmplaindir) produced it to the fields the
// out-of-scope solver pool needs to resolve dependencies.
type Package struct {
	Name     string
	Epoch    string
	Version  string
	Release  string
	Arch     string
	License  string
	Provides []string
	Requires []string
	Location string
}

// Cache is the solver-ready binary cache for one repository.
type Cache struct {
	Alias    string
	Priority uint
	Packages []Package
}

// Write serializes c into a "solv.new" sibling of path, fsyncs it, and
// atomically renames it over path. On any failure the temp file is
// removed and path is left exactly as it was, so a disk-full or
// cancelled build never leaves a half-written cache at the path future
// reads use.
func Write(path string, c *Cache) error {
	tmpPath := filepath.Join(filepath.Dir(path), "solv.new")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(errors.KindIoFailed, "solv.Write", err)
	}

	if err := gob.NewEncoder(f).Encode(c); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.KindIoFailed, "solv.Write", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.KindIoFailed, "solv.Write", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.KindIoFailed, "solv.Write", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(errors.KindIoFailed, "solv.Write", err)
	}
	return nil
}

// Read deserializes a Cache previously written by Write.
func Read(path string) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.KindRepoNotCached, "solv.Read", path)
		}
		return nil, errors.Wrap(errors.KindIoFailed, "solv.Read", err)
	}
	defer func() { _ = f.Close() }()

	var c Cache
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, errors.Wrap(errors.KindCacheCorrupted, "solv.Read", err)
	}
	return &c, nil
}
