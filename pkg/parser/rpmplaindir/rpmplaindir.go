// Package rpmplaindir builds repository metadata for a plain directory
// of loose RPM files that publishes no repomd.xml or content index: it
// enumerates *.rpm directly and reads each one's header with
// github.com/sassoftware/go-rpmutils, the same library and tag-access
// pattern the pack's RPM generator uses on the write side.
package rpmplaindir

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sassoftware/go-rpmutils"

	"github.com/repocore/reposync/pkg/errors"
)

// Entry describes one loose RPM file discovered under a plain directory.
type Entry struct {
	Path         string
	Name         string
	Version      string
	Release      string
	Architecture string
	License      string
	Requires     []string
	Provides     []string
}

// Scan enumerates *.rpm files directly under dir (RPMPLAINDIR never
// recurses into subdirectories, matching zypp's plaindir semantics) and
// reads each one's header.
func Scan(dir string) ([]Entry, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "*.rpm")
	if err != nil {
		return nil, errors.Wrap(errors.KindIoFailed, "rpmplaindir.Scan", err)
	}

	entries := make([]Entry, 0, len(matches))
	for _, name := range matches {
		path := filepath.Join(dir, name)
		entry, err := parseOne(path)
		if err != nil {
			return nil, errors.Wrap(errors.KindCacheCorrupted, "rpmplaindir.Scan", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseOne(path string) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = f.Close() }()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Path:         path,
		Name:         stringTag(rpm, rpmutils.NAME),
		Version:      stringTag(rpm, rpmutils.VERSION),
		Release:      stringTag(rpm, rpmutils.RELEASE),
		Architecture: stringTag(rpm, rpmutils.ARCH),
		License:      stringTag(rpm, rpmutils.LICENSE),
		Requires:     stringSliceTag(rpm, rpmutils.REQUIRENAME),
		Provides:     stringSliceTag(rpm, rpmutils.PROVIDENAME),
	}, nil
}

func stringTag(rpm *rpmutils.Rpm, tag int) string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func stringSliceTag(rpm *rpmutils.Rpm, tag int) []string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return nil
	}
	slice, ok := val.([]string)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}
