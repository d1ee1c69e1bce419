// Package fsutil collects the filesystem permission constants and small
// directory-creation helpers used across reposync's on-disk layout.
package fsutil

import (
	"os"
	"path/filepath"
)

// File and directory permission constants, following standard Unix
// conventions.
const (
	// FileModeDefault is used for ordinary written files (config, cache
	// metadata, registry entries).
	FileModeDefault = 0o644
	// FileModeSecure is used for files that may contain imported key
	// material or credentials.
	FileModeSecure = 0o640
	// FileModeExec is used for plugin service executables reposync
	// itself stages, if any.
	FileModeExec = 0o755

	// DirModeDefault is used for ordinary created directories.
	DirModeDefault = 0o755
	// DirModeSecure is used for the pubkey cache and build lock
	// directories.
	DirModeSecure = 0o750
)

// EnsureDir creates dir and all necessary parents with DirModeDefault
// permissions if they do not already exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, DirModeDefault)
}

// EnsureSecureDir is EnsureDir with the tighter DirModeSecure mode, for
// directories holding key material.
func EnsureSecureDir(dir string) error {
	return os.MkdirAll(dir, DirModeSecure)
}

// EnsureFileDir creates the parent directory of filePath if needed.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}
