// Package model holds the plain data types shared across reposync:
// repository and service descriptors, and the on-disk freshness token
// ("cookie") used to decide whether a cache needs rebuilding.
package model

import (
	"net/url"
	"strings"
	"time"
)

// RepoType identifies which metadata format a repository serves.
type RepoType string

const (
	// RepoTypeUnknown means the type has not been probed yet.
	RepoTypeUnknown RepoType = ""
	// RepoTypeRPMMD is a standard repomd.xml-indexed YUM/DNF repository.
	RepoTypeRPMMD RepoType = "rpm-md"
	// RepoTypeYaST2 is a YaST2 content/packages-indexed repository.
	RepoTypeYaST2 RepoType = "yast2"
	// RepoTypePlainDir is a directory of loose RPM files with no index.
	RepoTypePlainDir RepoType = "plaindir"
	// RepoTypeNone marks a repository known to have no usable metadata.
	RepoTypeNone RepoType = "NONE"
)

// RepoInfo describes one configured repository, as kept in the
// known-repos registry and surfaced to callers of the coordinator.
type RepoInfo struct {
	Alias         string
	Name          string
	Enabled       bool
	Autorefresh   bool
	BaseURLs      []string
	MirrorListURL string // mirrorlist: stored and persisted; refresh and probing use BaseURLs only
	Path          string // path: stored and persisted; refresh and probing use BaseURLs[0] without appending it
	Type          RepoType
	Priority      uint
	GPGCheck      bool
	GPGCheckRepo  *bool    // per-repomd.xml override, nil means unset
	PkgGPGCheck   bool     // pkg_gpgcheck: per-package signature check, independent of the repomd-level one
	GPGKeyURLs    []string // gpgkey: locations of public keys to import for this repo

	// KeepPackages mirrors zypp's cache-local-rpms flag. It is
	// auto-derived from BaseURLs[0]'s scheme by DeriveKeepPackages
	// whenever KeepPackagesExplicit is false; callers that want to
	// pin a value regardless of scheme set KeepPackagesExplicit.
	KeepPackages         bool
	KeepPackagesExplicit bool

	// KeepInactive protects a service-owned repo from removal when its
	// owning service stops advertising it.
	KeepInactive bool

	Service string // alias of the owning .service file, empty if none

	// Fields set by Coordinator.RefreshRepo once a cache build
	// succeeds. RepoCodec does not write them to the .repo file, so they
	// are empty on a RepoInfo loaded from disk.
	MetadataPath       string // absolute path to the raw downloaded metadata
	PackagesPath       string // absolute path to the solver-ready binary cache
	HasLicense         bool
	ValidRepoSignature ValidSignature
}

// DeriveKeepPackages computes the automatic default for KeepPackages
// from the scheme of a repository's effective base URL: remote
// schemes (http, https, ftp) default to true, everything else
// (file, dir, smb, cifs, ...) to false. This is the same split
// RepoManager_test.cc's repo_seting_test exercises across successive
// setBaseUrl calls, and it is only ever consulted when the caller has
// not explicitly set KeepPackages itself.
func DeriveKeepPackages(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return true
	default:
		return false
	}
}

// ValidSignature records the outcome of the last signature check
// performed against this repository's metadata.
type ValidSignature int

const (
	// SignatureUnknown means no check has run yet.
	SignatureUnknown ValidSignature = iota
	// SignatureUnsigned means the metadata had no detached signature.
	SignatureUnsigned
	// SignatureUntrusted means a signature was present but from an
	// untrusted or unknown key.
	SignatureUntrusted
	// SignatureTrusted means the signature verified against a trusted key.
	SignatureTrusted
)

// Clone returns a deep-enough copy of r safe to mutate independently.
func (r RepoInfo) Clone() RepoInfo {
	clone := r
	clone.BaseURLs = append([]string(nil), r.BaseURLs...)
	clone.GPGKeyURLs = append([]string(nil), r.GPGKeyURLs...)
	if r.GPGCheckRepo != nil {
		v := *r.GPGCheckRepo
		clone.GPGCheckRepo = &v
	}
	return clone
}

// EffectiveGPGCheck resolves the per-repo override against the global
// default the way repomd.xml's own gpgcheck directive is layered on top
// of the service/registry-level setting.
func (r RepoInfo) EffectiveGPGCheck() bool {
	if r.GPGCheckRepo != nil {
		return *r.GPGCheckRepo
	}
	return r.GPGCheck
}

// ServiceInfo describes a .service file: a remote that expands into a
// set of repositories the owner does not otherwise configure by hand.
type ServiceInfo struct {
	Alias          string
	Name           string
	URL            string
	Enabled        bool
	Autorefresh    bool
	Type           ServiceType
	TTL            time.Duration
	LastRefresh    time.Time
	ReposToEnable  []string // one-shot: consumed by the next refresh
	ReposToDisable []string // one-shot: consumed by the next refresh
}

// ServiceType identifies how a service's repository list is produced.
type ServiceType string

const (
	// ServiceTypeRepoIndex means the service URL serves a repoindex.xml.
	ServiceTypeRepoIndex ServiceType = "ris"
	// ServiceTypePlugin means a local executable under the plugin
	// services directory produces the repository list.
	ServiceTypePlugin ServiceType = "plugin"
)

// Cookie is the freshness token computed from a metadata file's
// checksum and modification time. Two cookies with equal Anchor values
// are considered to describe the same content without re-reading it.
type Cookie struct {
	Checksum string
	ModTime  time.Time
}

// Anchor returns the stable comparison key for a cookie. Two cookies
// anchor equal exactly when Checksum matches; ModTime is carried for
// diagnostics only and never participates in the comparison, so a
// cache rebuild triggered purely by a touch(1) does not get treated as
// stale content.
func (c Cookie) Anchor() string {
	return c.Checksum
}

// Empty reports whether the cookie carries no checksum, meaning the
// corresponding file has never been downloaded.
func (c Cookie) Empty() bool {
	return c.Checksum == ""
}
