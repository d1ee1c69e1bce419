// Package errors defines the error taxonomy shared by every reposync
// component. Components never return bare errors across package
// boundaries; they return a *Error tagged with a Kind so callers can
// branch on "what kind of failure" without string matching or type
// switches on concrete error structs.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of which component raised it.
type Kind int

const (
	// KindUnknown is the zero value and should never be returned deliberately.
	KindUnknown Kind = iota

	// KindRepoUnknownType means the prober could not determine whether a
	// URL serves RPMMD, YaST2, or plain-RPM-directory metadata.
	KindRepoUnknownType

	// KindRepoNotCached means an operation required a built cache that
	// does not exist yet.
	KindRepoNotCached

	// KindAlreadyExists means the caller tried to add a repository,
	// service, or registry entry whose alias already exists.
	KindAlreadyExists

	// KindNotFound means the caller referenced an alias, file, or key
	// that does not exist.
	KindNotFound

	// KindSignatureCheckFailed means GPG signature verification of
	// downloaded metadata failed or the signature was absent when one
	// was required.
	KindSignatureCheckFailed

	// KindPluginVerifyFailed means an external repo-verification plugin
	// rejected the downloaded metadata.
	KindPluginVerifyFailed

	// KindTransportFailed means the underlying HTTP/file transport
	// returned an error unrelated to content validity.
	KindTransportFailed

	// KindRemoteUnavailable means every configured base URL for a
	// repository failed to respond.
	KindRemoteUnavailable

	// KindCacheCorrupted means an on-disk cache failed its integrity
	// check and must be rebuilt.
	KindCacheCorrupted

	// KindLockContention means a metadata or build lock could not be
	// acquired within the caller's context deadline.
	KindLockContention

	// KindCancelled means the operation's context was cancelled.
	KindCancelled

	// KindInvalidAlias means an alias failed validation (empty, not a
	// valid filesystem-safe token, or reserved).
	KindInvalidAlias

	// KindIoFailed means a filesystem operation failed for reasons
	// unrelated to the above (permissions, disk full, and so on).
	KindIoFailed
)

func (k Kind) String() string {
	switch k {
	case KindRepoUnknownType:
		return "repo_unknown_type"
	case KindRepoNotCached:
		return "repo_not_cached"
	case KindAlreadyExists:
		return "already_exists"
	case KindNotFound:
		return "not_found"
	case KindSignatureCheckFailed:
		return "signature_check_failed"
	case KindPluginVerifyFailed:
		return "plugin_verify_failed"
	case KindTransportFailed:
		return "transport_failed"
	case KindRemoteUnavailable:
		return "remote_unavailable"
	case KindCacheCorrupted:
		return "cache_corrupted"
	case KindLockContention:
		return "lock_contention"
	case KindCancelled:
		return "cancelled"
	case KindInvalidAlias:
		return "invalid_alias"
	case KindIoFailed:
		return "io_failed"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every reposync component.
type Error struct {
	Kind    Kind
	Alias   string // repository or service alias, when applicable
	Op      string // component operation that failed, e.g. "downloader.FetchMasterIndex"
	Err     error  // wrapped cause, may be nil
	Message string // extra human context, may be empty
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Alias != "" {
		msg += fmt.Sprintf(" (alias=%s)", e.Alias)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errors.New(Kind...)) style comparisons work
// when comparing two *Error values by Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != KindUnknown && t.Kind != e.Kind {
		return false
	}
	return true
}

// New builds an *Error of the given kind with an operation label.
func New(kind Kind, op string, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error of the given kind wrapping an existing cause.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithAlias returns a copy of e annotated with the alias that failed.
func (e *Error) WithAlias(alias string) *Error {
	clone := *e
	clone.Alias = alias
	return &clone
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise returns KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Wrapf wraps an error with additional formatted context. Call sites that
// care about a stable message rather than a Kind (such as config loading)
// use this, with or without format args; it preserves the original error via %w so
// errors.Is/As on the underlying cause still works.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
