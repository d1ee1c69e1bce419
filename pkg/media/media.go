// Package media provides the transport layer downloaded metadata moves
// over: HTTP(S) and local filesystem base URLs, both exposed through
// one Provider interface so the downloader workflow never branches on
// scheme itself. A Handle is the scoped disposer around an open
// transfer, released by the caller via defer, mirroring zypp's media
// handle lifecycle (attach, use, release).
package media

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/repocore/reposync/pkg/errors"
)

//go:generate mockgen -destination=./mocks/media.go . Provider

// Provider fetches a relative path against a base URL and returns a
// Handle the caller must Close when done reading.
type Provider interface {
	Open(ctx context.Context, baseURL, relPath string) (*Handle, error)
}

// Handle wraps the readable body of a fetched resource together with
// its release function. It disarms itself once Close has run so a
// deferred Close after an explicit one is a no-op.
type Handle struct {
	Body   io.ReadCloser
	Size   int64 // -1 if unknown
	closed bool
}

// Close releases the underlying transport resource exactly once.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.Body.Close()
}

// HTTPProvider fetches over HTTP(S) using a bounded-timeout client.
type HTTPProvider struct {
	Client *http.Client
}

// NewHTTPProvider returns a Provider with the given per-request timeout.
func NewHTTPProvider(timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{Client: &http.Client{Timeout: timeout}}
}

// Open implements Provider.
func (p *HTTPProvider) Open(ctx context.Context, baseURL, relPath string) (*Handle, error) {
	full := joinURL(baseURL, relPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, "media.HTTPProvider.Open", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, "media.HTTPProvider.Open", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, errors.New(errors.KindNotFound, "media.HTTPProvider.Open", full)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, errors.New(errors.KindTransportFailed, "media.HTTPProvider.Open", resp.Status)
	}
	return &Handle{Body: resp.Body, Size: resp.ContentLength}, nil
}

// FileProvider fetches from a local directory tree, for base URLs of
// the form file:///... or dir:///... used by offline or mirrored
// repositories.
type FileProvider struct{}

// Open implements Provider.
func (FileProvider) Open(ctx context.Context, baseURL, relPath string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindCancelled, "media.FileProvider.Open", err)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidAlias, "media.FileProvider.Open", err)
	}
	full := filepath.Join(u.Path, relPath)
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.KindNotFound, "media.FileProvider.Open", full)
		}
		return nil, errors.Wrap(errors.KindIoFailed, "media.FileProvider.Open", err)
	}
	info, err := f.Stat()
	size := int64(-1)
	if err == nil {
		size = info.Size()
	}
	return &Handle{Body: f, Size: size}, nil
}

// Dispatcher picks HTTPProvider or FileProvider by baseURL scheme, so
// callers hold one Provider regardless of how a repository's mirrors
// are split between http:// and file:// entries.
type Dispatcher struct {
	HTTP Provider
	File Provider
}

// NewDispatcher returns a Dispatcher with sensible default providers.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{HTTP: NewHTTPProvider(timeout), File: FileProvider{}}
}

// Open implements Provider.
func (d *Dispatcher) Open(ctx context.Context, baseURL, relPath string) (*Handle, error) {
	if strings.HasPrefix(baseURL, "file://") || strings.HasPrefix(baseURL, "dir:") || strings.HasPrefix(baseURL, "/") {
		return d.File.Open(ctx, baseURL, relPath)
	}
	return d.HTTP.Open(ctx, baseURL, relPath)
}

func joinURL(base, rel string) string {
	base = strings.TrimSuffix(base, "/")
	rel = strings.TrimPrefix(rel, "/")
	return base + "/" + rel
}
