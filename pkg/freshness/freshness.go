// Package freshness decides whether a repository's solver cache is
// still valid for the metadata currently on the remote, without
// re-parsing the index and rebuilding the cache. It obtains a Cookie
// (a checksum+mtime pair) for the remote master index from its Prober
// (MediaProber downloads the file in full through pkg/media) and
// compares its Anchor to the cookie recorded alongside the
// last successful cache build. An LRU of recent checks avoids hammering
// the remote when the same alias is refreshed repeatedly in a short
// window, e.g. once per sub-repo in a multi-repo service expansion.
package freshness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/model"
)

// defaultCacheSize bounds the number of aliases whose last-seen cookie
// the Oracle remembers in memory between disk reads.
const defaultCacheSize = 256

// Prober returns the current cookie for an alias's master index.
// MediaProber, the implementation in this package, downloads the
// master index in full to compute it.
type Prober interface {
	ProbeCookie(ctx context.Context, baseURL string, typ model.RepoType) (model.Cookie, error)
}

// Oracle answers "is the cache for this alias still fresh" by comparing
// the remote's current cookie to the one recorded at last build time.
type Oracle struct {
	prober Prober
	cache  *lru.Cache[string, model.Cookie]
}

// New returns an Oracle backed by prober, with an in-memory cache of
// recently-seen remote cookies.
func New(prober Prober) (*Oracle, error) {
	cache, err := lru.New[string, model.Cookie](defaultCacheSize)
	if err != nil {
		return nil, errors.Wrap(errors.KindIoFailed, "freshness.New", err)
	}
	return &Oracle{prober: prober, cache: cache}, nil
}

// IsFresh reports whether alias's on-disk cache cookie still anchors
// equal to the remote's current cookie, per this package's leading
// invariant that two cookies describe the same content exactly when
// their Anchor values match.
func (o *Oracle) IsFresh(ctx context.Context, alias, baseURL string, typ model.RepoType, cached model.Cookie) (bool, model.Cookie, error) {
	if cached.Empty() {
		return false, model.Cookie{}, nil
	}

	remote, ok := o.cache.Get(alias)
	if !ok {
		var err error
		remote, err = o.prober.ProbeCookie(ctx, baseURL, typ)
		if err != nil {
			return false, model.Cookie{}, errors.Wrap(errors.KindTransportFailed, "freshness.IsFresh", err)
		}
		o.cache.Add(alias, remote)
	}

	return cached.Anchor() == remote.Anchor(), remote, nil
}

// Invalidate drops any cached remote cookie for alias, forcing the next
// IsFresh call to re-probe. Callers do this after a successful refresh
// so a rapid second refresh (e.g. from a service expansion touching the
// same alias twice) does not act on a stale in-memory cookie.
func (o *Oracle) Invalidate(alias string) {
	o.cache.Remove(alias)
}

// CookieFromReader computes a Cookie from the full content of r, used
// when a lightweight probe is unavailable and the master index must be
// downloaded anyway to compute freshness from its checksum.
func CookieFromReader(r io.Reader, modTime time.Time) (model.Cookie, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return model.Cookie{}, errors.Wrap(errors.KindIoFailed, "freshness.CookieFromReader", err)
	}
	return model.Cookie{Checksum: hex.EncodeToString(h.Sum(nil)), ModTime: modTime}, nil
}

// CookieFromFile computes a Cookie for a file already on disk, used to
// record the cookie for a just-built cache.
func CookieFromFile(path string) (model.Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Cookie{}, errors.Wrap(errors.KindIoFailed, "freshness.CookieFromFile", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return model.Cookie{}, errors.Wrap(errors.KindIoFailed, "freshness.CookieFromFile", err)
	}
	return CookieFromReader(f, info.ModTime())
}
