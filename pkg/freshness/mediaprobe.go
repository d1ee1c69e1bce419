package freshness

import (
	"context"
	"time"

	"github.com/repocore/reposync/pkg/downloader"
	"github.com/repocore/reposync/pkg/media"
	"github.com/repocore/reposync/pkg/model"
)

// MediaProber implements Prober by fetching the repo type's master
// index through a media.Provider and hashing the response, the same
// path pkg/downloader uses for an actual refresh. It never writes the
// fetched bytes anywhere; a probe's only output is the Cookie.
type MediaProber struct {
	Media media.Provider
}

// ProbeCookie implements Prober.
func (p MediaProber) ProbeCookie(ctx context.Context, baseURL string, typ model.RepoType) (model.Cookie, error) {
	relPath := downloader.MasterIndexRelPath(typ)
	if relPath == "" {
		return model.Cookie{}, nil
	}

	h, err := p.Media.Open(ctx, baseURL, relPath)
	if err != nil {
		return model.Cookie{}, err
	}
	defer func() { _ = h.Close() }()

	return CookieFromReader(h.Body, time.Time{})
}
