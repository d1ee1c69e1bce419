package freshness

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repocore/reposync/pkg/model"
)

type fakeProber struct {
	cookie model.Cookie
	err    error
	calls  int
}

func (f *fakeProber) ProbeCookie(ctx context.Context, baseURL string, typ model.RepoType) (model.Cookie, error) {
	f.calls++
	return f.cookie, f.err
}

func TestIsFresh_EmptyCachedCookieIsNeverFresh(t *testing.T) {
	o, err := New(&fakeProber{})
	require.NoError(t, err)

	fresh, _, err := o.IsFresh(context.Background(), "factory", "http://example.com", model.RepoTypeRPMMD, model.Cookie{})
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestIsFresh_MatchingAnchorIsFresh(t *testing.T) {
	cached := model.Cookie{Checksum: "abc123"}
	prober := &fakeProber{cookie: model.Cookie{Checksum: "abc123"}}
	o, err := New(prober)
	require.NoError(t, err)

	fresh, _, err := o.IsFresh(context.Background(), "factory", "http://example.com", model.RepoTypeRPMMD, cached)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, 1, prober.calls)
}

func TestIsFresh_DifferentAnchorIsStale(t *testing.T) {
	cached := model.Cookie{Checksum: "abc123"}
	prober := &fakeProber{cookie: model.Cookie{Checksum: "def456"}}
	o, err := New(prober)
	require.NoError(t, err)

	fresh, remote, err := o.IsFresh(context.Background(), "factory", "http://example.com", model.RepoTypeRPMMD, cached)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, "def456", remote.Checksum)
}

func TestIsFresh_CachesRemoteCookieAcrossCalls(t *testing.T) {
	cached := model.Cookie{Checksum: "abc123"}
	prober := &fakeProber{cookie: model.Cookie{Checksum: "abc123"}}
	o, err := New(prober)
	require.NoError(t, err)

	_, _, err = o.IsFresh(context.Background(), "factory", "http://example.com", model.RepoTypeRPMMD, cached)
	require.NoError(t, err)
	_, _, err = o.IsFresh(context.Background(), "factory", "http://example.com", model.RepoTypeRPMMD, cached)
	require.NoError(t, err)

	assert.Equal(t, 1, prober.calls, "second call within the same alias should hit the in-memory cache, not re-probe")
}

func TestInvalidate_ForcesReprobe(t *testing.T) {
	cached := model.Cookie{Checksum: "abc123"}
	prober := &fakeProber{cookie: model.Cookie{Checksum: "abc123"}}
	o, err := New(prober)
	require.NoError(t, err)

	_, _, err = o.IsFresh(context.Background(), "factory", "http://example.com", model.RepoTypeRPMMD, cached)
	require.NoError(t, err)

	o.Invalidate("factory")

	_, _, err = o.IsFresh(context.Background(), "factory", "http://example.com", model.RepoTypeRPMMD, cached)
	require.NoError(t, err)
	assert.Equal(t, 2, prober.calls)
}

func TestCookieFromReader_ComputesStableChecksum(t *testing.T) {
	c1, err := CookieFromReader(strings.NewReader("same content"), model.Cookie{}.ModTime)
	require.NoError(t, err)
	c2, err := CookieFromReader(strings.NewReader("same content"), model.Cookie{}.ModTime)
	require.NoError(t, err)
	assert.Equal(t, c1.Anchor(), c2.Anchor())

	c3, err := CookieFromReader(strings.NewReader("different content"), model.Cookie{}.ModTime)
	require.NoError(t, err)
	assert.NotEqual(t, c1.Anchor(), c3.Anchor())
}
