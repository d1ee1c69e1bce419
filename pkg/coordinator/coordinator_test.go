package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repocore/reposync/pkg/downloader"
	"github.com/repocore/reposync/pkg/layout"
	"github.com/repocore/reposync/pkg/media"
	"github.com/repocore/reposync/pkg/model"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	l := layout.New(t.TempDir())
	dl := &downloader.Downloader{Media: media.FileProvider{}}
	return New(l, media.FileProvider{}, dl, time.Minute)
}

func TestAddRepo_RejectsDuplicateAlias(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "main", Name: "Main", Type: model.RepoTypeRPMMD}))

	err := c.AddRepo(ctx, model.RepoInfo{Alias: "main", Name: "Dup", Type: model.RepoTypeRPMMD})
	require.Error(t, err)
}

func TestAddRepo_RejectsEmptyAlias(t *testing.T) {
	c := newTestCoordinator(t)
	err := c.AddRepo(context.Background(), model.RepoInfo{Name: "No alias"})
	require.Error(t, err)
}

func TestListRepos_ReturnsSortedAliases(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "zeta", Type: model.RepoTypeRPMMD}))
	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "alpha", Type: model.RepoTypeRPMMD}))

	repos, err := c.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "alpha", repos[0].Alias)
	assert.Equal(t, "zeta", repos[1].Alias)
}

func TestRemoveRepo_DeletesEntry(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "main", Type: model.RepoTypeRPMMD}))
	require.NoError(t, c.RemoveRepo(ctx, "main"))

	repos, err := c.ListRepos(ctx)
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestRefreshRepo_SkipsWithinRefreshDelay(t *testing.T) {
	c := newTestCoordinator(t)
	c.RefreshDelay = time.Hour
	c.lastRefresh["main"] = time.Now()

	result := c.RefreshRepo(context.Background(), model.RepoInfo{Alias: "main", BaseURLs: []string{"/nonexistent"}}, false)
	assert.True(t, result.Skipped)
}

func TestAddRepo_DerivesKeepPackagesFromScheme(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "remote", Type: model.RepoTypeRPMMD, BaseURLs: []string{"http://example.com/repo"}}))
	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "local", Type: model.RepoTypeRPMMD, BaseURLs: []string{"file:///srv/repo"}}))

	repos, err := c.ListRepos(ctx)
	require.NoError(t, err)

	byAlias := map[string]model.RepoInfo{}
	for _, r := range repos {
		byAlias[r.Alias] = r
	}
	assert.True(t, byAlias["remote"].KeepPackages)
	assert.False(t, byAlias["local"].KeepPackages)
}

func TestAddRepo_HonorsExplicitKeepPackagesOverScheme(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{
		Alias:                 "pinned",
		Type:                  model.RepoTypeRPMMD,
		BaseURLs:              []string{"http://example.com/repo"},
		KeepPackages:          false,
		KeepPackagesExplicit:  true,
	}))

	repos, err := c.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.False(t, repos[0].KeepPackages)
}

func TestModifyRepo_RederivesKeepPackagesOnBaseURLChange(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "main", Type: model.RepoTypeRPMMD, BaseURLs: []string{"http://example.com/repo"}}))

	repos, err := c.ListRepos(ctx)
	require.NoError(t, err)
	require.True(t, repos[0].KeepPackages)

	changed := repos[0]
	changed.BaseURLs = []string{"file:///srv/repo"}
	require.NoError(t, c.ModifyRepo(ctx, changed))

	repos, err = c.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.False(t, repos[0].KeepPackages)
}

func TestModifyRepo_RejectsUnknownAlias(t *testing.T) {
	c := newTestCoordinator(t)
	err := c.ModifyRepo(context.Background(), model.RepoInfo{Alias: "nonexistent"})
	require.Error(t, err)
}

type fakeServiceSource struct {
	repos []model.RepoInfo
}

func (f fakeServiceSource) Expand(ctx context.Context, svc model.ServiceInfo) ([]model.RepoInfo, error) {
	return f.repos, nil
}

func TestRefreshServices_KeepInactiveSurvivesReconciliation(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "stale", Type: model.RepoTypeRPMMD, Service: "svc", KeepInactive: true}))
	_, err := c.SvcReg.Add(model.ServiceInfo{Alias: "svc", Enabled: true, Type: model.ServiceTypeRepoIndex})
	require.NoError(t, err)

	src := fakeServiceSource{repos: []model.RepoInfo{}}
	require.NoError(t, c.RefreshServices(ctx, src))

	repos, err := c.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "stale", repos[0].Alias)
}

func TestRefreshServices_RemovesDroppedRepoWithoutKeepInactive(t *testing.T) {
	c := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, c.AddRepo(ctx, model.RepoInfo{Alias: "stale", Type: model.RepoTypeRPMMD, Service: "svc"}))
	_, err := c.SvcReg.Add(model.ServiceInfo{Alias: "svc", Enabled: true, Type: model.ServiceTypeRepoIndex})
	require.NoError(t, err)

	src := fakeServiceSource{repos: []model.RepoInfo{}}
	require.NoError(t, c.RefreshServices(ctx, src))

	repos, err := c.ListRepos(ctx)
	require.NoError(t, err)
	assert.Empty(t, repos)
}
