package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repocore/reposync/pkg/model"
)

type fakeSource struct {
	repos []model.RepoInfo
}

func (f fakeSource) Expand(ctx context.Context, svc model.ServiceInfo) ([]model.RepoInfo, error) {
	return f.repos, nil
}

func TestExpand_AddsNewAndRemovesDropped(t *testing.T) {
	src := fakeSource{repos: []model.RepoInfo{
		{Alias: "keep", Name: "Keep"},
		{Alias: "new", Name: "New"},
	}}
	owned := map[string]model.RepoInfo{
		"keep":    {Alias: "keep", Name: "Keep (old name)"},
		"dropped": {Alias: "dropped", Name: "Dropped"},
	}

	diff, err := Expand(context.Background(), src, model.ServiceInfo{Alias: "svc"}, owned, nil)
	require.NoError(t, err)

	require.Len(t, diff.Add, 1)
	assert.Equal(t, "new", diff.Add[0].Alias)

	require.Len(t, diff.Update, 1)
	assert.Equal(t, "keep", diff.Update[0].Alias)
	assert.Equal(t, "Keep", diff.Update[0].Name) // fresh name wins

	require.Len(t, diff.Remove, 1)
	assert.Equal(t, "dropped", diff.Remove[0].Alias)
}

func TestExpand_KeepInactivePreventsRemoval(t *testing.T) {
	src := fakeSource{repos: []model.RepoInfo{}}
	owned := map[string]model.RepoInfo{
		"disabled-by-user": {Alias: "disabled-by-user"},
	}

	diff, err := Expand(context.Background(), src, model.ServiceInfo{Alias: "svc"}, owned, map[string]bool{"disabled-by-user": true})
	require.NoError(t, err)
	assert.Empty(t, diff.Remove)
}

func TestExpand_PreservesLocalOverridesOnUpdate(t *testing.T) {
	src := fakeSource{repos: []model.RepoInfo{
		{Alias: "repo1", Name: "Repo One", Priority: 99, Enabled: true},
	}}
	keepPkgs := true
	owned := map[string]model.RepoInfo{
		"repo1": {Alias: "repo1", Priority: 5, Enabled: false, KeepPackages: true, GPGCheckRepo: &keepPkgs},
	}

	diff, err := Expand(context.Background(), src, model.ServiceInfo{Alias: "svc"}, owned, nil)
	require.NoError(t, err)
	require.Len(t, diff.Update, 1)

	updated := diff.Update[0]
	assert.Equal(t, "Repo One", updated.Name)
	assert.Equal(t, uint(5), updated.Priority)
	assert.False(t, updated.Enabled)
	assert.True(t, updated.KeepPackages)
}

func TestExpand_OneShotEnableAppliesToNewRepos(t *testing.T) {
	src := fakeSource{repos: []model.RepoInfo{
		{Alias: "fresh", Enabled: false},
	}}
	svc := model.ServiceInfo{Alias: "svc", ReposToEnable: []string{"fresh"}}

	diff, err := Expand(context.Background(), src, svc, map[string]model.RepoInfo{}, nil)
	require.NoError(t, err)
	require.Len(t, diff.Add, 1)
	assert.True(t, diff.Add[0].Enabled)
}

func TestConsumeOneShot_Clears(t *testing.T) {
	svc := model.ServiceInfo{ReposToEnable: []string{"a"}, ReposToDisable: []string{"b"}}
	svc = ConsumeOneShot(svc)
	assert.Nil(t, svc.ReposToEnable)
	assert.Nil(t, svc.ReposToDisable)
}
