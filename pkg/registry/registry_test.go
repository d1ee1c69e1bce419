package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repocore/reposync/pkg/model"
)

func newRepoRegistry(t *testing.T) (*Registry[model.RepoInfo], string) {
	dir := t.TempDir()
	return New[model.RepoInfo](dir, ".repo", RepoCodec{}), dir
}

func TestAdd_CreatesOwnFile(t *testing.T) {
	reg, dir := newRepoRegistry(t)

	path, err := reg.Add(model.RepoInfo{Alias: "main", Name: "Main Repo", Enabled: true, BaseURLs: []string{"http://x/repo"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main.repo"), path)

	entries, fileOf, err := reg.Load()
	require.NoError(t, err)
	require.Contains(t, entries, "main")
	require.Contains(t, fileOf, "main")
}

func TestAdd_CollisionAppendsSmallestFreeSuffix(t *testing.T) {
	reg, dir := newRepoRegistry(t)

	_, err := reg.Add(model.RepoInfo{Alias: "main", Name: "First"})
	require.NoError(t, err)

	second, err := reg.Add(model.RepoInfo{Alias: "main", Name: "Second"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main_1.repo"), second)

	third, err := reg.Add(model.RepoInfo{Alias: "main", Name: "Third"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main_2.repo"), third)
}

func TestRemove_LastSectionDeletesFile(t *testing.T) {
	reg, dir := newRepoRegistry(t)
	_, err := reg.Add(model.RepoInfo{Alias: "solo", Name: "Solo"})
	require.NoError(t, err)

	_, fileOf, err := reg.Load()
	require.NoError(t, err)

	require.NoError(t, reg.Remove("solo", fileOf))
	_, err = os.Stat(filepath.Join(dir, "solo.repo"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemove_NonLastSectionRewritesFile(t *testing.T) {
	dir := t.TempDir()
	content := "[a]\nname=A\n\n[b]\nname=B\n"
	path := filepath.Join(dir, "shared.repo")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg := New[model.RepoInfo](dir, ".repo", RepoCodec{})
	entries, fileOf, err := reg.Load()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, reg.Remove("a", fileOf))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[b]")
	assert.NotContains(t, string(data), "[a]")

	entries, _, err = reg.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdate_PreservesSiblingSections(t *testing.T) {
	dir := t.TempDir()
	content := "[a]\nname=A\nenabled=1\n\n[b]\nname=B\nenabled=1\n"
	path := filepath.Join(dir, "shared.repo")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg := New[model.RepoInfo](dir, ".repo", RepoCodec{})
	entries, fileOf, err := reg.Load()
	require.NoError(t, err)

	a := entries["a"]
	a.Name = "A renamed"
	require.NoError(t, reg.Update(a, fileOf))

	entries, _, err = reg.Load()
	require.NoError(t, err)
	assert.Equal(t, "A renamed", entries["a"].Name)
	assert.Equal(t, "B", entries["b"].Name)
}
