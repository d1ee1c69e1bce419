package downloader

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/repocore/reposync/pkg/asyncutil"
	"github.com/repocore/reposync/pkg/media"
	mediamocks "github.com/repocore/reposync/pkg/media/mocks"
	"github.com/repocore/reposync/pkg/model"
)

func closedHandle(body string) *media.Handle {
	return &media.Handle{Body: io.NopCloser(bytes.NewBufferString(body)), Size: int64(len(body))}
}

func TestRefresh_NotMandatory_SucceedsWithoutSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mediamocks.NewMockProvider(ctrl)
	m.EXPECT().Open(gomock.Any(), "http://mirror", "repodata/repomd.xml").Return(closedHandle("<repomd/>"), nil)
	m.EXPECT().Open(gomock.Any(), "http://mirror", "repodata/repomd.xml.asc").Return(nil, assertErr{})

	dl := &Downloader{Media: m, Mandatory: false}
	repo := model.RepoInfo{Alias: "main", Type: model.RepoTypeRPMMD}
	destDir := t.TempDir()

	result := Refresh(context.Background(), asyncutil.SyncRunner[Outcome]{}, dl, repo, "http://mirror", destDir)
	require.NoError(t, result.Err)
	assert.Equal(t, model.SignatureUnsigned, result.Value.Signature)
}

func TestRefresh_Mandatory_FailsWithoutSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mediamocks.NewMockProvider(ctrl)
	m.EXPECT().Open(gomock.Any(), "http://mirror", "repodata/repomd.xml").Return(closedHandle("<repomd/>"), nil)
	m.EXPECT().Open(gomock.Any(), "http://mirror", "repodata/repomd.xml.asc").Return(nil, assertErr{})

	dl := &Downloader{Media: m, Mandatory: true}
	repo := model.RepoInfo{Alias: "main", Type: model.RepoTypeRPMMD}
	destDir := t.TempDir()

	result := Refresh(context.Background(), asyncutil.SyncRunner[Outcome]{}, dl, repo, "http://mirror", destDir)
	require.Error(t, result.Err)
}

func TestRefresh_MasterIndexFetchFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mediamocks.NewMockProvider(ctrl)
	m.EXPECT().Open(gomock.Any(), "http://mirror", "content").Return(nil, assertErr{})

	dl := &Downloader{Media: m, Mandatory: false}
	repo := model.RepoInfo{Alias: "main", Type: model.RepoTypeYaST2}
	destDir := t.TempDir()

	result := Refresh(context.Background(), asyncutil.SyncRunner[Outcome]{}, dl, repo, "http://mirror", destDir)
	require.Error(t, result.Err)
}

type assertErr struct{}

func (assertErr) Error() string { return "not found" }
