package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repocore/reposync/pkg/model"
)

func TestProbe_RPMMD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repodata/repomd.xml" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(srv.Client())
	typ, err := p.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.RepoTypeRPMMD, typ)
}

func TestProbe_YaST2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/content" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(srv.Client())
	typ, err := p.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.RepoTypeYaST2, typ)
}

func TestProbe_None(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(srv.Client())
	typ, err := p.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, model.RepoTypeNone, typ)
}
