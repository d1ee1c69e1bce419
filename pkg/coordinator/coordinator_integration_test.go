//go:build integration

package coordinator_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/repocore/reposync/pkg/coordinator"
	"github.com/repocore/reposync/pkg/downloader"
	"github.com/repocore/reposync/pkg/layout"
	"github.com/repocore/reposync/pkg/media"
	"github.com/repocore/reposync/pkg/model"
	"github.com/repocore/reposync/pkg/service"
)

// fakeIndexSource plays the role of a repoindex.xml fetch without any
// network access, letting a refresh's add/update/remove diff be driven
// directly from a Go literal that changes between two calls.
type fakeIndexSource struct {
	repos []model.RepoInfo
}

func (f fakeIndexSource) Expand(ctx context.Context, svc model.ServiceInfo) ([]model.RepoInfo, error) {
	return f.repos, nil
}

// fakeMasterIndexProvider serves a fixed repomd.xml/primary.xml.gz pair
// for every base URL, enough to drive a cache build end to end.
type fakeMasterIndexProvider struct{}

const suiteRepomd = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <data type="primary">
    <checksum type="sha256">abc123</checksum>
    <location href="repodata/primary.xml.gz"/>
  </data>
</repomd>`

const suitePrimary = `<?xml version="1.0"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" xmlns:rpm="http://linux.duke.edu/metadata/rpm">
  <package type="rpm">
    <name>vim</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="9.0" rel="1"/>
    <location href="Packages/vim-9.0-1.x86_64.rpm"/>
    <format><rpm:license>Vim</rpm:license></format>
  </package>
</metadata>`

func (fakeMasterIndexProvider) Open(ctx context.Context, baseURL, relPath string) (*media.Handle, error) {
	switch relPath {
	case "repodata/repomd.xml":
		return newHandle(suiteRepomd), nil
	case "repodata/primary.xml.gz":
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		_, _ = w.Write([]byte(suitePrimary))
		_ = w.Close()
		return &media.Handle{Body: io.NopCloser(&buf), Size: int64(buf.Len())}, nil
	default:
		return nil, os.ErrNotExist
	}
}

func newHandle(s string) *media.Handle {
	return &media.Handle{Body: io.NopCloser(bytes.NewReader([]byte(s))), Size: int64(len(s))}
}

var _ = Describe("service refresh reconciliation", func() {
	It("adds new repos, updates shared ones preserving local overrides, and removes dropped ones", func() {
		l := layout.New(GinkgoT().TempDir())
		m := fakeMasterIndexProvider{}
		dl := &downloader.Downloader{Media: m}
		c := coordinator.New(l, m, dl, time.Minute)
		ctx := context.Background()

		Expect(c.AddRepo(ctx, model.RepoInfo{
			Alias: "suse-office", Type: model.RepoTypeRPMMD, Service: "suse-addons",
			Priority: 50, BaseURLs: []string{"http://example.com/office"},
		})).To(Succeed())
		Expect(c.AddRepo(ctx, model.RepoInfo{
			Alias: "suse-macromedia", Type: model.RepoTypeRPMMD, Service: "suse-addons",
			BaseURLs: []string{"http://example.com/macromedia"},
		})).To(Succeed())

		src := fakeIndexSource{repos: []model.RepoInfo{
			{Alias: "suse-office", Type: model.RepoTypeRPMMD, BaseURLs: []string{"http://example.com/office-v2"}, Enabled: true},
		}}

		svc := model.ServiceInfo{Alias: "suse-addons", Enabled: true, Type: model.ServiceTypeRepoIndex}
		_, err := c.SvcReg.Add(svc)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.RefreshServices(ctx, src)).To(Succeed())

		repos, err := c.ListRepos(ctx)
		Expect(err).NotTo(HaveOccurred())

		var aliases []string
		for _, r := range repos {
			aliases = append(aliases, r.Alias)
		}
		Expect(aliases).To(ContainElement("suse-office"))
		Expect(aliases).NotTo(ContainElement("suse-macromedia"))

		for _, r := range repos {
			if r.Alias == "suse-office" {
				Expect(r.BaseURLs).To(Equal([]string{"http://example.com/office-v2"}))
				Expect(r.Priority).To(Equal(uint(50)), "the owner's priority override must survive the service refresh")
			}
		}
	})
})

var _ = Describe("cache build, clean, and rebuild", func() {
	It("builds a solver cache, tolerates a clean, and rebuilds it from scratch", func() {
		l := layout.New(GinkgoT().TempDir())
		m := fakeMasterIndexProvider{}
		dl := &downloader.Downloader{Media: m}
		c := coordinator.New(l, m, dl, time.Minute)
		ctx := context.Background()

		repo := model.RepoInfo{Alias: "tumbleweed", Type: model.RepoTypeRPMMD, BaseURLs: []string{"http://example.com/tumbleweed"}}
		Expect(c.AddRepo(ctx, repo)).To(Succeed())

		result := c.RefreshRepo(ctx, repo, true)
		Expect(result.Err).NotTo(HaveOccurred())

		_, err := os.Stat(l.SolvCookiePath("tumbleweed"))
		Expect(err).NotTo(HaveOccurred())

		Expect(os.RemoveAll(l.SolvRepoDir("tumbleweed"))).To(Succeed())
		_, err = os.Stat(l.SolvCookiePath("tumbleweed"))
		Expect(err).To(HaveOccurred())

		result = c.RefreshRepo(ctx, repo, true)
		Expect(result.Err).NotTo(HaveOccurred())
		_, err = os.Stat(l.SolvCookiePath("tumbleweed"))
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("freshness-gated refresh", func() {
	It("skips rebuilding when the remote cookie still anchors equal to the last build", func() {
		l := layout.New(GinkgoT().TempDir())
		m := fakeMasterIndexProvider{}
		dl := &downloader.Downloader{Media: m}
		c := coordinator.New(l, m, dl, 0)
		ctx := context.Background()

		repo := model.RepoInfo{Alias: "leap", Type: model.RepoTypeRPMMD, BaseURLs: []string{"http://example.com/leap"}}
		Expect(c.AddRepo(ctx, repo)).To(Succeed())

		first := c.RefreshRepo(ctx, repo, true)
		Expect(first.Err).NotTo(HaveOccurred())

		second := c.RefreshRepo(ctx, repo, false)
		Expect(second.Err).NotTo(HaveOccurred())
		Expect(second.Skipped).To(BeTrue(), "an unchanged remote master index must short-circuit the rebuild")
	})
})
