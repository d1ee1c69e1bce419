// Package repoindex implements pkg/service.Source for
// model.ServiceTypeRepoIndex: it fetches a service's repoindex.xml
// through a media.Provider and turns each <repo> entry into the
// model.RepoInfo the service diff machinery reconciles against what
// is already configured. The format is a small, closed XML vocabulary
// with no ecosystem parser in the retrieved pack, so encoding/xml is
// used directly rather than through a third-party XML library.
package repoindex

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/media"
	"github.com/repocore/reposync/pkg/model"
)

// indexDoc mirrors libzypp's repoindex.xml: a flat list of <repo>
// elements, each describing one repository a service advertises.
type indexDoc struct {
	XMLName xml.Name    `xml:"repoindex"`
	Repos   []indexRepo `xml:"repo"`
}

type indexRepo struct {
	Alias       string `xml:"alias,attr"`
	Name        string `xml:"name,attr"`
	URL         string `xml:"url,attr"`
	Priority    uint   `xml:"priority,attr"`
	Enabled     *bool  `xml:"enabled,attr"`
	Autorefresh *bool  `xml:"autorefresh,attr"`
}

// Source fetches and parses a service's repoindex.xml.
type Source struct {
	Media media.Provider
}

// New returns a Source backed by m.
func New(m media.Provider) *Source {
	return &Source{Media: m}
}

// Expand implements pkg/service.Source.
func (s *Source) Expand(ctx context.Context, svc model.ServiceInfo) ([]model.RepoInfo, error) {
	h, err := s.Media.Open(ctx, svc.URL, "repoindex.xml")
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, "repoindex.Expand", err)
	}
	defer func() { _ = h.Close() }()

	data, err := io.ReadAll(h.Body)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransportFailed, "repoindex.Expand", err)
	}

	var doc indexDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.KindCacheCorrupted, "repoindex.Expand", err)
	}

	repos := make([]model.RepoInfo, 0, len(doc.Repos))
	for _, r := range doc.Repos {
		enabled := true
		if r.Enabled != nil {
			enabled = *r.Enabled
		}
		autorefresh := svc.Autorefresh
		if r.Autorefresh != nil {
			autorefresh = *r.Autorefresh
		}
		repos = append(repos, model.RepoInfo{
			Alias:       r.Alias,
			Name:        r.Name,
			Enabled:     enabled,
			Autorefresh: autorefresh,
			BaseURLs:    []string{r.URL},
			Priority:    r.Priority,
			Service:     svc.Alias,
		})
	}
	return repos, nil
}
