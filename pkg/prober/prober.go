// Package prober determines which metadata format a repository base
// URL serves by probing for the marker files each format is expected
// to publish, in the same priority order zypp's repository prober
// checks them: repomd.xml first, then YaST2's content file. A base URL
// that publishes neither is reported as RepoTypeNone; the prober does
// not itself detect a plain directory of loose RPMs.
package prober

import (
	"context"
	"net/http"
	"strings"

	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/model"
)

// Prober probes a base URL for its repository type using the given
// HTTP client to issue HEAD requests against well-known marker paths.
type Prober struct {
	Client *http.Client
}

// New returns a Prober using client, or http.DefaultClient if nil.
func New(client *http.Client) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{Client: client}
}

// markers, most specific first, mirroring the probe order zypp's
// RepoInfo-less type detection follows.
var markers = []struct {
	path string
	typ  model.RepoType
}{
	{"repodata/repomd.xml", model.RepoTypeRPMMD},
	{"content", model.RepoTypeYaST2},
}

// Probe determines baseURL's repository type. For RPMPLAINDIR it is
// the caller's responsibility to have already confirmed the directory
// contains *.rpm files (pkg/parser/rpmplaindir.Scan does the listing);
// Probe only reports "no known index was found" by returning
// RepoTypeNone, leaving directory enumeration to that caller.
func (p *Prober) Probe(ctx context.Context, baseURL string) (model.RepoType, error) {
	base := strings.TrimSuffix(baseURL, "/")

	for _, m := range markers {
		ok, err := p.exists(ctx, base+"/"+m.path)
		if err != nil {
			return model.RepoTypeUnknown, errors.Wrap(errors.KindTransportFailed, "prober.Probe", err)
		}
		if ok {
			return m.typ, nil
		}
	}

	return model.RepoTypeNone, nil
}

func (p *Prober) exists(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
