// Package coordinator is the public entry point other components
// compose into a full repository metadata manager: it owns the
// metadata lock, drives the registry, prober, downloader, freshness
// oracle, cache builder, and service expander in the right order for
// each operation, and aggregates per-repository errors from a batch
// refresh with github.com/hashicorp/go-multierror rather than aborting
// the whole batch on the first failure.
package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/repocore/reposync/pkg/asyncutil"
	"github.com/repocore/reposync/pkg/cachebuilder"
	"github.com/repocore/reposync/pkg/downloader"
	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/freshness"
	"github.com/repocore/reposync/pkg/layout"
	"github.com/repocore/reposync/pkg/lock"
	"github.com/repocore/reposync/pkg/media"
	"github.com/repocore/reposync/pkg/model"
	"github.com/repocore/reposync/pkg/prober"
	"github.com/repocore/reposync/pkg/registry"
	"github.com/repocore/reposync/pkg/service"
)

// Coordinator is the single object a CLI command or library caller
// talks to; it holds no state of its own beyond what its collaborators
// need, so a Coordinator is cheap to construct per command invocation.
type Coordinator struct {
	Layout       layout.Layout
	RepoReg      *registry.Registry[model.RepoInfo]
	SvcReg       *registry.Registry[model.ServiceInfo]
	Prober       *prober.Prober
	Media        media.Provider
	Builder      *cachebuilder.Builder
	Oracle       *freshness.Oracle
	MetaLock     *lock.MetadataLock
	Downloader   *downloader.Downloader
	RefreshDelay time.Duration

	lastRefresh map[string]time.Time
}

// New assembles a Coordinator from a cache root, wiring every
// collaborator to the paths pkg/layout computes for it.
func New(l layout.Layout, m media.Provider, dl *downloader.Downloader, refreshDelay time.Duration) *Coordinator {
	// freshness.New only fails if the LRU size is invalid, which
	// defaultCacheSize never is, so an Oracle is always available here.
	oracle, _ := freshness.New(freshness.MediaProber{Media: m})

	return &Coordinator{
		Layout:      l,
		RepoReg:     registry.New[model.RepoInfo](l.KnownReposDir(), ".repo", registry.RepoCodec{}),
		SvcReg:      registry.New[model.ServiceInfo](l.KnownServicesDir(), ".service", registry.ServiceCodec{}),
		Prober:      prober.New(nil),
		Media:       m,
		Builder:     cachebuilder.New(l, m),
		Oracle:      oracle,
		MetaLock:    lock.NewMetadataLock(l.CacheRoot),
		Downloader:  dl,
		RefreshDelay: refreshDelay,
		lastRefresh: map[string]time.Time{},
	}
}

// ListRepos returns every known repository, sorted by alias.
func (c *Coordinator) ListRepos(ctx context.Context) ([]model.RepoInfo, error) {
	guard, err := c.MetaLock.RLock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = guard.Release() }()

	entries, _, err := c.RepoReg.Load()
	if err != nil {
		return nil, err
	}
	out := make([]model.RepoInfo, 0, len(entries))
	for _, alias := range registry.SortedAliases(entries) {
		out = append(out, entries[alias])
	}
	return out, nil
}

// AddRepo validates and persists a new repository. It returns
// KindAlreadyExists if the alias is already registered.
func (c *Coordinator) AddRepo(ctx context.Context, repo model.RepoInfo) error {
	if repo.Alias == "" {
		return errors.New(errors.KindInvalidAlias, "coordinator.AddRepo", "alias cannot be empty")
	}

	guard, err := c.MetaLock.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	entries, _, err := c.RepoReg.Load()
	if err != nil {
		return err
	}
	if _, exists := entries[repo.Alias]; exists {
		return errors.New(errors.KindAlreadyExists, "coordinator.AddRepo", repo.Alias)
	}

	if repo.Type == model.RepoTypeUnknown && len(repo.BaseURLs) > 0 {
		typ, err := c.Prober.Probe(ctx, repo.BaseURLs[0])
		if err != nil {
			return err
		}
		repo.Type = typ
	}
	if !repo.KeepPackagesExplicit && len(repo.BaseURLs) > 0 {
		repo.KeepPackages = model.DeriveKeepPackages(repo.BaseURLs[0])
	}

	_, err = c.RepoReg.Add(repo)
	return err
}

// ModifyRepo applies changes to an already-registered repository.
// Whenever the caller changes BaseURLs without explicitly pinning
// KeepPackages, the effective value is re-derived from the new
// primary base URL's scheme, the same recomputation
// RepoManager_test.cc's repo_seting_test exercises across successive
// setBaseUrl calls.
func (c *Coordinator) ModifyRepo(ctx context.Context, repo model.RepoInfo) error {
	guard, err := c.MetaLock.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	_, fileOf, err := c.RepoReg.Load()
	if err != nil {
		return err
	}
	if _, exists := fileOf[repo.Alias]; !exists {
		return errors.New(errors.KindNotFound, "coordinator.ModifyRepo", repo.Alias)
	}

	if !repo.KeepPackagesExplicit && len(repo.BaseURLs) > 0 {
		repo.KeepPackages = model.DeriveKeepPackages(repo.BaseURLs[0])
	}

	return c.RepoReg.Update(repo, fileOf)
}

// RemoveRepo deletes a repository's registry entry together with its
// raw metadata directory and its solver cache directory.
func (c *Coordinator) RemoveRepo(ctx context.Context, alias string) error {
	guard, err := c.MetaLock.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	_, fileOf, err := c.RepoReg.Load()
	if err != nil {
		return err
	}
	if err := c.RepoReg.Remove(alias, fileOf); err != nil {
		return err
	}
	if alias == "." || alias == ".." || filepath.Base(alias) != alias {
		return nil
	}
	for _, dir := range []string{c.Layout.RawRepoDir(alias), c.Layout.SolvRepoDir(alias)} {
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrap(errors.KindIoFailed, "coordinator.RemoveRepo", err)
		}
	}
	return nil
}

// RefreshResult is one repository's outcome from a batch refresh.
type RefreshResult struct {
	Alias   string
	Skipped bool
	Outcome downloader.Outcome
	Err     error
}

// RefreshRepo refreshes a single repository synchronously: probes
// freshness, and only re-downloads and rebuilds the cache if the
// remote cookie no longer anchors equal to the last build's cookie.
func (c *Coordinator) RefreshRepo(ctx context.Context, repo model.RepoInfo, force bool) RefreshResult {
	if !force {
		if last, ok := c.lastRefresh[repo.Alias]; ok && time.Since(last) < c.RefreshDelay {
			return RefreshResult{Alias: repo.Alias, Skipped: true}
		}
	}

	buildLock := lock.NewBuildLock(c.Layout.SolvDir(), repo.Alias)
	guard, err := buildLock.Lock(ctx)
	if err != nil {
		return RefreshResult{Alias: repo.Alias, Err: err}
	}
	defer func() { _ = guard.Release() }()

	if len(repo.BaseURLs) == 0 {
		return RefreshResult{Alias: repo.Alias, Err: errors.New(errors.KindInvalidAlias, "coordinator.RefreshRepo", "no base URLs configured")}
	}
	baseURL := repo.BaseURLs[0]

	if !force && c.Oracle != nil {
		cached := cachebuilder.ReadCookie(c.Layout.SolvCookiePath(repo.Alias))
		fresh, _, err := c.Oracle.IsFresh(ctx, repo.Alias, baseURL, repo.Type, cached)
		if err == nil && fresh {
			c.lastRefresh[repo.Alias] = time.Now()
			return RefreshResult{Alias: repo.Alias, Skipped: true}
		}
	}

	result := downloader.Refresh(ctx, asyncutil.SyncRunner[downloader.Outcome]{}, c.Downloader, repo, baseURL, c.Layout.RawRepoDir(repo.Alias))
	if result.Err != nil {
		return RefreshResult{Alias: repo.Alias, Err: result.Err}
	}

	built, err := c.Builder.Build(ctx, repo, result.Value.MetadataPath, baseURL)
	if err != nil {
		return RefreshResult{Alias: repo.Alias, Err: err}
	}

	repo.MetadataPath = result.Value.MetadataPath
	repo.PackagesPath = filepath.Join(c.Layout.SolvRepoDir(repo.Alias), "solv")
	repo.ValidRepoSignature = result.Value.Signature
	repo.HasLicense = built.HasLicense
	if _, fileOf, err := c.RepoReg.Load(); err == nil {
		_ = c.RepoReg.Update(repo, fileOf)
	}

	if c.Oracle != nil {
		c.Oracle.Invalidate(repo.Alias)
	}
	c.lastRefresh[repo.Alias] = time.Now()
	return RefreshResult{Alias: repo.Alias, Outcome: result.Value}
}

// RefreshAll refreshes every enabled, autorefresh-eligible repository
// concurrently via the async runner, aggregating per-repository
// failures into a single multierror rather than letting one bad mirror
// abort the whole batch.
func (c *Coordinator) RefreshAll(ctx context.Context, maxConcurrent int) ([]RefreshResult, error) {
	guard, err := c.MetaLock.RLock(ctx)
	if err != nil {
		return nil, err
	}
	entries, _, err := c.RepoReg.Load()
	_ = guard.Release()
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, maxConcurrent)
	chans := make([]<-chan asyncutil.Result[RefreshResult], 0, len(entries))

	for _, alias := range registry.SortedAliases(entries) {
		repo := entries[alias]
		if !repo.Enabled || !repo.Autorefresh {
			continue
		}
		task := func(ctx context.Context) (RefreshResult, error) {
			sem <- struct{}{}
			defer func() { <-sem }()
			return c.RefreshRepo(ctx, repo, false), nil
		}
		chans = append(chans, asyncutil.Start(ctx, asyncutil.Task[RefreshResult](task)))
	}

	results, err := asyncutil.WhenAll(ctx, chans)
	if err != nil {
		return nil, errors.Wrap(errors.KindCancelled, "coordinator.RefreshAll", err)
	}

	var combined *multierror.Error
	out := make([]RefreshResult, 0, len(results))
	for _, r := range results {
		out = append(out, r.Value)
		if r.Value.Err != nil {
			combined = multierror.Append(combined, errors.Wrap(errors.KindTransportFailed, "coordinator.RefreshAll", r.Value.Err).WithAlias(r.Value.Alias))
		}
	}
	if combined != nil {
		return out, combined
	}
	return out, nil
}

// RefreshServices reconciles every configured service's repository
// list against what the owner already has, applying the diff directly
// through the repository registry's Add/Update/Remove and then
// consuming the service's one-shot enable/disable lists.
func (c *Coordinator) RefreshServices(ctx context.Context, src service.Source) error {
	guard, err := c.MetaLock.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	services, svcFileOf, err := c.SvcReg.Load()
	if err != nil {
		return err
	}
	repos, repoFileOf, err := c.RepoReg.Load()
	if err != nil {
		return err
	}

	var combined *multierror.Error
	for _, alias := range registry.SortedAliases(services) {
		svc := services[alias]
		if !svc.Enabled {
			continue
		}

		owned := map[string]model.RepoInfo{}
		keepInactive := map[string]bool{}
		for a, r := range repos {
			if r.Service == alias {
				owned[a] = r
				if r.KeepInactive {
					keepInactive[a] = true
				}
			}
		}

		diff, err := service.Expand(ctx, src, svc, owned, keepInactive)
		if err != nil {
			combined = multierror.Append(combined, errors.Wrap(errors.KindTransportFailed, "coordinator.RefreshServices", err).WithAlias(alias))
			continue
		}

		for _, r := range diff.Add {
			r.Service = alias
			if _, err := c.RepoReg.Add(r); err != nil {
				combined = multierror.Append(combined, err)
			}
		}
		for _, r := range diff.Update {
			if err := c.RepoReg.Update(r, repoFileOf); err != nil {
				combined = multierror.Append(combined, err)
			}
		}
		for _, r := range diff.Remove {
			if err := c.RepoReg.Remove(r.Alias, repoFileOf); err != nil {
				combined = multierror.Append(combined, err)
			}
		}

		svc.LastRefresh = time.Now()
		svc = service.ConsumeOneShot(svc)
		if err := c.SvcReg.Update(svc, svcFileOf); err != nil {
			combined = multierror.Append(combined, err)
		}
	}

	if combined != nil {
		return combined
	}
	return nil
}
