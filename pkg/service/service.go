// Package service expands a .service definition into the set of
// repositories it owns, and reconciles that expansion against whatever
// the owner already has configured for that service. The diff an
// Expand computes is additive and subtractive at once:
//
//	add    = expanded \ owned            (new repos this refresh introduced)
//	remove = owned \ expanded, unless the repo is in keepInactive
//	update = expanded ∩ owned            (existing repos, user overrides kept)
//
// ReposToEnable/ReposToDisable on the ServiceInfo are one-shot: the
// caller must clear them after applying a refresh, since they only
// ever apply to the single refresh that consumes them.
package service

import (
	"context"

	"github.com/repocore/reposync/pkg/model"
)

// Source produces the list of repositories a service currently
// advertises, implemented by a repoindex.xml fetcher for
// ServiceTypeRepoIndex or a plugin executable runner for
// ServiceTypePlugin.
type Source interface {
	Expand(ctx context.Context, svc model.ServiceInfo) ([]model.RepoInfo, error)
}

// Diff is the result of reconciling a service's freshly expanded
// repository list against the set the owner already has on disk.
type Diff struct {
	Add    []model.RepoInfo
	Remove []model.RepoInfo
	Update []model.RepoInfo
}

// Expand fetches svc's current repository list via src and reconciles
// it against owned, the repositories already configured for this
// service alias. keepInactive names aliases that must survive removal
// even though the service no longer advertises them, the same
// exception zypp grants a repository the user explicitly disabled.
func Expand(ctx context.Context, src Source, svc model.ServiceInfo, owned map[string]model.RepoInfo, keepInactive map[string]bool) (Diff, error) {
	expanded, err := src.Expand(ctx, svc)
	if err != nil {
		return Diff{}, err
	}

	expandedByAlias := make(map[string]model.RepoInfo, len(expanded))
	for _, r := range expanded {
		expandedByAlias[r.Alias] = r
	}

	var diff Diff

	for alias, r := range expandedByAlias {
		if existing, ok := owned[alias]; ok {
			diff.Update = append(diff.Update, mergeOverrides(existing, r))
		} else {
			r.Enabled = applyOneShot(r.Alias, r.Enabled, svc.ReposToEnable, svc.ReposToDisable)
			diff.Add = append(diff.Add, r)
		}
	}

	for alias, r := range owned {
		if _, stillAdvertised := expandedByAlias[alias]; !stillAdvertised && !keepInactive[alias] {
			diff.Remove = append(diff.Remove, r)
		}
	}

	return diff, nil
}

// mergeOverrides keeps the owner's local customizations (Enabled,
// Priority, GPGCheckRepo, KeepPackages, KeepInactive) while taking
// every other field from the freshly expanded definition, the same
// layering zypp's service refresh applies so a user's `zypper mr -p`
// survives a `zypper refs`.
func mergeOverrides(existing, fresh model.RepoInfo) model.RepoInfo {
	merged := fresh
	merged.Enabled = existing.Enabled
	merged.Priority = existing.Priority
	merged.GPGCheckRepo = existing.GPGCheckRepo
	merged.KeepPackages = existing.KeepPackages
	merged.KeepPackagesExplicit = existing.KeepPackagesExplicit
	merged.KeepInactive = existing.KeepInactive
	return merged
}

// applyOneShot resolves a newly-added repo's initial enabled state
// against the service's one-shot enable/disable lists, falling back to
// the repo's own advertised default.
func applyOneShot(alias string, def bool, toEnable, toDisable []string) bool {
	for _, a := range toEnable {
		if a == alias {
			return true
		}
	}
	for _, a := range toDisable {
		if a == alias {
			return false
		}
	}
	return def
}

// ConsumeOneShot returns svc with ReposToEnable/ReposToDisable cleared,
// called by the coordinator immediately after a Diff has been applied.
func ConsumeOneShot(svc model.ServiceInfo) model.ServiceInfo {
	svc.ReposToEnable = nil
	svc.ReposToDisable = nil
	return svc
}
