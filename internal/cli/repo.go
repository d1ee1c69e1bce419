package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repocore/reposync/pkg/model"
)

// NewRepoCmd creates the repo command with subcommands.
func NewRepoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage repositories",
		Long:  "Add, remove, list, and refresh configured repository metadata sources",
	}

	cmd.AddCommand(
		newRepoAddCmd(),
		newRepoModifyCmd(),
		newRepoRemoveCmd(),
		newRepoListCmd(),
		newRepoRefreshCmd(),
	)

	return cmd
}

func newRepoAddCmd() *cobra.Command {
	var (
		name         string
		priority     int
		autorefresh  bool
		gpgcheck     bool
		mirrorlist   string
		pkgGPGCheck  bool
		gpgkeys      []string
		keepPackages bool
		keepInactive bool
	)

	cmd := &cobra.Command{
		Use:   "add ALIAS URL",
		Short: "Register a new repository",
		Long:  "Register a new repository by alias and base URL. The metadata type is auto-probed if not already known.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cc *cobra.Command, args []string) error {
			repo := model.RepoInfo{
				Alias:                 args[0],
				Name:                  name,
				Enabled:               true,
				Autorefresh:           autorefresh,
				BaseURLs:              []string{args[1]},
				Priority:              uint(priority),
				GPGCheck:              gpgcheck,
				MirrorListURL:         mirrorlist,
				PkgGPGCheck:           pkgGPGCheck,
				GPGKeyURLs:            gpgkeys,
				KeepPackages:          keepPackages,
				KeepPackagesExplicit:  cc.Flags().Changed("keep-packages"),
				KeepInactive:          keepInactive,
			}
			if repo.Name == "" {
				repo.Name = repo.Alias
			}
			return runRepoAdd(cc, repo)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the alias)")
	cmd.Flags().IntVar(&priority, "priority", 99, "repository priority (lower numbers win conflicts)")
	cmd.Flags().BoolVar(&autorefresh, "autorefresh", true, "refresh automatically during a batch refresh")
	cmd.Flags().BoolVar(&gpgcheck, "gpgcheck", true, "gpgcheck setting stored in the .repo file (the refresh signature check does not consult it)")
	cmd.Flags().StringVar(&mirrorlist, "mirrorlist", "", "mirrorlist URL stored with the repository (refresh uses the base URL only)")
	cmd.Flags().BoolVar(&pkgGPGCheck, "pkg-gpgcheck", false, "verify per-package GPG signatures in addition to the repository signature")
	cmd.Flags().StringSliceVar(&gpgkeys, "gpgkey", nil, "GPG key URL to import for this repository (repeatable)")
	cmd.Flags().BoolVar(&keepPackages, "keep-packages", false, "keep downloaded packages after install; if unset, derived from the base URL's scheme")
	cmd.Flags().BoolVar(&keepInactive, "keep-inactive", false, "keep this repository even if its owning service stops advertising it")

	return cmd
}

func newRepoModifyCmd() *cobra.Command {
	var (
		baseURL      string
		priority     int
		enabled      bool
		autorefresh  bool
		gpgcheck     bool
		mirrorlist   string
		pkgGPGCheck  bool
		gpgkeys      []string
		keepPackages bool
		keepInactive bool
	)

	cmd := &cobra.Command{
		Use:   "modify ALIAS",
		Short: "Change an already-registered repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			return runRepoModify(cc, args[0], baseURL, priority, enabled, autorefresh, gpgcheck, mirrorlist, pkgGPGCheck, gpgkeys, keepPackages, cc.Flags().Changed("keep-packages"), keepInactive)
		},
	}

	cmd.Flags().StringVar(&baseURL, "baseurl", "", "new base URL; re-derives keep-packages from its scheme unless --keep-packages is also set")
	cmd.Flags().IntVar(&priority, "priority", 99, "repository priority (lower numbers win conflicts)")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "whether the repository is enabled")
	cmd.Flags().BoolVar(&autorefresh, "autorefresh", true, "refresh automatically during a batch refresh")
	cmd.Flags().BoolVar(&gpgcheck, "gpgcheck", true, "gpgcheck setting stored in the .repo file (the refresh signature check does not consult it)")
	cmd.Flags().StringVar(&mirrorlist, "mirrorlist", "", "mirrorlist URL stored with the repository (refresh uses the base URL only)")
	cmd.Flags().BoolVar(&pkgGPGCheck, "pkg-gpgcheck", false, "verify per-package GPG signatures in addition to the repository signature")
	cmd.Flags().StringSliceVar(&gpgkeys, "gpgkey", nil, "GPG key URL to import for this repository (repeatable)")
	cmd.Flags().BoolVar(&keepPackages, "keep-packages", false, "keep downloaded packages after install; if unset, derived from the base URL's scheme")
	cmd.Flags().BoolVar(&keepInactive, "keep-inactive", false, "keep this repository even if its owning service stops advertising it")

	return cmd
}

func newRepoRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove ALIAS",
		Short: "Unregister a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			return runRepoRemove(cc, args[0])
		},
	}
	return cmd
}

func newRepoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured repositories",
		RunE:  runRepoList,
	}
}

func newRepoRefreshCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh [ALIAS...]",
		Short: "Refresh repository metadata",
		Long:  "Refresh the named repositories, or every enabled autorefresh repository if none are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepoRefresh(cmd, args, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "refresh even if the refresh delay has not elapsed and the cache looks fresh")
	return cmd
}

func runRepoAdd(cc *cobra.Command, repo model.RepoInfo) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}
	if err := c.AddRepo(cc.Context(), repo); err != nil {
		return fmt.Errorf("add repository %q: %w", repo.Alias, err)
	}
	fmt.Printf("Added repository %q (%s)\n", repo.Alias, joinBaseURLs(repo.BaseURLs))
	return nil
}

func runRepoModify(cc *cobra.Command, alias, baseURL string, priority int, enabled, autorefresh, gpgcheck bool, mirrorlist string, pkgGPGCheck bool, gpgkeys []string, keepPackages, keepPackagesExplicit, keepInactive bool) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}

	repos, err := c.ListRepos(cc.Context())
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}
	var repo model.RepoInfo
	var found bool
	for _, r := range repos {
		if r.Alias == alias {
			repo, found = r, true
			break
		}
	}
	if !found {
		return fmt.Errorf("modify repository %q: not registered", alias)
	}

	if baseURL != "" {
		repo.BaseURLs = []string{baseURL}
	}
	repo.Priority = uint(priority)
	repo.Enabled = enabled
	repo.Autorefresh = autorefresh
	repo.GPGCheck = gpgcheck
	if mirrorlist != "" {
		repo.MirrorListURL = mirrorlist
	}
	repo.PkgGPGCheck = pkgGPGCheck
	if len(gpgkeys) > 0 {
		repo.GPGKeyURLs = gpgkeys
	}
	repo.KeepInactive = keepInactive
	if keepPackagesExplicit {
		repo.KeepPackages = keepPackages
		repo.KeepPackagesExplicit = true
	} else {
		repo.KeepPackagesExplicit = false
	}

	if err := c.ModifyRepo(cc.Context(), repo); err != nil {
		return fmt.Errorf("modify repository %q: %w", alias, err)
	}
	fmt.Printf("Modified repository %q\n", alias)
	return nil
}

func runRepoRemove(cc *cobra.Command, alias string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}
	if err := c.RemoveRepo(cc.Context(), alias); err != nil {
		return fmt.Errorf("remove repository %q: %w", alias, err)
	}
	fmt.Printf("Removed repository %q\n", alias)
	return nil
}

func runRepoList(cc *cobra.Command, _ []string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}
	repos, err := c.ListRepos(cc.Context())
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}
	for _, r := range repos {
		status := "disabled"
		if r.Enabled {
			status = "enabled"
		}
		fmt.Printf("%-20s %-10s %-8s priority=%d %s\n", r.Alias, r.Type, status, r.Priority, joinBaseURLs(r.BaseURLs))
	}
	return nil
}

func runRepoRefresh(cc *cobra.Command, aliases []string, force bool) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}

	repos, err := c.ListRepos(cc.Context())
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}

	wanted := map[string]bool{}
	for _, a := range aliases {
		wanted[a] = true
	}

	var failures int
	for _, r := range repos {
		if len(wanted) > 0 && !wanted[r.Alias] {
			continue
		}
		if len(wanted) == 0 && (!r.Enabled || !r.Autorefresh) {
			continue
		}
		result := c.RefreshRepo(cc.Context(), r, force)
		switch {
		case result.Err != nil:
			failures++
			fmt.Printf("%-20s FAILED: %v\n", r.Alias, result.Err)
		case result.Skipped:
			fmt.Printf("%-20s skipped (still fresh)\n", r.Alias)
		default:
			fmt.Printf("%-20s refreshed\n", r.Alias)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d repositories failed to refresh", failures)
	}
	return nil
}

func joinBaseURLs(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}
