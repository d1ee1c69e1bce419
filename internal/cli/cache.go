package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the solver-ready metadata cache",
		Long:  "Build, clean, and inspect the per-repository solver cache under the cache root",
	}

	cmd.AddCommand(
		newCacheBuildCmd(),
		newCacheCleanCmd(),
		newCacheDirCmd(),
	)

	return cmd
}

func newCacheBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build ALIAS",
		Short: "Rebuild the solver cache for a repository from its raw metadata",
		Long:  "Force a refresh and cache rebuild, bypassing the refresh delay and freshness check; the master index is downloaded again.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			return runCacheBuild(cc, args[0])
		},
	}
	return cmd
}

func newCacheCleanCmd() *cobra.Command {
	var alias string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove cached metadata",
		Long:  "Remove a single repository's raw and solver caches, or every repository's if --alias is omitted.",
		RunE: func(cc *cobra.Command, _ []string) error {
			return runCacheClean(cc, alias)
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "limit cleaning to one repository")
	return cmd
}

func newCacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Print the cache root directory",
		RunE:  runCacheDir,
	}
}

func runCacheBuild(cc *cobra.Command, alias string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}

	repos, err := c.ListRepos(cc.Context())
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}
	for _, r := range repos {
		if r.Alias != alias {
			continue
		}
		result := c.RefreshRepo(cc.Context(), r, true)
		if result.Err != nil {
			return fmt.Errorf("build cache for %q: %w", alias, result.Err)
		}
		fmt.Printf("Cache built for %q at %s\n", alias, result.Outcome.MetadataPath)
		return nil
	}
	return fmt.Errorf("no such repository %q", alias)
}

func runCacheClean(cc *cobra.Command, alias string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}

	repos, err := c.ListRepos(cc.Context())
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}

	for _, r := range repos {
		if alias != "" && r.Alias != alias {
			continue
		}
		if err := os.RemoveAll(c.Layout.RawRepoDir(r.Alias)); err != nil {
			return fmt.Errorf("clean raw cache for %q: %w", r.Alias, err)
		}
		if err := os.RemoveAll(c.Layout.SolvRepoDir(r.Alias)); err != nil {
			return fmt.Errorf("clean solver cache for %q: %w", r.Alias, err)
		}
		fmt.Printf("Cleaned cache for %q\n", r.Alias)
	}
	return nil
}

func runCacheDir(cc *cobra.Command, _ []string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}
	fmt.Println(c.Layout.CacheRoot)
	return nil
}
