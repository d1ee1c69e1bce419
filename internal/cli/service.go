package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repocore/reposync/pkg/model"
	"github.com/repocore/reposync/pkg/registry"
	"github.com/repocore/reposync/pkg/repoindex"
)

// NewServiceCmd creates the service command with subcommands.
func NewServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage repository services",
		Long:  "Add, remove, list, and refresh services that expand into a managed set of repositories",
	}

	cmd.AddCommand(
		newServiceAddCmd(),
		newServiceRemoveCmd(),
		newServiceListCmd(),
		newServiceRefreshCmd(),
	)

	return cmd
}

func newServiceAddCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add ALIAS URL",
		Short: "Register a new repository index service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cc *cobra.Command, args []string) error {
			return runServiceAdd(cc, args[0], args[1], name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the alias)")
	return cmd
}

func newServiceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ALIAS",
		Short: "Unregister a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			return runServiceRemove(cc, args[0])
		},
	}
}

func newServiceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured services",
		RunE:  runServiceList,
	}
}

func newServiceRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reconcile every service's repository list against its remote index",
		Long:  "Fetch each enabled service's repoindex.xml (or run its plugin) and add/remove/update owned repositories to match, then consume any pending one-shot enable/disable list.",
		RunE:  runServiceRefresh,
	}
}

func runServiceAdd(cc *cobra.Command, alias, url, name string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}
	if name == "" {
		name = alias
	}

	guard, err := c.MetaLock.Lock(cc.Context())
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	entries, _, err := c.SvcReg.Load()
	if err != nil {
		return err
	}
	if _, exists := entries[alias]; exists {
		return fmt.Errorf("service %q already exists", alias)
	}

	svc := model.ServiceInfo{
		Alias:       alias,
		Name:        name,
		URL:         url,
		Enabled:     true,
		Autorefresh: true,
		Type:        model.ServiceTypeRepoIndex,
	}
	if _, err := c.SvcReg.Add(svc); err != nil {
		return fmt.Errorf("add service %q: %w", alias, err)
	}
	fmt.Printf("Added service %q (%s)\n", alias, url)
	return nil
}

func runServiceRemove(cc *cobra.Command, alias string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}

	guard, err := c.MetaLock.Lock(cc.Context())
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	_, fileOf, err := c.SvcReg.Load()
	if err != nil {
		return err
	}
	if err := c.SvcReg.Remove(alias, fileOf); err != nil {
		return fmt.Errorf("remove service %q: %w", alias, err)
	}
	fmt.Printf("Removed service %q\n", alias)
	return nil
}

func runServiceList(cc *cobra.Command, _ []string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}

	guard, err := c.MetaLock.RLock(cc.Context())
	if err != nil {
		return err
	}
	entries, _, err := c.SvcReg.Load()
	_ = guard.Release()
	if err != nil {
		return err
	}

	for _, alias := range registry.SortedAliases(entries) {
		s := entries[alias]
		status := "disabled"
		if s.Enabled {
			status = "enabled"
		}
		fmt.Printf("%-20s %-8s %-8s %s\n", s.Alias, s.Type, status, s.URL)
	}
	return nil
}

func runServiceRefresh(cc *cobra.Command, _ []string) error {
	c, err := loadCoordinator()
	if err != nil {
		return err
	}

	src := repoindex.New(c.Media)
	if err := c.RefreshServices(cc.Context(), src); err != nil {
		return fmt.Errorf("refresh services: %w", err)
	}
	fmt.Println("Services refreshed")
	return nil
}
