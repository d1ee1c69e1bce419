package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the reposync command tree. It stores configPath,
// verbose, and logFormat in this package's ConfigPath/Verbose/LogFormat
// and binds them to the root's persistent flags, so they hold the
// parsed flag values once ExecuteContext runs.
func NewRootCmd(configPath *string, verbose *bool, logFormat *string) *cobra.Command {
	ConfigPath = configPath
	Verbose = verbose
	LogFormat = logFormat

	cmd := &cobra.Command{
		Use:   "reposync",
		Short: "Locate, fetch, verify, and cache repository metadata",
		Long: `reposync manages the lifecycle of RPM-MD, YaST2, and plain-directory
repository metadata: probing type, downloading and GPG-verifying master
indexes, building a solver-ready binary cache, and expanding services
into the repositories they advertise.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(configPath, "config", "", "config file path (default: platform default)")
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(logFormat, "log-format", "text", "log output format: text or json")

	cmd.AddCommand(
		NewRepoCmd(),
		NewServiceCmd(),
		NewCacheCmd(),
		NewVersionCmd(),
	)

	return cmd
}
