// Package commands defines all Cobra CLI commands for the casematch binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/casematch-go/internal/audit"
	"github.com/54b3r/casematch-go/internal/config"
	"github.com/54b3r/casematch-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "casematch",
		Short: "casematch — hybrid retrieval over prior surgical case records",
		Long: `casematch is a retrieval engine for prior surgical case records.

It stores structured case records in SQLite, indexes a canonical text
rendering of each record in Qdrant, and answers queries by fusing semantic
embedding similarity with explicit feature similarity into one ranked list.

The embedding backend is selected via the EMBEDDING_PROVIDER environment
variable or a YAML config file (~/.casematch/config.yaml).
See 'casematch --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.casematch/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewSeedCmd(),
		NewReconcileCmd(),
		NewVersionCmd(),
	)

	return root
}
