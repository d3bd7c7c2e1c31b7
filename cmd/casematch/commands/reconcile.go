package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/casematch-go/internal/logging"
)

// NewReconcileCmd constructs the `casematch reconcile` command, which repairs
// stored records that have no vector in the index.
func NewReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild missing vectors for stored case records",
		Long: `Scan every stored case record, probe the vector index for its vector,
and replay the embed/upsert step for records that are missing one.

Records end up stored but unindexed when the embedding backend or Qdrant
was unavailable during ingest. Those records are invisible to queries
until this pass repairs them.

Examples:
  casematch reconcile`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			eng, err := buildEngine(ctx, log)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			defer eng.close()

			report, err := eng.coordinator.Reconcile(ctx)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}

			fmt.Printf("scanned %d, missing %d, repaired %d, failed %d\n",
				report.Scanned, report.Missing, report.Repaired, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("reconcile: %d repairs failed", report.Failed)
			}
			return nil
		},
	}

	return cmd
}
