package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/casematch-go/internal/logging"
)

// NewSeedCmd constructs the `casematch seed` command, which bulk-loads case
// records from a JSON file through the normal dual-write path.
func NewSeedCmd() *cobra.Command {
	var file string
	var workers int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bulk-load case records from a JSON file",
		Long: `Load a JSON array of case records and ingest each one: store the
structured record in SQLite, then embed its canonical text rendering and
upsert the vector into Qdrant.

Records may carry explicit case_id values, so re-running the same file
overwrites the same records instead of duplicating them.

Examples:
  casematch seed --file cases.json
  casematch seed --file cases.json --workers 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			eng, err := buildEngine(ctx, log)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			defer eng.close()

			coordinator := eng.coordinator
			if workers > 0 {
				// Rebuild with the requested pool size.
				coordinator, err = rebuildCoordinator(eng, log, workers)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
			}

			n, err := coordinator.SeedFile(ctx, file)
			if err != nil {
				log.Error("seed finished with failures",
					slog.Int("ingested", n), slog.Any("error", err))
				return err
			}

			fmt.Printf("seeded %d case records from %s\n", n, file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the JSON case file (required)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker pool size for concurrent ingest (default: half the CPUs)")
	cmd.MarkFlagRequired("file")

	return cmd
}
