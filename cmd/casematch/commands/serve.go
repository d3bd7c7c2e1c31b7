package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/casematch-go/internal/logging"
	"github.com/54b3r/casematch-go/internal/server"
)

// NewServeCmd constructs the `casematch serve` command, which starts the
// HTTP server exposing the retrieval API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the casematch HTTP server",
		Long: `Start the casematch HTTP server on localhost.

The server exposes a REST API for storing case records, running hybrid
retrieval queries, and triggering index reconciliation, plus health,
readiness, and Prometheus metrics endpoints.

Examples:
  casematch serve
  casematch serve --port 9090
  EMBEDDING_PROVIDER=gemini casematch serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("embedding_provider", os.Getenv("EMBEDDING_PROVIDER")))

			eng, err := buildEngine(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer eng.close()

			srv, err := server.New(eng.coordinator, eng.retriever, eng.store, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: []server.Pinger{eng.store, eng.idx},
				APIKey:  os.Getenv("CASEMATCH_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
