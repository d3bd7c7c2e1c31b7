package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/54b3r/casematch-go/internal/casestore"
	"github.com/54b3r/casematch-go/internal/embedder"
	"github.com/54b3r/casematch-go/internal/index"
	"github.com/54b3r/casematch-go/internal/ingest"
	"github.com/54b3r/casematch-go/internal/retrieval"
)

// engine bundles the wired components shared by the serve, seed, and
// reconcile commands plus a close function releasing them in reverse order.
type engine struct {
	store       *casestore.Store
	idx         *index.QdrantIndex
	embedder    index.Embedder
	coordinator *ingest.Coordinator
	retriever   *retrieval.Retriever
	close       func()
}

// buildEngine wires the record store, vector index, embedder, coordinator,
// and retriever from the environment.
func buildEngine(ctx context.Context, log *slog.Logger) (*engine, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	backend := embedder.Backend()
	dims := embedder.DefaultDimensions(backend)
	log.Info("embedder initialised",
		slog.String("backend", backend),
		slog.Int("dimensions", dims),
	)

	idx, err := index.NewQdrantIndex(ctx, &index.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "surgical-cases"),
		VectorSize: uint64(dims),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w", err)
	}

	dbPath, err := resolveDBPath()
	if err != nil {
		idx.Close()
		return nil, err
	}
	store, err := casestore.Open(dbPath)
	if err != nil {
		idx.Close()
		return nil, err
	}
	log.Info("record store opened", slog.String("path", dbPath))

	coordinator, err := ingest.New(store, idx, emb, log, ingest.Config{})
	if err != nil {
		store.Close()
		idx.Close()
		return nil, err
	}

	retriever, err := retrieval.NewRetriever(emb, idx, retrieval.Config{
		FeatureWeight:   getEnvFloat("RETRIEVAL_FEATURE_WEIGHT", 0),
		EmbeddingWeight: getEnvFloat("RETRIEVAL_EMBEDDING_WEIGHT", 0),
		Breadth:         getEnvInt("RETRIEVAL_BREADTH", 0),
	})
	if err != nil {
		store.Close()
		idx.Close()
		return nil, err
	}

	return &engine{
		store:       store,
		idx:         idx,
		embedder:    emb,
		coordinator: coordinator,
		retriever:   retriever,
		close: func() {
			store.Close()
			idx.Close()
		},
	}, nil
}

// rebuildCoordinator returns a coordinator over the engine's components with
// an explicit worker pool size.
func rebuildCoordinator(eng *engine, log *slog.Logger, workers int) (*ingest.Coordinator, error) {
	return ingest.New(eng.store, eng.idx, eng.embedder, log, ingest.Config{PoolSize: workers})
}

// resolveDBPath returns the SQLite database path, creating the parent
// directory for the default location. CASEMATCH_DB overrides the default
// (~/.casematch/cases.db).
func resolveDBPath() (string, error) {
	if p := os.Getenv("CASEMATCH_DB"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve database path: %w", err)
	}
	dir := filepath.Join(home, ".casematch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "cases.db"), nil
}

// getEnvOrDefault returns the env var value or a fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as an int, or the fallback when unset
// or unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat returns the env var parsed as a float64, or the fallback when
// unset or unparseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
