package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/casematch-go/internal/casestore"
	"github.com/54b3r/casematch-go/internal/ingest"
	"github.com/54b3r/casematch-go/internal/retrieval"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil, a fresh registry is created.
	Registry *prometheus.Registry
}

// ingestor is the interface the case-creation and reconcile handlers call.
// *ingest.Coordinator satisfies it; tests inject a fake.
type ingestor interface {
	Ingest(ctx context.Context, c casestore.Case) (int64, error)
	Reconcile(ctx context.Context) (ingest.Report, error)
}

// retriever is the interface the query handler calls.
// *retrieval.Retriever satisfies it; tests inject a fake.
type retriever interface {
	Retrieve(ctx context.Context, freeText string, p retrieval.Profile, topK int) ([]retrieval.Match, error)
}

// caseReader is the read-only slice of the record store the case handlers
// need. *casestore.Store satisfies it.
type caseReader interface {
	Get(ctx context.Context, id int64) (casestore.Case, error)
	List(ctx context.Context, limit, offset int) ([]casestore.Case, error)
}

// Server is the HTTP server that exposes the retrieval engine.
type Server struct {
	// ingestor performs the dual write for new case records.
	ingestor ingestor
	// retriever runs hybrid retrieval for query requests.
	retriever retriever
	// cases reads stored case records.
	cases caseReader
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Text is the free-text description of the current situation.
	Text string `json:"text"`
	// Profile carries the explicit attributes of the current situation.
	// Absent fields are excluded from feature scoring, not treated as zero.
	Profile retrieval.Profile `json:"profile"`
	// TopK is the maximum number of matches to return.
	TopK int `json:"top_k"`
}

// queryResponse is the JSON body returned by POST /api/query.
type queryResponse struct {
	// Matches is the ranked result list, best first.
	Matches []retrieval.Match `json:"matches"`
}

// createResponse is the JSON body returned by POST /api/cases.
type createResponse struct {
	// CaseID is the identifier assigned to (or supplied with) the record.
	CaseID int64 `json:"case_id"`
	// Case is the stored record as read back from the record store.
	Case casestore.Case `json:"case"`
}

// listResponse is the JSON body returned by GET /api/cases.
type listResponse struct {
	// Cases is one page of stored records, most recent first.
	Cases []casestore.Case `json:"cases"`
}

// errorResponse is the JSON error body for every non-2xx API response.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
	// CaseID is set when a dual write stored the record but failed to index
	// it, so the client knows which record a later reconcile will repair.
	CaseID int64 `json:"case_id,omitempty"`
}
