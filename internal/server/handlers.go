package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/54b3r/casematch-go/internal/casestore"
	"github.com/54b3r/casematch-go/internal/logging"
	"github.com/54b3r/casematch-go/internal/retrieval"
)

// defaultTopK is the number of matches returned when the request omits top_k.
const defaultTopK = 5

// listLimitMax caps the page size for GET /api/cases.
const listLimitMax = 1000

// handleCreateCase handles POST /api/cases. It runs the dual write and
// returns 201 with the stored record. A vector-side failure still stores the
// record; the response is 502 and names the case id so the client knows a
// reconcile will pick it up.
func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var c casestore.Case
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", 0)
		return
	}

	id, err := s.ingestor.Ingest(r.Context(), c)
	if err != nil {
		switch {
		case errors.Is(err, casestore.ErrInvalid):
			s.metrics.ingestTotal.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusUnprocessableEntity, err.Error(), 0)
		case id > 0:
			// Stored but not indexed; reconcile will repair it.
			s.metrics.ingestTotal.WithLabelValues("unindexed").Inc()
			log.Error("case stored but not indexed", slog.Int64("case_id", id), slog.Any("error", err))
			writeError(w, http.StatusBadGateway, "case stored but not yet searchable", id)
		default:
			s.metrics.ingestTotal.WithLabelValues("error").Inc()
			log.Error("case create failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to store case", 0)
		}
		return
	}
	s.metrics.ingestTotal.WithLabelValues("ok").Inc()

	stored, err := s.cases.Get(r.Context(), id)
	if err != nil {
		log.Error("read back stored case", slog.Int64("case_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to read stored case", id)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{CaseID: id, Case: stored})
}

// handleListCases handles GET /api/cases with limit/offset paging.
func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	limit, err := queryInt(r, "limit", 100)
	if err != nil || limit < 1 || limit > listLimitMax {
		writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000", 0)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer", 0)
		return
	}

	cases, err := s.cases.List(r.Context(), limit, offset)
	if err != nil {
		log.Error("list cases failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list cases", 0)
		return
	}
	if cases == nil {
		cases = []casestore.Case{}
	}
	writeJSON(w, http.StatusOK, listResponse{Cases: cases})
}

// handleGetCase handles GET /api/cases/{id}.
func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "case id must be a positive integer", 0)
		return
	}

	c, err := s.cases.Get(r.Context(), id)
	if errors.Is(err, casestore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "case not found", 0)
		return
	}
	if err != nil {
		log.Error("get case failed", slog.Int64("case_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to read case", 0)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleQuery handles POST /api/query: embed the situation, fetch candidates,
// score, and return the ranked matches. No candidates at all is a 404.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", 0)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required", 0)
		return
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}

	start := time.Now()
	matches, err := s.retriever.Retrieve(r.Context(), req.Text, req.Profile, req.TopK)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, retrieval.ErrNoMatches):
		s.metrics.queryRequestsTotal.WithLabelValues("no_matches").Inc()
		s.metrics.queryDurationSeconds.WithLabelValues("no_matches").Observe(elapsed.Seconds())
		writeError(w, http.StatusNotFound, "no matching cases found", 0)
		return
	case err != nil:
		s.metrics.queryRequestsTotal.WithLabelValues("error").Inc()
		s.metrics.queryDurationSeconds.WithLabelValues("error").Observe(elapsed.Seconds())
		log.Error("query failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "retrieval backend error", 0)
		return
	}

	s.metrics.queryRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.queryDurationSeconds.WithLabelValues("ok").Observe(elapsed.Seconds())
	log.Info("query served",
		slog.Int("matches", len(matches)),
		slog.Duration("duration", elapsed),
	)
	writeJSON(w, http.StatusOK, queryResponse{Matches: matches})
}

// handleReconcile handles POST /api/admin/reconcile and returns the pass
// report as JSON.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	report, err := s.ingestor.Reconcile(r.Context())
	if err != nil {
		log.Error("reconcile failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "reconcile failed", 0)
		return
	}
	s.metrics.reconcileRepairedTotal.Add(float64(report.Repaired))
	writeJSON(w, http.StatusOK, report)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard JSON error body.
func writeError(w http.ResponseWriter, status int, msg string, caseID int64) {
	writeJSON(w, status, errorResponse{Error: msg, CaseID: caseID})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
