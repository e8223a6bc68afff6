// Package httpadapter serves health, metrics and the batch API over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// BatchProvider exposes the most recently published batch and on-demand
// runs. It is implemented by pipeline.Runner.
type BatchProvider interface {
	Latest() *domain.Batch
	Trigger(ctx context.Context) bool
}

// LeadArchive reads batches that were persisted by a sink.
type LeadArchive interface {
	RecentBatches(ctx context.Context, limit int) ([]domain.BatchSummary, error)
	Leads(ctx context.Context, batchID string) ([]domain.AssessedLead, error)
}

// Server exposes health, readiness, metrics and batch HTTP endpoints.
type Server struct {
	httpServer *http.Server
	batches    BatchProvider
	archive    LeadArchive
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server. The archive routes are only registered
// when archive is non-nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, batches BatchProvider, archive LeadArchive, clock clockwork.Clock, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		batches: batches,
		archive: archive,
		clock:   clock,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /batches/latest", s.handleLatest)
	mux.HandleFunc("GET /batches/latest/leads", s.handleLatestLeads)
	mux.HandleFunc("POST /batches", s.handleTrigger)
	mux.HandleFunc("POST /assessments", s.handleAssess)
	if archive != nil {
		mux.HandleFunc("GET /batches", s.handleRecent)
		mux.HandleFunc("GET /batches/{id}/leads", s.handleArchivedLeads)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type latestResponse struct {
	Batch      domain.BatchSummary    `json:"batch"`
	LeadReport domain.LeadReport      `json:"lead_report"`
	Portfolio  domain.PortfolioReport `json:"portfolio_report"`
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	batch := s.batches.Latest()
	if batch == nil {
		writeError(w, http.StatusNotFound, "no batch has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, latestResponse{
		Batch:      batch.Summary(),
		LeadReport: batch.LeadReport,
		Portfolio:  batch.Portfolio,
	})
}

func (s *Server) handleLatestLeads(w http.ResponseWriter, r *http.Request) {
	batch := s.batches.Latest()
	if batch == nil {
		writeError(w, http.StatusNotFound, "no batch has completed yet")
		return
	}
	limit, err := parseLimit(r, len(batch.Assessed))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	leads := batch.Assessed
	if limit < len(leads) {
		leads = leads[:limit]
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	// The run outlives the request.
	if !s.batches.Trigger(context.WithoutCancel(r.Context())) {
		writeError(w, http.StatusConflict, "a triggered run is already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var raw domain.RawAssessmentInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, domain.Assess(domain.ParseAssessmentInput(raw), s.clock.Now()))
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summaries, err := s.archive.RecentBatches(r.Context(), min(limit, maxListLimit))
	if err != nil {
		s.logger.Error("list batches", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleArchivedLeads(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	leads, err := s.archive.Leads(r.Context(), id)
	if errors.Is(err, domain.ErrBatchNotFound) {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		s.logger.Error("read archived leads", "batch_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read leads")
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

var errInvalidLimit = errors.New("limit must be a positive integer")

// parseLimit reads the optional limit query parameter.
func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errInvalidLimit
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
