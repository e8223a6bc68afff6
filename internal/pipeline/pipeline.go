package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/couchcryptid/storm-leads/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// BatchLoader writes a completed batch to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, batch *domain.Batch) error
}

// Sink is a named BatchLoader. The name labels log lines and metrics.
type Sink struct {
	Name   string
	Loader BatchLoader
}

// EnricherFactory returns the enricher for a single run. Live enrichers
// carry their own rate limiter, so each run gets a fresh one.
type EnricherFactory func() domain.Enricher

// Options control what a run fetches and how it reports.
type Options struct {
	Years          []int
	EventType      string
	MinMagnitude   float64
	EnrichBatchCap int
	TopN           int
	Thresholds     domain.PriorityThresholds
}

// Runner executes the lead pipeline and holds the last completed batch.
type Runner struct {
	source      YearSource
	normalizer  *Normalizer
	newEnricher EnricherFactory
	sinks       []Sink
	opts        Options
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics

	latest    atomic.Pointer[domain.Batch]
	triggered atomic.Bool
}

// New creates a Runner with the given stages and observability.
func New(src YearSource, n *Normalizer, newEnricher EnricherFactory, sinks []Sink, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		source:      src,
		normalizer:  n,
		newEnricher: newEnricher,
		sinks:       sinks,
		opts:        opts,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once a batch has completed, or an error
// describing why the service is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if r.latest.Load() == nil {
		return errors.New("no lead batch has completed yet")
	}
	return nil
}

// Latest returns the last completed batch, or nil before the first run
// finishes. It never blocks on a run in progress.
func (r *Runner) Latest() *domain.Batch {
	return r.latest.Load()
}

// Run executes one full pipeline pass and publishes the resulting batch.
// Stage failures degrade the batch instead of failing the run; only context
// cancellation returns an error, in which case nothing is published.
func (r *Runner) Run(ctx context.Context) (*domain.Batch, error) {
	r.metrics.PipelineRunning.Inc()
	defer r.metrics.PipelineRunning.Dec()

	batch := &domain.Batch{
		ID:           uuid.New().String(),
		StartedAt:    r.clock.Now(),
		Years:        append([]int(nil), r.opts.Years...),
		SourceCounts: make(map[string]int),
	}
	log := r.logger.With("batch_id", batch.ID)
	log.Info("pipeline run started", "years", batch.Years, "event_type", r.opts.EventType, "min_magnitude", r.opts.MinMagnitude)

	events, skipped := FetchEvents(ctx, r.source, r.opts.Years, r.opts.MinMagnitude, r.opts.EventType, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch.SkippedYears = skipped
	batch.EventsFetched = len(events)
	r.metrics.YearsSkipped.Add(float64(len(skipped)))
	r.metrics.EventsFetched.Add(float64(len(events)))

	normalized := r.normalizer.Normalize(events)
	toEnrich := normalized
	if r.opts.EnrichBatchCap > 0 && len(toEnrich) > r.opts.EnrichBatchCap {
		toEnrich = toEnrich[:r.opts.EnrichBatchCap]
	}
	batch.EventsGeocoded = r.normalizer.Geocode(ctx, toEnrich)

	enrichments, err := r.enrich(ctx, toEnrich, batch.SourceCounts)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	batch.Leads = domain.AssembleLeads(normalized, enrichments, batch.ID, now)
	batch.Assessed = make([]domain.AssessedLead, len(batch.Leads))
	for i, lead := range batch.Leads {
		batch.Assessed[i] = domain.AssessedLead{Lead: lead, Assessment: domain.AssessLead(lead, now)}
	}
	batch.LeadReport = domain.AggregateLeads(batch.Leads, r.opts.TopN, r.opts.Thresholds)
	batch.Portfolio = domain.AggregatePortfolio(batch.Assessed, r.opts.TopN, r.opts.Thresholds)
	batch.CompletedAt = r.clock.Now()

	if r.publish(batch) {
		r.metrics.LastBatchLeads.Set(float64(len(batch.Leads)))
	} else {
		log.Warn("newer batch already published, keeping it")
	}
	r.load(ctx, batch, log)

	outcome := "complete"
	if batch.Degraded() {
		outcome = "degraded"
	}
	r.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	r.metrics.RunDuration.Observe(batch.CompletedAt.Sub(batch.StartedAt).Seconds())
	r.metrics.LeadsProduced.Add(float64(len(batch.Leads)))
	log.Info("pipeline run complete",
		"outcome", outcome,
		"events", batch.EventsFetched,
		"normalized", len(normalized),
		"enriched", len(enrichments),
		"leads", len(batch.Leads),
		"skipped_years", batch.SkippedYears,
		"sources", batch.SourceCounts,
	)
	return batch, nil
}

// enrich calls the run's enricher once per event, in order.
func (r *Runner) enrich(ctx context.Context, events []domain.Event, counts map[string]int) ([]domain.EnrichmentRecord, error) {
	enricher := r.newEnricher()
	out := make([]domain.EnrichmentRecord, 0, len(events))
	for i, e := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := enricher.Enrich(ctx, domain.EnrichmentRequest{Position: i, Event: e})
		rec.EventID = e.ID
		counts[rec.Source]++
		r.metrics.Enrichments.WithLabelValues(rec.Source).Inc()
		out = append(out, rec)
	}
	return out, nil
}

// publish swaps in batch unless a batch from a later-started run is
// already published.
func (r *Runner) publish(batch *domain.Batch) bool {
	for {
		cur := r.latest.Load()
		if cur != nil && cur.StartedAt.After(batch.StartedAt) {
			return false
		}
		if r.latest.CompareAndSwap(cur, batch) {
			return true
		}
	}
}

// load hands the batch to every sink. A failing sink is logged and counted
// and does not stop the others.
func (r *Runner) load(ctx context.Context, batch *domain.Batch, log *slog.Logger) {
	for _, s := range r.sinks {
		if err := s.Loader.LoadBatch(ctx, batch); err != nil {
			log.Error("sink failed", "sink", s.Name, "error", err)
			r.metrics.SinkErrors.WithLabelValues(s.Name).Inc()
			continue
		}
		log.Debug("sink loaded batch", "sink", s.Name, "leads", len(batch.Leads))
	}
}

// Trigger starts a run in the background and returns true, or returns false
// when a triggered run is still in progress.
func (r *Runner) Trigger(ctx context.Context) bool {
	if !r.triggered.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer r.triggered.Store(false)
		if _, err := r.Run(ctx); err != nil {
			r.logger.Warn("triggered run aborted", "error", err)
		}
	}()
	return true
}

// RunEvery runs the pipeline on a fixed interval until ctx is cancelled,
// optionally starting with an immediate run.
func (r *Runner) RunEvery(ctx context.Context, interval time.Duration, runOnStart bool) error {
	r.logger.Info("scheduler started", "interval", interval, "run_on_start", runOnStart)
	if runOnStart {
		r.runScheduled(ctx)
	}

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			r.runScheduled(ctx)
		}
	}
}

func (r *Runner) runScheduled(ctx context.Context) {
	if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("scheduled run failed", "error", err)
	}
}
