package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/couchcryptid/storm-leads/internal/observability"
)

// Normalizer applies the geo normalization step and optional reverse
// geocoding to fetched events.
type Normalizer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewNormalizer creates a Normalizer. Pass a nil geocoder to disable
// geocoding enrichment.
func NewNormalizer(geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *Normalizer {
	return &Normalizer{
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
}

// Normalize drops events without coordinates and resolves region names.
func (n *Normalizer) Normalize(events []domain.Event) []domain.Event {
	out := domain.NormalizeEvents(events, n.logger)
	n.metrics.EventsDropped.Add(float64(len(events) - len(out)))
	return out
}

// Geocode reverse-geocodes events in place and returns how many received a
// place name. It is a no-op without a geocoder.
func (n *Normalizer) Geocode(ctx context.Context, events []domain.Event) int {
	if n.geocoder == nil {
		return 0
	}
	resolved := 0
	for i := range events {
		if ctx.Err() != nil {
			break
		}
		events[i] = domain.EnrichWithGeocoding(ctx, events[i], n.geocoder, n.logger)
		if events[i].GeoSource == "reverse" {
			resolved++
		}
	}
	return resolved
}
