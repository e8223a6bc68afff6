package whitepages

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-leads/internal/domain"
	"golang.org/x/time/rate"
)

// AddressLookup is the provider call the Enricher depends on.
type AddressLookup interface {
	ReverseAddress(ctx context.Context, lookup Lookup) (*Match, error)
}

// Enricher implements domain.Enricher against the live provider. Calls are
// spaced at least delay apart. An Enricher is meant for a single run.
type Enricher struct {
	lookup  AddressLookup
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewEnricher creates an Enricher allowing one provider call per delay. A
// non-positive delay disables spacing.
func NewEnricher(lookup AddressLookup, delay time.Duration, logger *slog.Logger) *Enricher {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Enricher{
		lookup:  lookup,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Enrich looks up the event's locality. Provider failures yield an empty
// record whose Source says why.
func (e *Enricher) Enrich(ctx context.Context, req domain.EnrichmentRequest) domain.EnrichmentRecord {
	rec := domain.EnrichmentRecord{EventID: req.Event.ID}
	if err := e.limiter.Wait(ctx); err != nil {
		rec.Source = domain.SourceProviderError
		return rec
	}

	lookup := Lookup{City: req.Event.Locality(), State: req.Event.RegionName}
	match, err := e.lookup.ReverseAddress(ctx, lookup)
	switch {
	case errors.Is(err, ErrUnauthorized):
		e.logger.Warn("property provider rejected credentials", "event_id", req.Event.ID)
		rec.Source = domain.SourceAuthFailed
		return rec
	case err != nil:
		e.logger.Warn("property lookup failed", "event_id", req.Event.ID, "address", lookup.Address(), "error", err)
		rec.Source = domain.SourceProviderError
		return rec
	case match == nil:
		e.logger.Debug("no property match", "event_id", req.Event.ID, "address", lookup.Address())
		rec.Source = domain.SourceNoMatch
		return rec
	}

	rec.OwnerName = match.OwnerName
	rec.OwnerPhone = match.OwnerPhone
	rec.OwnerEmail = match.OwnerEmail
	rec.PropertyValue = match.PropertyValue
	rec.PropertyType = match.PropertyType
	rec.PropertyAddress = match.Address
	rec.Confidence = match.Confidence
	rec.Source = domain.SourceProvider
	return rec
}
