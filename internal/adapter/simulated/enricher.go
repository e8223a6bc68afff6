// Package simulated provides a deterministic stand-in for the property data
// provider, used when no provider credentials are configured.
package simulated

import (
	"context"
	"fmt"

	"github.com/couchcryptid/storm-leads/internal/domain"
)

// Enricher generates a synthetic owner from the event's position in the
// batch. The same position always yields the same record.
type Enricher struct{}

// New returns a simulated Enricher.
func New() *Enricher {
	return &Enricher{}
}

// Enrich implements domain.Enricher.
func (Enricher) Enrich(_ context.Context, req domain.EnrichmentRequest) domain.EnrichmentRecord {
	i := req.Position
	value := float64(200000 + i*10000)
	return domain.EnrichmentRecord{
		EventID:       req.Event.ID,
		OwnerName:     fmt.Sprintf("Property Owner %d", i+1),
		OwnerPhone:    fmt.Sprintf("(555) %04d", 1000+i),
		OwnerEmail:    fmt.Sprintf("owner%d@example.com", i+1),
		PropertyValue: &value,
		PropertyType:  "Single Family",
		Source:        domain.SourceSimulated,
	}
}
