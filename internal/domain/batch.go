package domain

import (
	"errors"
	"time"
)

// Batch is the complete result of one pipeline run. A batch is built in full
// before it is published and is not modified afterwards.
type Batch struct {
	ID             string          `json:"id"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
	Years          []int           `json:"years"`
	SkippedYears   []int           `json:"skipped_years"`
	EventsFetched  int             `json:"events_fetched"`
	EventsGeocoded int             `json:"events_geocoded"`
	Leads          []Lead          `json:"leads"`
	Assessed       []AssessedLead  `json:"assessed"`
	LeadReport     LeadReport      `json:"lead_report"`
	Portfolio      PortfolioReport `json:"portfolio_report"`
	SourceCounts   map[string]int  `json:"source_counts"`
}

// Degraded reports whether any year was skipped or any lead was built from
// an enrichment record without provider data.
func (b *Batch) Degraded() bool {
	if len(b.SkippedYears) > 0 {
		return true
	}
	for tag, n := range b.SourceCounts {
		if n > 0 && IsDegradedSource(tag) {
			return true
		}
	}
	return false
}

// ErrBatchNotFound is returned by batch archives for an unknown batch ID.
var ErrBatchNotFound = errors.New("batch not found")

// BatchSummary is a batch without its leads, as listed by an archive.
type BatchSummary struct {
	ID            string         `json:"id"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   time.Time      `json:"completed_at"`
	EventsFetched int            `json:"events_fetched"`
	LeadCount     int            `json:"lead_count"`
	Degraded      bool           `json:"degraded"`
	SkippedYears  []int          `json:"skipped_years"`
	SourceCounts  map[string]int `json:"source_counts"`
}

// Summary returns the batch's BatchSummary.
func (b *Batch) Summary() BatchSummary {
	return BatchSummary{
		ID:            b.ID,
		StartedAt:     b.StartedAt,
		CompletedAt:   b.CompletedAt,
		EventsFetched: b.EventsFetched,
		LeadCount:     len(b.Leads),
		Degraded:      b.Degraded(),
		SkippedYears:  b.SkippedYears,
		SourceCounts:  b.SourceCounts,
	}
}
