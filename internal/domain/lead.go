package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultPropertyValue stands in for an unknown or malformed property value.
const DefaultPropertyValue = 300000.0

// RecencyWindow is how recent an event must be to earn the recency bonus.
const RecencyWindow = 30 * 24 * time.Hour

// Lead is a scored outreach candidate: one storm event joined with its
// enrichment record.
type Lead struct {
	ID              string    `json:"id"`
	BatchID         string    `json:"batch_id"`
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	RegionCode      string    `json:"region_code"`
	RegionName      string    `json:"region_name"`
	Place           string    `json:"place,omitempty"`
	Geo             *Geo      `json:"geo,omitempty"`
	Magnitude       float64   `json:"magnitude"`
	BeginTime       time.Time `json:"begin_time"`
	OwnerName       string    `json:"owner_name,omitempty"`
	OwnerPhone      string    `json:"owner_phone,omitempty"`
	OwnerEmail      string    `json:"owner_email,omitempty"`
	PropertyAddress string    `json:"property_address,omitempty"`
	PropertyValue   *float64  `json:"property_value,omitempty"`
	PropertyType    string    `json:"property_type,omitempty"`
	Source          string    `json:"source"`
	Confidence      float64   `json:"confidence,omitempty"`
	Score           int       `json:"score"`
	CreatedAt       time.Time `json:"created_at"`
}

// EffectivePropertyValue returns the property value, or DefaultPropertyValue
// when it is unknown.
func (l Lead) EffectivePropertyValue() float64 {
	if l.PropertyValue == nil {
		return DefaultPropertyValue
	}
	return *l.PropertyValue
}

// ScoreLead computes the additive lead score for an event, clamped to
// [0, 100]. A nil property value earns a flat +10.
func ScoreLead(magnitude float64, propertyValue *float64, begin, now time.Time) int {
	score := magnitudePoints(magnitude) + valuePoints(propertyValue)
	if !begin.IsZero() && !begin.Before(now.Add(-RecencyWindow)) {
		score += 15
	}
	return clampScore(score)
}

func magnitudePoints(magnitude float64) int {
	switch {
	case magnitude >= 2.0:
		return 50
	case magnitude >= 1.5:
		return 30
	case magnitude >= 1.0:
		return 10
	default:
		return 0
	}
}

func valuePoints(value *float64) int {
	if value == nil {
		return 10
	}
	switch {
	case *value >= 500000:
		return 20
	case *value >= 300000:
		return 10
	default:
		return 0
	}
}

func clampScore(score int) int {
	return max(0, min(100, score))
}

// AssembleLeads joins events with their enrichment records by event ID and
// scores each pair. Events without a record produce no lead; when several
// records share an event ID the first one wins. The result is sorted by
// score, highest first, with ties kept in event order.
func AssembleLeads(events []Event, enrichments []EnrichmentRecord, batchID string, now time.Time) []Lead {
	byEvent := make(map[string]EnrichmentRecord, len(enrichments))
	for _, rec := range enrichments {
		if _, ok := byEvent[rec.EventID]; !ok {
			byEvent[rec.EventID] = rec
		}
	}

	leads := make([]Lead, 0, len(enrichments))
	for _, e := range events {
		rec, ok := byEvent[e.ID]
		if !ok {
			continue
		}
		leads = append(leads, Lead{
			ID:              uuid.New().String(),
			BatchID:         batchID,
			EventID:         e.ID,
			EventType:       e.Type,
			RegionCode:      e.RegionCode,
			RegionName:      e.RegionName,
			Place:           e.Locality(),
			Geo:             e.Geo,
			Magnitude:       e.Magnitude,
			BeginTime:       e.BeginTime,
			OwnerName:       rec.OwnerName,
			OwnerPhone:      rec.OwnerPhone,
			OwnerEmail:      rec.OwnerEmail,
			PropertyAddress: rec.PropertyAddress,
			PropertyValue:   rec.PropertyValue,
			PropertyType:    rec.PropertyType,
			Source:          rec.Source,
			Confidence:      rec.Confidence,
			Score:           ScoreLead(e.Magnitude, rec.PropertyValue, e.BeginTime, now),
			CreatedAt:       now,
		})
	}

	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].Score > leads[j].Score
	})
	return leads
}
