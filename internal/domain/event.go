package domain

import (
	"context"
	"time"
)

// RawEventRecord is one row of a NOAA Storm Events details file, keyed by
// CSV header. All values are kept as the source strings.
type RawEventRecord struct {
	EventID       string `json:"EVENT_ID" csv:"EVENT_ID"`
	EventType     string `json:"EVENT_TYPE" csv:"EVENT_TYPE"`
	Magnitude     string `json:"MAGNITUDE" csv:"MAGNITUDE"`
	BeginDateTime string `json:"BEGIN_DATE_TIME" csv:"BEGIN_DATE_TIME"`
	BeginLat      string `json:"BEGIN_LAT" csv:"BEGIN_LAT"`
	BeginLon      string `json:"BEGIN_LON" csv:"BEGIN_LON"`
	StateFIPS     string `json:"STATE_FIPS" csv:"STATE_FIPS"`
	State         string `json:"STATE" csv:"STATE"`
	CZName        string `json:"CZ_NAME" csv:"CZ_NAME"`
	Year          string `json:"YEAR" csv:"YEAR"`
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Event is a storm event after parsing. Geo is nil when either coordinate
// was missing from the source row.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Magnitude  float64   `json:"magnitude"`
	BeginTime  time.Time `json:"begin_time"`
	Geo        *Geo      `json:"geo,omitempty"`
	RegionCode string    `json:"region_code"`
	RegionName string    `json:"region_name,omitempty"`
	County     string    `json:"county,omitempty"`
	Year       int       `json:"year,omitempty"`

	// Reverse geocoding enrichment fields.
	Place     string `json:"place,omitempty"`
	GeoSource string `json:"geo_source,omitempty"` // "reverse", "original", "failed"
}

// Locality returns the best available place name for the event: the
// reverse-geocoded place when known, otherwise the NOAA county/zone name.
func (e Event) Locality() string {
	if e.Place != "" {
		return e.Place
	}
	return e.County
}

// Enrichment source tags.
const (
	SourceSimulated     = "simulated"
	SourceProvider      = "provider"
	SourceNoMatch       = "provider_no_match"
	SourceAuthFailed    = "provider_auth_failed"
	SourceProviderError = "provider_error"
)

// IsDegradedSource reports whether an enrichment source tag marks a record
// that carries no provider data.
func IsDegradedSource(tag string) bool {
	return tag != SourceSimulated && tag != SourceProvider
}

// EnrichmentRecord is the owner/property detail attached to one event. Every
// field except EventID and Source may be empty.
type EnrichmentRecord struct {
	EventID         string   `json:"event_id"`
	OwnerName       string   `json:"owner_name,omitempty"`
	OwnerPhone      string   `json:"owner_phone,omitempty"`
	OwnerEmail      string   `json:"owner_email,omitempty"`
	PropertyAddress string   `json:"property_address,omitempty"`
	PropertyValue   *float64 `json:"property_value,omitempty"`
	PropertyType    string   `json:"property_type,omitempty"`
	Source          string   `json:"source"`
	Confidence      float64  `json:"confidence,omitempty"`
}

// EnrichmentRequest identifies the event to enrich and its position within
// the current batch.
type EnrichmentRequest struct {
	Position int
	Event    Event
}

// Enricher attaches property/owner data to an event. Implementations never
// fail: an unavailable provider yields an empty record with a degraded
// source tag.
type Enricher interface {
	Enrich(ctx context.Context, req EnrichmentRequest) EnrichmentRecord
}
