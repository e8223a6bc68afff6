package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichWithGeocoding_NilGeocoder(t *testing.T) {
	event := Event{ID: "evt-1", Geo: &Geo{Lat: 35.2, Lon: -97.4}}

	result := EnrichWithGeocoding(context.Background(), event, nil, discardLogger())

	assert.Empty(t, result.GeoSource)
	assert.Empty(t, result.Place)
}

func TestEnrichWithGeocoding_Reverse(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{
		FormattedAddress: "Norman, Oklahoma, United States",
		PlaceName:        "Norman",
		Confidence:       1,
	}}
	event := Event{ID: "evt-1", Geo: &Geo{Lat: 35.2, Lon: -97.4}, County: "Cleveland"}

	result := EnrichWithGeocoding(context.Background(), event, geo, discardLogger())

	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, "Norman", result.Place)
	assert.Equal(t, "reverse", result.GeoSource)
	assert.Equal(t, "Norman", result.Locality())
}

func TestEnrichWithGeocoding_Failure(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("timeout")}
	event := Event{ID: "evt-1", Geo: &Geo{Lat: 35.2, Lon: -97.4}, County: "Cleveland"}

	result := EnrichWithGeocoding(context.Background(), event, geo, discardLogger())

	assert.Equal(t, "failed", result.GeoSource)
	assert.Empty(t, result.Place)
	assert.Equal(t, "Cleveland", result.Locality())
}

func TestEnrichWithGeocoding_EmptyResult(t *testing.T) {
	geo := &mockGeocoder{}
	event := Event{ID: "evt-1", Geo: &Geo{Lat: 35.2, Lon: -97.4}}

	result := EnrichWithGeocoding(context.Background(), event, geo, discardLogger())

	assert.Equal(t, "original", result.GeoSource)
	assert.Empty(t, result.Place)
}

func TestEnrichWithGeocoding_NoCoordinates(t *testing.T) {
	geo := &mockGeocoder{}
	event := Event{ID: "evt-1"}

	result := EnrichWithGeocoding(context.Background(), event, geo, discardLogger())

	assert.Zero(t, geo.calls)
	assert.Equal(t, "original", result.GeoSource)
}
