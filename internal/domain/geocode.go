package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding attaches a reverse-geocoded place name to an event.
// If geocoder is nil the event is returned unchanged. A failed or empty
// lookup leaves Place empty and records GeoSource accordingly.
func EnrichWithGeocoding(ctx context.Context, event Event, geocoder Geocoder, logger *slog.Logger) Event {
	if geocoder == nil {
		return event
	}
	if event.Geo == nil {
		event.GeoSource = "original"
		return event
	}

	result, err := geocoder.ReverseGeocode(ctx, event.Geo.Lat, event.Geo.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", event.ID,
			"lat", event.Geo.Lat,
			"lon", event.Geo.Lon,
			"error", err,
		)
		event.GeoSource = "failed"
		return event
	}
	if result.PlaceName == "" {
		event.GeoSource = "original"
		return event
	}

	event.Place = result.PlaceName
	event.GeoSource = "reverse"
	return event
}
