package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// eventTimeLayouts are tried in order when parsing BEGIN_DATE_TIME.
var eventTimeLayouts = []string{
	"02-Jan-06 15:04:05",
	"02-Jan-2006 15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseRawEventRecord converts a raw NOAA row into an Event. It never fails:
// unparseable numbers become zero, unparseable times become the zero time,
// and a missing coordinate leaves Geo nil.
func ParseRawEventRecord(rec RawEventRecord) Event {
	eventType := strings.TrimSpace(rec.EventType)
	magnitude := normalizeMagnitude(eventType, parseMagnitude(rec.Magnitude))
	regionCode := normalizeRegionCode(rec.StateFIPS)

	event := Event{
		ID:         strings.TrimSpace(rec.EventID),
		Type:       eventType,
		Magnitude:  magnitude,
		BeginTime:  parseEventTime(rec.BeginDateTime),
		Geo:        parseGeo(rec.BeginLat, rec.BeginLon),
		RegionCode: regionCode,
		County:     titleCase(rec.CZName),
		Year:       int(parseFloatOrZero(rec.Year)),
	}
	if event.ID == "" {
		event.ID = generateID(rec)
	}
	return event
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseMagnitude returns 0 for empty and "UNK" values.
func parseMagnitude(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "UNK") {
		return 0
	}
	return parseFloatOrZero(strings.TrimSuffix(raw, `"`))
}

// normalizeMagnitude corrects hail sizes reported in hundredths of inches
// (175 = 1.75in). Values >= 10 are assumed to use this encoding; the largest
// hail recorded in the US was about 8 inches (Vivian, SD, 2010).
func normalizeMagnitude(eventType string, magnitude float64) float64 {
	if strings.EqualFold(eventType, "hail") && magnitude >= 10 {
		return magnitude / 100.0
	}
	return magnitude
}

func parseEventTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseGeo returns nil unless both coordinates parse.
func parseGeo(lat, lon string) *Geo {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return nil
	}
	la, errLat := strconv.ParseFloat(lat, 64)
	lo, errLon := strconv.ParseFloat(lon, 64)
	if errLat != nil || errLon != nil {
		return nil
	}
	return &Geo{Lat: la, Lon: lo}
}

// titleCase turns NOAA's upper-case zone names ("OKLAHOMA CITY") into
// "Oklahoma City".
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// generateID produces a deterministic ID for rows that lack an EVENT_ID.
func generateID(rec RawEventRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		rec.EventType, rec.StateFIPS, rec.BeginLat, rec.BeginLon, rec.BeginDateTime, rec.Magnitude)
	hash := sha256.Sum256([]byte(input))
	return "evt-" + hex.EncodeToString(hash[:8])
}

// MatchesFilter reports whether an event has the wanted type (compared
// case-insensitively) and at least the minimum magnitude.
func MatchesFilter(event Event, eventType string, minMagnitude float64) bool {
	return strings.EqualFold(event.Type, strings.TrimSpace(eventType)) && event.Magnitude >= minMagnitude
}

// NormalizeEvents drops events without coordinates and resolves each
// remaining event's region name. Relative order is preserved.
func NormalizeEvents(events []Event, logger *slog.Logger) []Event {
	out := make([]Event, 0, len(events))
	dropped := 0
	for _, e := range events {
		if e.Geo == nil {
			logger.Debug("dropping event without coordinates", "event_id", e.ID)
			dropped++
			continue
		}
		e.RegionName = RegionName(e.RegionCode)
		out = append(out, e)
	}
	if dropped > 0 {
		logger.Info("events dropped during normalization", "dropped", dropped, "kept", len(out))
	}
	return out
}
