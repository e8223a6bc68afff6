package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"github.com/couchcryptid/storm-leads/internal/domain"
)

// YearSource returns the raw event rows for one calendar year.
type YearSource interface {
	FetchYear(ctx context.Context, year int) ([]domain.RawEventRecord, error)
}

// FetchEvents fetches every requested year in ascending order and keeps the
// events matching eventType (case-insensitive) with magnitude at least
// minMagnitude. A year whose fetch fails is logged and skipped; its number
// is returned in skipped. Events keep source order within and across years.
func FetchEvents(ctx context.Context, src YearSource, years []int, minMagnitude float64, eventType string, logger *slog.Logger) (events []domain.Event, skipped []int) {
	years = slices.Clone(years)
	slices.Sort(years)
	years = slices.Compact(years)

	events = make([]domain.Event, 0)
	skipped = make([]int, 0)
	for _, year := range years {
		if ctx.Err() != nil {
			break
		}
		records, err := src.FetchYear(ctx, year)
		if err != nil {
			logger.Warn("event source unavailable, skipping year", "year", year, "error", err)
			skipped = append(skipped, year)
			continue
		}

		kept := 0
		for _, rec := range records {
			event := domain.ParseRawEventRecord(rec)
			if !domain.MatchesFilter(event, eventType, minMagnitude) {
				continue
			}
			if event.Year == 0 {
				event.Year = year
			}
			events = append(events, event)
			kept++
		}
		logger.Info("fetched events", "year", year, "rows", len(records), "matched", kept)
	}
	return events, skipped
}
