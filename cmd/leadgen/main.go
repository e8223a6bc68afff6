// Command leadgen runs the lead pipeline once against local NOAA Storm Events
// detail files and writes the export files. It always uses simulated
// enrichment, so it needs no credentials.
//
// Usage:
//
//	go run ./cmd/leadgen \
//	  -data-dir internal/pipeline/testdata \
//	  -years 2024 \
//	  -out out/ \
//	  -now 2024-07-01
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-leads/internal/adapter/export"
	"github.com/couchcryptid/storm-leads/internal/adapter/noaa"
	"github.com/couchcryptid/storm-leads/internal/adapter/simulated"
	"github.com/couchcryptid/storm-leads/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/couchcryptid/storm-leads/internal/observability"
	"github.com/couchcryptid/storm-leads/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "", "directory containing StormEvents_details CSV files")
	yearsFlag := flag.String("years", "", "comma-separated event years")
	eventType := flag.String("event-type", "Hail", "event type to keep")
	minMag := flag.Float64("min-mag", 1.0, "minimum magnitude")
	capFlag := flag.Int("cap", 100, "maximum events to enrich")
	topN := flag.Int("top", 100, "leads in the top-leads report")
	outDir := flag.String("out", "", "output directory for export files")
	dbPath := flag.String("db", "", "optional SQLite database to archive the batch")
	nowFlag := flag.String("now", "", "fixed run date (YYYY-MM-DD) for reproducible scores")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *dataDir == "" || *yearsFlag == "" || *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -data-dir, -years, -out")
	}
	years, err := parseYears(*yearsFlag)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	if *nowFlag != "" {
		now, err := time.Parse("2006-01-02", *nowFlag)
		if err != nil {
			return fmt.Errorf("invalid -now: %w", err)
		}
		clock = clockwork.NewFakeClockAt(now)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := observability.NewLogger(level, "text")
	metrics := observability.NewMetrics()
	thresholds := domain.DefaultPriorityThresholds()

	sinks := []pipeline.Sink{{Name: "export", Loader: export.NewWriter(*outDir, thresholds, logger)}}
	if *dbPath != "" {
		store, err := sqlite.NewStore(*dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(context.Background()); err != nil {
			return err
		}
		sinks = append(sinks, pipeline.Sink{Name: "sqlite", Loader: store})
	}

	runner := pipeline.New(
		noaa.NewDirSource(*dataDir),
		pipeline.NewNormalizer(nil, logger, metrics),
		func() domain.Enricher { return simulated.New() },
		sinks,
		pipeline.Options{
			Years:          years,
			EventType:      *eventType,
			MinMagnitude:   *minMag,
			EnrichBatchCap: *capFlag,
			TopN:           *topN,
			Thresholds:     thresholds,
		},
		clock, logger, metrics,
	)

	batch, err := runner.Run(context.Background())
	if err != nil {
		return err
	}
	printStats(batch)
	return nil
}

func parseYears(s string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		years = append(years, y)
	}
	return years, nil
}

func printStats(batch *domain.Batch) {
	s := batch.LeadReport.Summary
	log.Printf("batch %s: %d events fetched, %d leads", batch.ID, batch.EventsFetched, s.TotalLeads)
	log.Printf("priority: high=%d medium=%d low=%d", s.Priority.High, s.Priority.Medium, s.Priority.Low)
	if len(batch.SkippedYears) > 0 {
		log.Printf("skipped years: %v", batch.SkippedYears)
	}

	sources := make([]string, 0, len(batch.SourceCounts))
	for k := range batch.SourceCounts {
		sources = append(sources, k)
	}
	sort.Strings(sources)
	for _, k := range sources {
		log.Printf("  source %-16s %d", k, batch.SourceCounts[k])
	}
	for _, r := range batch.LeadReport.Regions {
		log.Printf("  region %-16s %3d leads  avg score %.1f", r.RegionName, r.Leads, r.AverageScore)
	}
	log.Printf("estimated pipeline value: %s", domain.FormatMoney(batch.Portfolio.Summary.TotalEstimatedValue))
}
