// Command leadsvc runs the storm lead pipeline on a schedule and serves the
// latest batch over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-leads/internal/adapter/export"
	"github.com/couchcryptid/storm-leads/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-leads/internal/adapter/kafka"
	"github.com/couchcryptid/storm-leads/internal/adapter/mapbox"
	"github.com/couchcryptid/storm-leads/internal/adapter/noaa"
	"github.com/couchcryptid/storm-leads/internal/adapter/simulated"
	"github.com/couchcryptid/storm-leads/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-leads/internal/adapter/whitepages"
	"github.com/couchcryptid/storm-leads/internal/config"
	"github.com/couchcryptid/storm-leads/internal/domain"
	"github.com/couchcryptid/storm-leads/internal/observability"
	"github.com/couchcryptid/storm-leads/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		cached, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			return fmt.Errorf("geocode cache: %w", err)
		}
		geocoder = cached
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var source pipeline.YearSource
	if cfg.NOAADataDir != "" {
		source = noaa.NewDirSource(cfg.NOAADataDir)
		logger.Info("reading storm events from directory", "dir", cfg.NOAADataDir)
	} else {
		source = noaa.NewHTTPSource(cfg.NOAABaseURL, cfg.NOAATimeout, logger)
	}

	newEnricher := func() domain.Enricher { return simulated.New() }
	if cfg.LiveEnrichment() {
		client := whitepages.NewClient(cfg.WhitepagesAPIKey, cfg.WhitepagesBaseURL, cfg.WhitepagesTimeout, logger)
		newEnricher = func() domain.Enricher {
			return whitepages.NewEnricher(client, cfg.EnrichRateLimit, logger)
		}
		logger.Info("live enrichment enabled", "rate_limit", cfg.EnrichRateLimit)
	} else {
		logger.Warn("WHITEPAGES_API_KEY not set, using simulated enrichment")
	}

	thresholds := domain.PriorityThresholds{High: cfg.HighPriorityMin, Medium: cfg.MediumPriorityMin}

	var sinks []pipeline.Sink
	var archive httpadapter.LeadArchive
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer closeWith(logger, "kafka writer", writer.Close)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: writer})
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer closeWith(logger, "sqlite store", store.Close)
		if err := store.Migrate(context.Background()); err != nil {
			return err
		}
		sinks = append(sinks, pipeline.Sink{Name: "sqlite", Loader: store})
		archive = store
	}
	if cfg.ExportDir != "" {
		sinks = append(sinks, pipeline.Sink{Name: "export", Loader: export.NewWriter(cfg.ExportDir, thresholds, logger)})
	}

	runner := pipeline.New(
		source,
		pipeline.NewNormalizer(geocoder, logger, metrics),
		newEnricher,
		sinks,
		pipeline.Options{
			Years:          cfg.EventYears,
			EventType:      cfg.EventType,
			MinMagnitude:   cfg.MinMagnitude,
			EnrichBatchCap: cfg.EnrichBatchCap,
			TopN:           cfg.TopN,
			Thresholds:     thresholds,
		},
		clock, logger, metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, runner, archive, clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return runner.RunEvery(gctx, cfg.RunInterval, cfg.RunOnStart)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}

func closeWith(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error("close failed", "component", name, "error", err)
	}
}
