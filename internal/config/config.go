package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Event source.
	EventYears   []int
	EventType    string
	MinMagnitude float64
	NOAABaseURL  string
	NOAADataDir  string
	NOAATimeout  time.Duration

	// Enrichment. A Whitepages API key switches enrichment to the live provider.
	EnrichBatchCap    int
	EnrichRateLimit   time.Duration
	WhitepagesAPIKey  string
	WhitepagesBaseURL string
	WhitepagesTimeout time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Batch sinks.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaLeadsTopic string
	SQLitePath      string
	ExportDir       string

	// Reporting.
	TopN              int
	HighPriorityMin   int
	MediumPriorityMin int

	// Scheduling.
	RunInterval time.Duration
	RunOnStart  bool
}

// LiveEnrichment reports whether enrichment should use the live provider.
func (c *Config) LiveEnrichment() bool {
	return c.WhitepagesAPIKey != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	years, err := parseYears(sharedcfg.EnvOrDefault("EVENT_YEARS", defaultYears()))
	if err != nil {
		return nil, err
	}

	minMagnitude, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MIN_MAGNITUDE", "1.0"), 64)
	if err != nil || minMagnitude < 0 {
		return nil, errors.New("invalid MIN_MAGNITUDE")
	}

	noaaTimeout, err := parseDuration("NOAA_TIMEOUT", "2m", false)
	if err != nil {
		return nil, err
	}
	rateLimit, err := parseDuration("ENRICH_RATE_LIMIT", "2s", true)
	if err != nil {
		return nil, err
	}
	whitepagesTimeout, err := parseDuration("WHITEPAGES_TIMEOUT", "10s", false)
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s", false)
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "6h", false)
	if err != nil {
		return nil, err
	}

	ints := map[string]int{
		"ENRICH_BATCH_CAP":    100,
		"TOP_N":               100,
		"HIGH_PRIORITY_MIN":   70,
		"MEDIUM_PRIORITY_MIN": 40,
	}
	for key, def := range ints {
		n, err := parseNonNegativeInt(key, def)
		if err != nil {
			return nil, err
		}
		ints[key] = n
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		EventYears:   years,
		EventType:    sharedcfg.EnvOrDefault("EVENT_TYPE", "Hail"),
		MinMagnitude: minMagnitude,
		NOAABaseURL:  sharedcfg.EnvOrDefault("NOAA_BASE_URL", "https://www.ncei.noaa.gov/pub/data/swdi/stormevents/csvfiles/"),
		NOAADataDir:  os.Getenv("NOAA_DATA_DIR"),
		NOAATimeout:  noaaTimeout,

		EnrichBatchCap:    ints["ENRICH_BATCH_CAP"],
		EnrichRateLimit:   rateLimit,
		WhitepagesAPIKey:  os.Getenv("WHITEPAGES_API_KEY"),
		WhitepagesBaseURL: sharedcfg.EnvOrDefault("WHITEPAGES_BASE_URL", "https://proapi.whitepages.com/3.0"),
		WhitepagesTimeout: whitepagesTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaLeadsTopic: sharedcfg.EnvOrDefault("KAFKA_LEADS_TOPIC", "storm-leads"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		ExportDir:       os.Getenv("EXPORT_DIR"),

		TopN:              ints["TOP_N"],
		HighPriorityMin:   ints["HIGH_PRIORITY_MIN"],
		MediumPriorityMin: ints["MEDIUM_PRIORITY_MIN"],

		RunInterval: runInterval,
		RunOnStart:  sharedcfg.EnvOrDefault("RUN_ON_START", "true") == "true",
	}

	if strings.TrimSpace(cfg.EventType) == "" {
		return nil, errors.New("EVENT_TYPE is required")
	}
	if cfg.EnrichBatchCap == 0 {
		return nil, errors.New("ENRICH_BATCH_CAP must be positive")
	}
	if cfg.MediumPriorityMin > cfg.HighPriorityMin {
		return nil, errors.New("MEDIUM_PRIORITY_MIN must not exceed HIGH_PRIORITY_MIN")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaLeadsTopic == "" {
		return nil, errors.New("KAFKA_LEADS_TOPIC is required when KAFKA_ENABLED is true")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// defaultYears is the previous and current calendar year.
func defaultYears() string {
	y := time.Now().Year()
	return fmt.Sprintf("%d,%d", y-1, y)
}

// parseYears accepts a comma-separated list of years and ranges, e.g.
// "2022-2024,2026". The result is sorted and deduplicated.
func parseYears(s string) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, isRange := strings.Cut(part, "-")
		start, err := parseYear(from)
		if err != nil {
			return nil, err
		}
		end := start
		if isRange {
			if end, err = parseYear(to); err != nil {
				return nil, err
			}
		}
		if end < start {
			return nil, fmt.Errorf("invalid EVENT_YEARS range %q", part)
		}
		for y := start; y <= end; y++ {
			seen[y] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, errors.New("EVENT_YEARS is required")
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 1950 || y > 2100 {
		return 0, fmt.Errorf("invalid EVENT_YEARS value %q", s)
	}
	return y, nil
}

// parseDuration reads a positive duration, or a non-negative one when
// allowZero is set.
func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
