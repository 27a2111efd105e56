package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Provider names accepted in PROVIDERS.
const (
	ProviderStormglass = "stormglass"
	ProviderWorldTides = "worldtides"
	ProviderOpenMeteo  = "open-meteo"
	ProviderNOAA       = "noaa-ww3"
	ProviderSample     = "sample"
)

var knownProviders = []string{ProviderStormglass, ProviderWorldTides, ProviderOpenMeteo, ProviderNOAA, ProviderSample}

// maxProviderTimeout caps PROVIDER_TIMEOUT.
const maxProviderTimeout = 30 * time.Second

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers   []string
	KafkaSinkTopic string

	BatchSize          int
	BatchFlushInterval time.Duration

	// Provider chain, in priority order.
	Providers           []string
	ProviderTimeout     time.Duration
	ProviderRateLimit   float64
	ProviderConcurrency int
	StormglassAPIKey    string
	StormglassEndpoint  string
	WorldTidesAPIKey    string
	WorldTidesEndpoint  string
	OpenMeteoEndpoint   string
	OpenMeteoParse      string
	NOAAEndpoint        string

	CacheDir           string
	CacheTTL           time.Duration
	CacheMemoryEntries int

	Routes             []domain.Route
	ForecastHours      int
	AssessmentInterval time.Duration
	ERIRulesPath       string
	EnsembleWeights    map[string]float64
	Risk               domain.RiskThresholds
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	providerTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("PROVIDER_TIMEOUT", "10s"))
	if err != nil || providerTimeout <= 0 || providerTimeout > maxProviderTimeout {
		return nil, errors.New("invalid PROVIDER_TIMEOUT")
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("PROVIDER_RATE_LIMIT", "2"), 64)
	if err != nil || rateLimit < 0 {
		return nil, errors.New("invalid PROVIDER_RATE_LIMIT")
	}

	concurrency, err := parsePositiveInt("PROVIDER_CONCURRENCY", "1")
	if err != nil {
		return nil, err
	}

	openMeteoParse := strings.ToLower(sharedcfg.EnvOrDefault("OPEN_METEO_PARSE", "strict"))
	if openMeteoParse != "strict" && openMeteoParse != "forecast" {
		return nil, errors.New("invalid OPEN_METEO_PARSE")
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("CACHE_TTL", "3h"))
	if err != nil || cacheTTL <= 0 {
		return nil, errors.New("invalid CACHE_TTL")
	}

	memoryEntries, err := parsePositiveInt("CACHE_MEMORY_ENTRIES", "256")
	if err != nil {
		return nil, err
	}

	hours, err := parsePositiveInt("FORECAST_HOURS", "48")
	if err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(sharedcfg.EnvOrDefault("ASSESSMENT_INTERVAL", "1h"))
	if err != nil || interval <= 0 {
		return nil, errors.New("invalid ASSESSMENT_INTERVAL")
	}

	routes, err := ParseRoutes(sharedcfg.EnvOrDefault("ROUTES", "mw4-agi=24.52:54.37"))
	if err != nil {
		return nil, err
	}

	weights, err := ParseWeights(os.Getenv("ENSEMBLE_WEIGHTS"))
	if err != nil {
		return nil, err
	}

	risk, err := parseRisk()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "marine-route-assessments"),

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		Providers:           parseList(sharedcfg.EnvOrDefault("PROVIDERS", "stormglass,open-meteo,noaa-ww3,sample")),
		ProviderTimeout:     providerTimeout,
		ProviderRateLimit:   rateLimit,
		ProviderConcurrency: concurrency,
		StormglassAPIKey:    os.Getenv("STORMGLASS_API_KEY"),
		StormglassEndpoint:  sharedcfg.EnvOrDefault("STORMGLASS_ENDPOINT", "https://api.stormglass.io/v2"),
		WorldTidesAPIKey:    os.Getenv("WORLDTIDES_API_KEY"),
		WorldTidesEndpoint:  sharedcfg.EnvOrDefault("WORLDTIDES_ENDPOINT", "https://www.worldtides.info/api/v3"),
		OpenMeteoEndpoint:   sharedcfg.EnvOrDefault("OPEN_METEO_ENDPOINT", "https://marine-api.open-meteo.com/v1/marine"),
		OpenMeteoParse:      openMeteoParse,
		NOAAEndpoint:        sharedcfg.EnvOrDefault("NOAA_WW3_ENDPOINT", "https://nomads.ncep.noaa.gov/api/noaa_ww3"),

		CacheDir:           sharedcfg.EnvOrDefault("CACHE_DIR", defaultCacheDir()),
		CacheTTL:           cacheTTL,
		CacheMemoryEntries: memoryEntries,

		Routes:             routes,
		ForecastHours:      hours,
		AssessmentInterval: interval,
		ERIRulesPath:       os.Getenv("ERI_RULES_PATH"),
		EnsembleWeights:    weights,
		Risk:               risk,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if len(cfg.Providers) == 0 {
		return nil, errors.New("PROVIDERS is required")
	}
	for _, p := range cfg.Providers {
		if !slices.Contains(knownProviders, p) {
			return nil, fmt.Errorf("invalid PROVIDERS: unknown provider %q", p)
		}
	}

	return cfg, nil
}

// ParseRoutes parses "name=lat:lon[,name=lat:lon]".
func ParseRoutes(s string) ([]domain.Route, error) {
	var routes []domain.Route
	for _, item := range parseList(s) {
		name, coords, ok := strings.Cut(item, "=")
		latStr, lonStr, ok2 := strings.Cut(coords, ":")
		if !ok || !ok2 || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid ROUTES entry %q", item)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ROUTES entry %q", item)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ROUTES entry %q", item)
		}
		pos, err := domain.NewPosition(lat, lon)
		if err != nil {
			return nil, fmt.Errorf("invalid ROUTES entry %q: %w", item, err)
		}
		routes = append(routes, domain.Route{Name: strings.TrimSpace(name), Position: pos})
	}
	if len(routes) == 0 {
		return nil, errors.New("ROUTES is required")
	}
	return routes, nil
}

// ParseWeights parses "provider=weight,...". An empty string disables the
// ensemble and returns nil.
func ParseWeights(s string) (map[string]float64, error) {
	items := parseList(s)
	if len(items) == 0 {
		return nil, nil
	}
	weights := make(map[string]float64, len(items))
	for _, item := range items {
		name, val, ok := strings.Cut(item, "=")
		w, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if !ok || err != nil || w < 0 || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid ENSEMBLE_WEIGHTS entry %q", item)
		}
		weights[strings.TrimSpace(name)] = w
	}
	return weights, nil
}

func parseRisk() (domain.RiskThresholds, error) {
	t := domain.DefaultRiskThresholds()
	fields := []struct {
		env string
		dst *float64
	}{
		{"RISK_MEDIUM_HS", &t.MediumHs},
		{"RISK_HIGH_HS", &t.HighHs},
		{"RISK_MEDIUM_WIND", &t.MediumWind},
		{"RISK_HIGH_WIND", &t.HighWind},
	}
	for _, f := range fields {
		s := os.Getenv(f.env)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return domain.RiskThresholds{}, fmt.Errorf("invalid %s", f.env)
		}
		*f.dst = v
	}
	if t.MediumHs > t.HighHs {
		return domain.RiskThresholds{}, errors.New("RISK_MEDIUM_HS must not exceed RISK_HIGH_HS")
	}
	if t.MediumWind > t.HighWind {
		return domain.RiskThresholds{}, errors.New("RISK_MEDIUM_WIND must not exceed RISK_HIGH_WIND")
	}
	return t, nil
}

func parsePositiveInt(env, fallback string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(env, fallback))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", env)
	}
	return n, nil
}

func parseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "wv-cache")
	}
	return filepath.Join(home, ".wv", "cache")
}
