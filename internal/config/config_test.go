package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/marine")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "marine-route-assessments", cfg.KafkaSinkTopic)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)

	assert.Equal(t, []string{"stormglass", "open-meteo", "noaa-ww3", "sample"}, cfg.Providers)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 2.0, cfg.ProviderRateLimit)
	assert.Equal(t, 1, cfg.ProviderConcurrency)
	assert.Empty(t, cfg.StormglassAPIKey)
	assert.Equal(t, "https://api.stormglass.io/v2", cfg.StormglassEndpoint)
	assert.Equal(t, "https://marine-api.open-meteo.com/v1/marine", cfg.OpenMeteoEndpoint)
	assert.Equal(t, "strict", cfg.OpenMeteoParse)

	assert.Equal(t, "/home/marine/.wv/cache", cfg.CacheDir)
	assert.Equal(t, 3*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 256, cfg.CacheMemoryEntries)

	assert.Equal(t, []domain.Route{{Name: "mw4-agi", Position: domain.Position{Latitude: 24.52, Longitude: 54.37}}}, cfg.Routes)
	assert.Equal(t, 48, cfg.ForecastHours)
	assert.Equal(t, time.Hour, cfg.AssessmentInterval)
	assert.Empty(t, cfg.ERIRulesPath)
	assert.Nil(t, cfg.EnsembleWeights)
	assert.Equal(t, domain.DefaultRiskThresholds(), cfg.Risk)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PROVIDERS", "open-meteo, sample")
	t.Setenv("PROVIDER_TIMEOUT", "30s")
	t.Setenv("PROVIDER_RATE_LIMIT", "0")
	t.Setenv("PROVIDER_CONCURRENCY", "3")
	t.Setenv("OPEN_METEO_PARSE", "Forecast")
	t.Setenv("CACHE_DIR", "/var/cache/marine")
	t.Setenv("CACHE_TTL", "90m")
	t.Setenv("ROUTES", "mw4-agi=24.52:54.37, das=25.15:52.87")
	t.Setenv("FORECAST_HOURS", "72")
	t.Setenv("ASSESSMENT_INTERVAL", "15m")
	t.Setenv("ENSEMBLE_WEIGHTS", "open-meteo=0.7,sample=0.3")
	t.Setenv("RISK_HIGH_WIND", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"open-meteo", "sample"}, cfg.Providers)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Zero(t, cfg.ProviderRateLimit)
	assert.Equal(t, 3, cfg.ProviderConcurrency)
	assert.Equal(t, "forecast", cfg.OpenMeteoParse)
	assert.Equal(t, "/var/cache/marine", cfg.CacheDir)
	assert.Equal(t, 90*time.Minute, cfg.CacheTTL)
	require.Len(t, cfg.Routes, 2)
	assert.Equal(t, "das", cfg.Routes[1].Name)
	assert.Equal(t, 72, cfg.ForecastHours)
	assert.Equal(t, 15*time.Minute, cfg.AssessmentInterval)
	assert.Equal(t, map[string]float64{"open-meteo": 0.7, "sample": 0.3}, cfg.EnsembleWeights)
	assert.Equal(t, 30.0, cfg.Risk.HighWind)
	assert.Equal(t, 22.0, cfg.Risk.MediumWind)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		env, value, want string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"SHUTDOWN_TIMEOUT", "-1s", "SHUTDOWN_TIMEOUT"},
		{"BATCH_SIZE", "0", "BATCH_SIZE"},
		{"BATCH_FLUSH_INTERVAL", "soon", "BATCH_FLUSH_INTERVAL"},
		{"PROVIDER_TIMEOUT", "0s", "PROVIDER_TIMEOUT"},
		{"PROVIDER_TIMEOUT", "31s", "PROVIDER_TIMEOUT"},
		{"PROVIDER_RATE_LIMIT", "-1", "PROVIDER_RATE_LIMIT"},
		{"PROVIDER_CONCURRENCY", "0", "PROVIDER_CONCURRENCY"},
		{"PROVIDERS", "stormglass,bogus", "PROVIDERS"},
		{"PROVIDERS", " , ", "PROVIDERS"},
		{"OPEN_METEO_PARSE", "lenient", "OPEN_METEO_PARSE"},
		{"CACHE_TTL", "forever", "CACHE_TTL"},
		{"CACHE_MEMORY_ENTRIES", "-5", "CACHE_MEMORY_ENTRIES"},
		{"FORECAST_HOURS", "zero", "FORECAST_HOURS"},
		{"ASSESSMENT_INTERVAL", "-1m", "ASSESSMENT_INTERVAL"},
		{"ROUTES", "nowhere", "ROUTES"},
		{"ROUTES", "north=95:10", "ROUTES"},
		{"ENSEMBLE_WEIGHTS", "sample=-1", "ENSEMBLE_WEIGHTS"},
		{"RISK_MEDIUM_HS", "abc", "RISK_MEDIUM_HS"},
		{"RISK_MEDIUM_HS", "4", "RISK_MEDIUM_HS"},
	}
	for _, tt := range tests {
		t.Run(tt.env+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseRoutes(t *testing.T) {
	routes, err := ParseRoutes("a=1.5:-2.25,b = 0:0")
	require.NoError(t, err)
	assert.Equal(t, []domain.Route{
		{Name: "a", Position: domain.Position{Latitude: 1.5, Longitude: -2.25}},
		{Name: "b", Position: domain.Position{}},
	}, routes)

	_, err = ParseRoutes("")
	require.Error(t, err)
}

func TestParseWeights_Empty(t *testing.T) {
	w, err := ParseWeights("  ")
	require.NoError(t, err)
	assert.Nil(t, w)
}
