package provider

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/marine-ops/internal/adapter/apiclient"
	"github.com/couchcryptid/marine-ops/internal/adapter/noaa"
	"github.com/couchcryptid/marine-ops/internal/adapter/openmeteo"
	"github.com/couchcryptid/marine-ops/internal/adapter/stormglass"
	"github.com/couchcryptid/marine-ops/internal/adapter/worldtides"
	"github.com/couchcryptid/marine-ops/internal/cache"
	"github.com/couchcryptid/marine-ops/internal/config"
	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrNoProviders is returned when every configured provider was skipped.
	ErrNoProviders = errors.New("no usable providers configured")
	// ErrMissingAPIKey is returned by Connector for a keyed provider without a key.
	ErrMissingAPIKey = errors.New("provider requires an API key")
)

// Connector constructs the provider registered under name.
func Connector(cfg *config.Config, name string, logger *slog.Logger, metrics *observability.Metrics) (domain.Provider, error) {
	api := apiclient.New(name, apiclient.Options{Timeout: cfg.ProviderTimeout, RateLimit: cfg.ProviderRateLimit}, metrics, logger)
	switch name {
	case config.ProviderStormglass:
		if cfg.StormglassAPIKey == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
		}
		return stormglass.NewClient(api, cfg.StormglassAPIKey, cfg.StormglassEndpoint, logger), nil
	case config.ProviderWorldTides:
		if cfg.WorldTidesAPIKey == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
		}
		return worldtides.NewClient(api, cfg.WorldTidesAPIKey, cfg.WorldTidesEndpoint, logger), nil
	case config.ProviderOpenMeteo:
		return openmeteo.NewClient(api, cfg.OpenMeteoEndpoint, openmeteo.ParseMode(cfg.OpenMeteoParse), logger), nil
	case config.ProviderNOAA:
		return noaa.NewClient(api, cfg.NOAAEndpoint, logger), nil
	case config.ProviderSample:
		return Sample{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// NewStore builds the disk cache in cfg.CacheDir fronted by the in-memory LRU.
func NewStore(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*cache.Memory, error) {
	disk, err := cache.NewDisk(cfg.CacheDir, cfg.CacheTTL, clock, logger)
	if err != nil {
		return nil, err
	}
	return cache.NewMemory(disk, cfg.CacheMemoryEntries, cfg.CacheTTL, clock, metrics), nil
}

// Build constructs the connectors named in cfg.Providers, in order, plus the
// layered cache, and returns a Manager over them. Keyed providers without
// an API key are skipped. worldtides only reports tides, so it is attached
// as a tide source rather than a member of the chain.
func Build(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Manager, error) {
	store, err := NewStore(cfg, clock, logger, metrics)
	if err != nil {
		return nil, err
	}

	var (
		chain []domain.Provider
		tides domain.Provider
	)
	for _, name := range cfg.Providers {
		p, err := Connector(cfg, name, logger, metrics)
		switch {
		case errors.Is(err, ErrMissingAPIKey):
			logger.Info("skipping provider without API key", "provider", name)
			continue
		case err != nil:
			return nil, err
		}
		if name == config.ProviderWorldTides {
			tides = p
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	mopts := []ManagerOption{WithConcurrency(cfg.ProviderConcurrency), WithClock(clock)}
	if tides != nil {
		mopts = append(mopts, WithTides(tides))
	}
	return NewManager(chain, store, logger, metrics, mopts...)
}
