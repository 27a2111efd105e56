package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/marine-ops/internal/cache"
	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Manager fetches forecasts from an ordered provider chain. The first
// provider in the chain to return a non-empty series wins; when all fail, the
// newest unexpired cache entry is served instead.
type Manager struct {
	providers   []domain.Provider
	tides       domain.Provider
	store       cache.Store
	concurrency int
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// ManagerOption configures optional Manager behaviour.
type ManagerOption func(*Manager)

// WithConcurrency sets how many providers may be in flight at once. The
// default of 1 queries providers strictly one after another.
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithTides merges tide heights from p into every winning series.
func WithTides(p domain.Provider) ManagerOption {
	return func(m *Manager) { m.tides = p }
}

// WithClock overrides the clock used to stamp cache entries.
func WithClock(c clockwork.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// NewManager creates a Manager over providers in priority order.
func NewManager(providers []domain.Provider, store cache.Store, logger *slog.Logger, metrics *observability.Metrics, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	m := &Manager{
		providers:   providers,
		store:       store,
		concurrency: 1,
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Providers returns the provider names in priority order.
func (m *Manager) Providers() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

type attempt struct {
	index  int
	series domain.Timeseries
	err    error
}

// Fetch returns the highest-priority successful forecast. Lower-priority
// requests still in flight are cancelled once a winner is known.
func (m *Manager) Fetch(ctx context.Context, req domain.ForecastRequest) (domain.FetchResult, error) {
	if err := req.Validate(); err != nil {
		return domain.FetchResult{}, err
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := len(m.providers)
	results := make(chan attempt, n)
	launched := 0
	launch := func() {
		i, p := launched, m.providers[launched]
		launched++
		go func() {
			ts, err := m.fetchOne(fetchCtx, p, req)
			results <- attempt{index: i, series: ts, err: err}
		}()
	}
	for launched < min(m.concurrency, n) {
		launch()
	}

	// Providers are launched here only, one per finished attempt, so the
	// chain never runs ahead of the priority order by more than the
	// configured width.
	outcomes := make([]*attempt, n)
	next := 0
	for next < n {
		var a attempt
		select {
		case a = <-results:
		case <-ctx.Done():
			return domain.FetchResult{}, ctx.Err()
		}
		outcomes[a.index] = &a
		for next < n && outcomes[next] != nil {
			if outcomes[next].err == nil {
				cancel()
				winner := m.providers[next]
				return domain.FetchResult{
					Provider:  winner.Name(),
					Series:    m.mergeTides(ctx, req, outcomes[next].series),
					FetchedAt: m.clock.Now().UTC(),
				}, nil
			}
			next++
		}
		if launched < n {
			launch()
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.FetchResult{}, err
	}
	return m.fromCache(req)
}

// fetchOne queries a single provider and caches a successful result. Empty
// series count as failures.
func (m *Manager) fetchOne(ctx context.Context, p domain.Provider, req domain.ForecastRequest) (domain.Timeseries, error) {
	name := p.Name()
	ts, err := p.Fetch(ctx, req)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return domain.Timeseries{}, err
		}
		m.metrics.ProviderRequests.WithLabelValues(name, "error").Inc()
		m.metrics.ProviderFallbacks.WithLabelValues(fallbackReason(err)).Inc()
		m.logger.Warn("provider failed", "provider", name, "error", err)
		return domain.Timeseries{}, err
	case ts.Len() == 0:
		m.metrics.ProviderRequests.WithLabelValues(name, "empty").Inc()
		m.logger.Warn("provider returned empty payload", "provider", name)
		return domain.Timeseries{}, domain.NewPayloadError(name, domain.ErrNoRecords)
	}

	m.metrics.ProviderRequests.WithLabelValues(name, "success").Inc()
	m.logger.Info("provider success", "provider", name, "points", ts.Len())
	entry := cache.Entry{Provider: name, StoredAt: m.clock.Now().UTC(), Series: ts}
	if err := m.store.Put(cache.Key(name, req.Position, req.Hours), entry); err != nil {
		m.logger.Warn("cache write failed", "provider", name, "error", err)
	}
	return ts, nil
}

// FetchCached returns the newest unexpired cache entry without contacting
// any provider.
func (m *Manager) FetchCached(req domain.ForecastRequest) (domain.FetchResult, error) {
	if err := req.Validate(); err != nil {
		return domain.FetchResult{}, err
	}
	return m.fromCache(req)
}

func (m *Manager) fromCache(req domain.ForecastRequest) (domain.FetchResult, error) {
	var (
		best  cache.Entry
		found bool
	)
	for _, p := range m.providers {
		e, ok := m.store.Get(cache.Key(p.Name(), req.Position, req.Hours))
		if !ok || e.Series.Len() == 0 {
			continue
		}
		if !found || e.StoredAt.After(best.StoredAt) {
			best, found = e, true
		}
	}
	if !found {
		return domain.FetchResult{}, domain.ErrNoDataAvailable
	}

	m.metrics.ProviderFallbacks.WithLabelValues("cache").Inc()
	m.logger.Warn("serving cached forecast",
		"provider", best.Provider,
		"age", m.clock.Since(best.StoredAt).Round(time.Second).String(),
	)
	return domain.FetchResult{
		Provider:  best.Provider,
		Series:    best.Series,
		FromCache: true,
		FetchedAt: best.StoredAt,
	}, nil
}

// FetchAll queries every provider concurrently and returns the successes in
// priority order. It is used to build ensembles; an error is returned only
// when no provider succeeded.
func (m *Manager) FetchAll(ctx context.Context, req domain.ForecastRequest) ([]domain.FetchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	series := make([]domain.Timeseries, len(m.providers))
	var g errgroup.Group
	for i, p := range m.providers {
		g.Go(func() error {
			ts, err := m.fetchOne(ctx, p, req)
			if err == nil {
				series[i] = ts
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := m.clock.Now().UTC()
	var out []domain.FetchResult
	for i, ts := range series {
		if ts.Len() == 0 {
			continue
		}
		out = append(out, domain.FetchResult{Provider: m.providers[i].Name(), Series: ts, FetchedAt: now})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ensemble fetch: %w", domain.ErrNoDataAvailable)
	}
	return out, nil
}

func (m *Manager) mergeTides(ctx context.Context, req domain.ForecastRequest, ts domain.Timeseries) domain.Timeseries {
	if m.tides == nil {
		return ts
	}
	tides, err := m.tides.Fetch(ctx, req)
	if err != nil {
		m.logger.Warn("tide fetch failed", "provider", m.tides.Name(), "error", err)
		return ts
	}
	return MergeTides(ts, tides)
}

func fallbackReason(err error) string {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return string(domain.KindTransport)
}
