package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// ErrNoAssessments is returned by RunCycle when no route could be assessed.
var ErrNoAssessments = errors.New("no routes assessed")

// Assessor produces the assessment for one route.
type Assessor interface {
	Assess(ctx context.Context, route domain.Route) (domain.RouteAssessment, error)
}

// BatchLoader writes multiple assessments to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, assessments []domain.RouteAssessment) error
}

// Pipeline assesses every configured route on a fixed interval and
// publishes the results as one batch per cycle.
type Pipeline struct {
	routes   []domain.Route
	assessor Assessor
	loader   BatchLoader
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(routes []domain.Route, a Assessor, l BatchLoader, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		routes:   routes,
		assessor: a,
		loader:   l,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one
// batch, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published any assessments yet")
	}
	return nil
}

// Run executes assessment cycles until the context is cancelled. A failed
// cycle is retried with exponential backoff; a successful one waits for the
// next interval.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "routes", len(p.routes), "interval", p.interval.String())
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := p.interval
		if err := p.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("assessment cycle failed", "error", err, "retry_in", backoff.String())
			wait = backoff
			backoff = retry.NextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		sleepWithContext(ctx, p.clock, wait)
	}
}

// RunCycle assesses every route once and loads the successes. Routes that
// fail are logged and counted but do not fail the cycle unless none succeed.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	start := p.clock.Now()

	batch := make([]domain.RouteAssessment, 0, len(p.routes))
	for _, route := range p.routes {
		a, err := p.assessor.Assess(ctx, route)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("route assessment failed, skipping", "route", route.Name, "error", err)
			p.metrics.AssessmentErrors.Inc()
			continue
		}
		batch = append(batch, a)
	}
	if len(batch) == 0 {
		return ErrNoAssessments
	}

	if err := p.loader.LoadBatch(ctx, batch); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(batch))
		return err
	}

	p.metrics.AssessmentsProduced.Add(float64(len(batch)))
	p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Info("assessment cycle complete", "assessments", len(batch))
	return nil
}

// sleepWithContext is retry.SleepWithContext on an injectable clock.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
