package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/eri"
	"github.com/couchcryptid/marine-ops/internal/observability"
)

// EnsembleProvider is the provider name recorded on blended assessments.
const EnsembleProvider = "ensemble"

// ForecastSource returns the forecast chosen by the provider chain.
type ForecastSource interface {
	Fetch(ctx context.Context, req domain.ForecastRequest) (domain.FetchResult, error)
}

// EnsembleSource returns every provider's forecast for blending.
type EnsembleSource interface {
	FetchAll(ctx context.Context, req domain.ForecastRequest) ([]domain.FetchResult, error)
}

// AssessorConfig holds the tunables of a RouteAssessor.
type AssessorConfig struct {
	Hours   int
	Rules   *eri.RuleSet
	Risk    domain.RiskThresholds
	Weights map[string]float64 // ensemble weights by provider; empty disables blending
}

// RouteAssessor implements Assessor: fetch, quality control, optional
// ensemble blending, ERI scoring, and risk classification.
type RouteAssessor struct {
	source   ForecastSource
	ensemble EnsembleSource
	cfg      AssessorConfig
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAssessor creates a RouteAssessor. ensemble may be nil.
func NewAssessor(source ForecastSource, ensemble EnsembleSource, cfg AssessorConfig, logger *slog.Logger, metrics *observability.Metrics) *RouteAssessor {
	if cfg.Rules == nil {
		cfg.Rules = eri.DefaultRuleSet()
	}
	return &RouteAssessor{
		source:   source,
		ensemble: ensemble,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

func (a *RouteAssessor) Assess(ctx context.Context, route domain.Route) (domain.RouteAssessment, error) {
	req := domain.ForecastRequest{Position: route.Position, Hours: a.cfg.Hours}
	res, err := a.source.Fetch(ctx, req)
	if err != nil {
		return domain.RouteAssessment{}, fmt.Errorf("fetch forecast for %s: %w", route.Name, err)
	}

	ts := a.qualityControl(res.Series)
	provider := res.Provider
	var members []string
	if a.ensemble != nil && len(a.cfg.Weights) > 0 && !res.FromCache {
		blended, names, err := a.blend(ctx, req, res.Provider)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return domain.RouteAssessment{}, ctx.Err()
			}
			a.logger.Warn("ensemble skipped", "route", route.Name, "error", err)
		default:
			ts, provider, members = blended, EnsembleProvider, names
		}
	}
	if ts.Len() == 0 {
		return domain.RouteAssessment{}, fmt.Errorf("route %s: %w", route.Name, domain.ErrNoRecords)
	}

	scores := eri.ComputeTimeseries(ts, a.cfg.Rules)
	risk := domain.AssessRisk(ts.Points[0], a.cfg.Risk)
	assessment := domain.NewRouteAssessment(route, provider, res.FromCache, ts, scores, risk)
	assessment.Ensemble = members
	return assessment, nil
}

// ErrEnsembleTooSmall is returned when fewer than two weighted members are
// available.
var ErrEnsembleTooSmall = errors.New("ensemble needs at least two weighted members")

// blend fetches every provider, keeps those with a configured weight, bias
// corrects wave height and wind speed against the reference provider, and
// returns the weighted ensemble.
func (a *RouteAssessor) blend(ctx context.Context, req domain.ForecastRequest, reference string) (domain.Timeseries, []string, error) {
	results, err := a.ensemble.FetchAll(ctx, req)
	if err != nil {
		return domain.Timeseries{}, nil, err
	}

	var (
		names   []string
		series  []domain.Timeseries
		weights []float64
	)
	for _, r := range results {
		w, ok := a.cfg.Weights[r.Provider]
		if !ok || w <= 0 {
			continue
		}
		names = append(names, r.Provider)
		series = append(series, a.qualityControl(r.Series))
		weights = append(weights, w)
	}
	if len(series) < 2 {
		return domain.Timeseries{}, nil, ErrEnsembleTooSmall
	}

	aligned := domain.AlignSeries(series...)
	if aligned[0].Len() == 0 {
		return domain.Timeseries{}, nil, fmt.Errorf("%w: no common timestamps", domain.ErrMisalignedSeries)
	}

	ref := 0
	for i, n := range names {
		if n == reference {
			ref = i
			break
		}
	}
	for i := range aligned {
		if i == ref {
			continue
		}
		points := aligned[i].Points
		points = domain.CorrectBias(points, aligned[ref].Points, domain.VarWaveHeight)
		points = domain.CorrectBias(points, aligned[ref].Points, domain.VarWindSpeed)
		aligned[i] = domain.Timeseries{Points: points}
	}

	blended, err := domain.ComputeWeightedEnsemble(aligned, weights)
	if err != nil {
		return domain.Timeseries{}, nil, err
	}
	return blended, names, nil
}

func (a *RouteAssessor) qualityControl(ts domain.Timeseries) domain.Timeseries {
	out, clipped := domain.QualityControlAll(ts)
	for v, n := range clipped {
		a.metrics.QCClipped.WithLabelValues(string(v)).Add(float64(n))
	}
	return out
}
