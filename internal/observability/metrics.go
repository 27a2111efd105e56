package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marine_ops"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecast pipeline and API.
type Metrics struct {
	// Provider metrics.
	ProviderRequests  *prometheus.CounterVec   // labels: provider, outcome={success,error,empty}
	ProviderDuration  *prometheus.HistogramVec // labels: provider
	ProviderFallbacks *prometheus.CounterVec   // labels: reason={timeout,rate_limit,status,transport,payload,cache}
	CacheLookups      *prometheus.CounterVec   // labels: result={memory_hit,disk_hit,miss}

	QCClipped *prometheus.CounterVec // labels: variable
	Decisions *prometheus.CounterVec // labels: decision

	// Pipeline metrics.
	AssessmentsProduced prometheus.Counter
	AssessmentErrors    prometheus.Counter
	PipelineRunning     prometheus.Gauge
	CycleDuration       prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Forecast provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Forecast provider HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		ProviderFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Times the provider chain moved past a failed provider, by failure kind.",
		}, []string{"reason"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Forecast cache lookups by result.",
		}, []string{"result"}),
		QCClipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qc_clipped_total",
			Help:      "Measurements clipped by quality control, by variable.",
		}, []string{"variable"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Sailing decisions served, by outcome.",
		}, []string{"decision"}),
		AssessmentsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_produced_total",
			Help:      "Route assessments written to the sink topic.",
		}),
		AssessmentErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_errors_total",
			Help:      "Routes that could not be assessed in a cycle.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-assess-publish cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.ProviderFallbacks,
		m.CacheLookups,
		m.QCClipped,
		m.Decisions,
		m.AssessmentsProduced,
		m.AssessmentErrors,
		m.PipelineRunning,
		m.CycleDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
