// Package telemetry exposes Prometheus metrics for estimation runs and the
// objective calls they make.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rawblock/shapley-engine/internal/shapley"
)

const namespace = "shapley"

// Run status labels.
const (
	StatusOK        = "ok"
	StatusInvalid   = "invalid_input"
	StatusObjective = "objective_error"
	StatusInternal  = "internal_error"
	StatusCancelled = "cancelled"
	StatusOther     = "error"
)

type Metrics struct {
	// RunsTotal counts estimation runs.
	// Labels: endpoint (estimate, verify, replicate), mode (sequential, pooled), status
	RunsTotal *prometheus.CounterVec

	// RunDurationSeconds measures wall time of a full run.
	// Labels: endpoint, mode
	RunDurationSeconds *prometheus.HistogramVec

	// CoalitionsPerRun is the size of the combination space per run.
	CoalitionsPerRun prometheus.Histogram

	// ObjectiveCallsTotal counts objective invocations.
	// Labels: game
	ObjectiveCallsTotal *prometheus.CounterVec

	// ObjectiveErrorsTotal counts failed objective invocations.
	// Labels: game
	ObjectiveErrorsTotal *prometheus.CounterVec

	// ObjectiveDurationSeconds measures a single objective call.
	// Labels: game
	ObjectiveDurationSeconds *prometheus.HistogramVec

	// ActiveRuns tracks runs currently evaluating.
	ActiveRuns prometheus.Gauge

	// ShadowDivergencesTotal counts sequential/pooled comparisons that disagreed.
	ShadowDivergencesTotal prometheus.Counter
}

// NewMetrics registers every collector with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total estimation runs by mode and status",
		}, []string{"endpoint", "mode", "status"}),
		RunDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Estimation run wall time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"endpoint", "mode"}),
		CoalitionsPerRun: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coalitions_per_run",
			Help:      "Distinct coalitions evaluated per run",
			Buckets:   prometheus.ExponentialBuckets(2, 4, 10),
		}),
		ObjectiveCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objective",
			Name:      "calls_total",
			Help:      "Total objective function calls by game",
		}, []string{"game"}),
		ObjectiveErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objective",
			Name:      "errors_total",
			Help:      "Total failed objective function calls by game",
		}, []string{"game"}),
		ObjectiveDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "objective",
			Name:      "duration_seconds",
			Help:      "Objective function call latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"game"}),
		ActiveRuns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently evaluating",
		}),
		ShadowDivergencesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shadow",
			Name:      "divergences_total",
			Help:      "Sequential vs pooled comparisons whose tables differed",
		}),
	}
}

// Instrument wraps an objective so every call is counted and timed.
func Instrument[P comparable](m *Metrics, game string, f shapley.Objective[P]) shapley.Objective[P] {
	calls := m.ObjectiveCallsTotal.WithLabelValues(game)
	failures := m.ObjectiveErrorsTotal.WithLabelValues(game)
	latency := m.ObjectiveDurationSeconds.WithLabelValues(game)

	return func(ctx context.Context, lesioned []P) (float64, error) {
		start := time.Now()
		v, err := f(ctx, lesioned)
		latency.Observe(time.Since(start).Seconds())
		calls.Inc()
		if err != nil {
			failures.Inc()
		}
		return v, err
	}
}

// StartRun marks a run active and returns the func that records its outcome.
// coalitions <= 0 skips the combination-space histogram.
func (m *Metrics) StartRun(endpoint, mode string) func(coalitions int, err error) {
	start := time.Now()
	m.ActiveRuns.Inc()
	return func(coalitions int, err error) {
		m.ActiveRuns.Dec()
		m.RunsTotal.WithLabelValues(endpoint, mode, Status(err)).Inc()
		m.RunDurationSeconds.WithLabelValues(endpoint, mode).Observe(time.Since(start).Seconds())
		if err == nil && coalitions > 0 {
			m.CoalitionsPerRun.Observe(float64(coalitions))
		}
	}
}

// ObserveComparison records the outcome of a shadow comparison.
func (m *Metrics) ObserveComparison(identical bool) {
	if !identical {
		m.ShadowDivergencesTotal.Inc()
	}
}

// Status maps a run error onto its status label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, shapley.ErrInvalidInput):
		return StatusInvalid
	case errors.Is(err, shapley.ErrObjective):
		return StatusObjective
	case errors.Is(err, shapley.ErrInternalConsistency):
		return StatusInternal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusOther
	}
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
