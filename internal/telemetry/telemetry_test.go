package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rawblock/shapley-engine/internal/shapley"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func TestInstrument_CountsCallsAndErrors(t *testing.T) {
	m, _ := newTestMetrics(t)
	boom := errors.New("boom")

	obj := Instrument(m, "indicator", func(_ context.Context, lesioned []string) (float64, error) {
		if len(lesioned) == 2 {
			return 0, boom
		}
		return 1, nil
	})

	for _, l := range [][]string{nil, {"a"}, {"a", "b"}} {
		_, _ = obj(context.Background(), l)
	}

	if got := testutil.ToFloat64(m.ObjectiveCallsTotal.WithLabelValues("indicator")); got != 3 {
		t.Errorf("calls_total = %f, want 3", got)
	}
	if got := testutil.ToFloat64(m.ObjectiveErrorsTotal.WithLabelValues("indicator")); got != 1 {
		t.Errorf("errors_total = %f, want 1", got)
	}
}

func TestInstrument_MatchesEstimatorCalls(t *testing.T) {
	m, _ := newTestMetrics(t)
	seed := int64(4)

	res, err := shapley.Estimate(context.Background(), shapley.Request[string]{
		Players:     []string{"a", "b", "c", "d"},
		Samples:     60,
		Objective:   Instrument(m, "additive", shapley.Pure(func(l []string) float64 { return float64(4 - len(l)) })),
		Parallelism: shapley.Parallelism{Mode: shapley.Pooled, PoolSize: 3},
		Seed:        &seed,
	})
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}

	if got := testutil.ToFloat64(m.ObjectiveCallsTotal.WithLabelValues("additive")); int(got) != res.Calls {
		t.Errorf("calls_total = %f, want %d", got, res.Calls)
	}
}

func TestStartRun_RecordsStatus(t *testing.T) {
	m, reg := newTestMetrics(t)

	done := m.StartRun("estimate", "pooled")
	if got := testutil.ToFloat64(m.ActiveRuns); got != 1 {
		t.Errorf("active_runs = %f, want 1", got)
	}
	done(12, nil)

	m.StartRun("replicate", "sequential")(0, shapley.ErrInvalidInput)
	m.StartRun("replicate", "pooled")(0, nil)

	if got := testutil.ToFloat64(m.ActiveRuns); got != 0 {
		t.Errorf("active_runs = %f, want 0", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("estimate", "pooled", StatusOK)); got != 1 {
		t.Errorf("runs_total[estimate,pooled,ok] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("replicate", "sequential", StatusInvalid)); got != 1 {
		t.Errorf("runs_total[replicate,sequential,invalid_input] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("replicate", "pooled", StatusOK)); got != 1 {
		t.Errorf("runs_total[replicate,pooled,ok] = %f, want 1", got)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "shapley_coalitions_per_run_count 1\n") {
		t.Errorf("Expected only the run with a known combination space in coalitions_per_run")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, StatusOK},
		{shapley.ErrInvalidInput, StatusInvalid},
		{&shapley.ObjectiveError[string]{Err: errors.New("x")}, StatusObjective},
		{&shapley.InternalConsistencyError{Permutation: -1}, StatusInternal},
		{context.Canceled, StatusCancelled},
		{errors.New("other"), StatusOther},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestStatus_ClientDisconnectDuringObjective(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := shapley.Estimate(ctx, shapley.Request[string]{
		Players: []string{"a", "b"},
		Samples: 3,
		Objective: func(ctx context.Context, _ []string) (float64, error) {
			cancel()
			return 0, ctx.Err()
		},
	})

	if got := Status(err); got != StatusCancelled {
		t.Errorf("Status(%v) = %s, want %s", err, got, StatusCancelled)
	}
}

func TestHandler_ServesRegistry(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.ObserveComparison(false)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200. Got: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "shapley_shadow_divergences_total 1") {
		t.Errorf("Expected divergence counter in exposition output")
	}
}
