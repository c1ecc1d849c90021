// Package shadow re-runs an estimate under a second execution mode and
// reports whether the two agree. Sequential evaluation is production; the
// pooled run is the shadow.
package shadow

import (
	"context"
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/rawblock/shapley-engine/internal/metrics"
	"github.com/rawblock/shapley-engine/internal/shapley"
)

// Runner executes the same request twice: once sequentially (production) and
// once with the shadow parallelism. Both runs share the seed, so any
// difference in the Shapley tables is a determinism bug.
type Runner[P comparable] struct {
	shadow shapley.Parallelism
}

// Comparison captures the diff between production and shadow runs.
type Comparison struct {
	Seed            int64     `json:"seed"`
	Identical       bool      `json:"identical"`
	MaxAbsDelta     float64   `json:"maxAbsDelta"`
	DigestMatch     bool      `json:"digestMatch"`
	ProductionCalls int       `json:"productionCalls"`
	ShadowCalls     int       `json:"shadowCalls"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Replication is the spread of R independent estimates.
type Replication[P comparable] struct {
	Players   []P
	Seeds     []int64
	Estimates [][]float64
	Intervals []metrics.Interval
}

// NewRunner creates a runner whose shadow run uses the given parallelism.
// A sequential shadow is upgraded to a pool over all units.
func NewRunner[P comparable](shadow shapley.Parallelism) *Runner[P] {
	if shadow.Mode != shapley.Pooled {
		shadow = shapley.Parallelism{Mode: shapley.Pooled, PoolSize: shapley.AllUnits}
	}
	return &Runner[P]{shadow: shadow}
}

// Compare runs production and shadow estimates and diffs them.
func (r *Runner[P]) Compare(ctx context.Context, req shapley.Request[P]) (*Comparison, error) {
	seed, err := resolveSeed(req.Seed)
	if err != nil {
		return nil, err
	}
	req.Seed = &seed

	production := req
	production.Parallelism = shapley.Parallelism{Mode: shapley.Sequential}
	prod, err := shapley.Estimate(ctx, production)
	if err != nil {
		return nil, errors.Wrap(err, "production run")
	}

	shadow := req
	shadow.Parallelism = r.shadow
	shadow.OnEvaluated = nil
	shad, err := shapley.Estimate(ctx, shadow)
	if err != nil {
		return nil, errors.Wrap(err, "shadow run")
	}

	result := &Comparison{
		Seed:            seed,
		Identical:       prod.Table.Equal(shad.Table),
		MaxAbsDelta:     MaxAbsDelta(prod.Table.Matrix(), shad.Table.Matrix()),
		DigestMatch:     prod.SampleDigest == shad.SampleDigest,
		ProductionCalls: prod.Calls,
		ShadowCalls:     shad.Calls,
		CreatedAt:       time.Now(),
	}

	// Log divergences for monitoring
	if !result.Identical || !result.DigestMatch {
		log.Printf("[Shadow] DIVERGENCE on seed %d: digest_match=%v max_abs_delta=%g prod_calls=%d shadow_calls=%d",
			seed, result.DigestMatch, result.MaxAbsDelta, result.ProductionCalls, result.ShadowCalls)
	}

	return result, nil
}

// Replicate runs n independent estimates with seeds seed, seed+1, ... and
// summarizes each player's spread. Every replicate uses req.Parallelism.
func (r *Runner[P]) Replicate(ctx context.Context, req shapley.Request[P], n int) (*Replication[P], error) {
	if n < 1 {
		return nil, errors.Wrapf(shapley.ErrInvalidInput, "replicates must be >= 1, got %d", n)
	}
	base, err := resolveSeed(req.Seed)
	if err != nil {
		return nil, err
	}

	out := &Replication[P]{
		Seeds:     make([]int64, 0, n),
		Estimates: make([][]float64, 0, n),
	}
	for i := 0; i < n; i++ {
		seed := base + int64(i)
		run := req
		run.Seed = &seed

		res, err := shapley.Estimate(ctx, run)
		if err != nil {
			return nil, errors.Wrapf(err, "replicate %d", i)
		}
		if out.Players == nil {
			out.Players = res.Table.Players()
		}
		out.Seeds = append(out.Seeds, seed)
		out.Estimates = append(out.Estimates, res.Table.Means())
	}

	out.Intervals = metrics.SummarizeReplicates(out.Estimates)
	log.Printf("[Shadow] %d replicates over %d players (base seed %d)", n, len(out.Players), base)
	return out, nil
}

func resolveSeed(seed *int64) (int64, error) {
	if seed != nil {
		return *seed, nil
	}
	return shapley.NewSeed()
}
