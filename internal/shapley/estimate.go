// Package shapley estimates Shapley values by Monte Carlo sampling over
// permutations of the players.
//
// A run draws K permutations, collects every distinct prefix coalition they
// imply, evaluates the caller's objective once per coalition (on the
// coalition's complement, i.e. the lesioned players), and averages each
// player's marginal contributions over the K permutations.
//
// Randomness is confined to the permutation sampler. With the same players,
// sample size and seed, the Shapley table is bit-identical in sequential and
// pooled execution.
package shapley

import (
	"context"
	"log"
	"time"
)

// Request describes one estimation run.
type Request[P comparable] struct {
	Players     []P
	Samples     int
	Objective   Objective[P]
	Parallelism Parallelism

	// Seed makes the permutation sample reproducible. Nil draws a fresh seed,
	// reported back in Result.Seed.
	Seed *int64

	// OnEvaluated, if set, is called after each objective call.
	OnEvaluated func(done, total int)
}

// Result is the output of a run. All fields are owned by the caller.
type Result[P comparable] struct {
	Estimate      map[P]float64
	Table         *ShapleyTable[P]
	Contributions *ContributionTable[P]
	Sample        Sample
	Seed          int64
	SampleDigest  string
	Calls         int
	Elapsed       time.Duration
}

// Estimate runs sampler, extractor, complement deriver, evaluator and
// aggregator in order and fails on the first error.
func Estimate[P comparable](ctx context.Context, req Request[P]) (*Result[P], error) {
	start := time.Now()

	ps, err := NewPlayerSet(req.Players)
	if err != nil {
		return nil, err
	}
	if req.Samples < 1 {
		return nil, invalidInput("sample size must be >= 1, got %d", req.Samples)
	}
	if req.Objective == nil {
		return nil, invalidInput("objective function is nil")
	}
	if err := req.Parallelism.validate(); err != nil {
		return nil, err
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else if seed, err = NewSeed(); err != nil {
		return nil, err
	}

	sample, err := SamplePermutations(ps, req.Samples, seed)
	if err != nil {
		return nil, err
	}

	space, err := ExtractCombinationSpace(sample)
	if err != nil {
		return nil, err
	}

	lesions := DeriveComplements(space, ps)

	var opts []EvaluatorOption[P]
	if req.OnEvaluated != nil {
		opts = append(opts, WithProgress[P](req.OnEvaluated))
	}
	evaluator := NewEvaluator(req.Objective, req.Parallelism, opts...)

	contributions, err := evaluator.Evaluate(ctx, ps, lesions)
	if err != nil {
		return nil, err
	}

	table, err := BuildShapleyTable(ps, sample, contributions)
	if err != nil {
		return nil, err
	}

	res := &Result[P]{
		Estimate:      table.Estimate(),
		Table:         table,
		Contributions: contributions,
		Sample:        sample,
		Seed:          seed,
		SampleDigest:  sample.Digest(),
		Calls:         evaluator.Calls(),
		Elapsed:       time.Since(start),
	}

	log.Printf("[Shapley] %d players, %d permutations, %d coalitions, %d objective calls (%s, %d workers) in %s",
		ps.Len(), sample.Len(), space.Len(), res.Calls, req.Parallelism.Mode, req.Parallelism.Workers(), res.Elapsed)

	return res, nil
}
