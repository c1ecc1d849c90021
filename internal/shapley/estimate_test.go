package shapley

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(v int64) *int64 { return &v }

func TestEstimate_IndicatorGame(t *testing.T) {
	// Performance collapses whenever A is lesioned; B is irrelevant.
	objective := Pure(func(lesioned []string) float64 {
		if slices.Contains(lesioned, "A") {
			return 0
		}
		return 100
	})

	for _, k := range []int{1, 2, 10, 257} {
		res, err := Estimate(context.Background(), Request[string]{
			Players:   []string{"A", "B"},
			Samples:   k,
			Objective: objective,
			Seed:      seed(int64(k)),
		})
		require.NoError(t, err)

		if res.Estimate["A"] != 100 {
			t.Errorf("Expected Shapley(A)=100 for K=%d. Got: %f", k, res.Estimate["A"])
		}
		if res.Estimate["B"] != 0 {
			t.Errorf("Expected Shapley(B)=0 for K=%d. Got: %f", k, res.Estimate["B"])
		}
	}
}

func TestEstimate_ConstantGameIsZero(t *testing.T) {
	calls := 0
	objective := Pure(func([]string) float64 {
		calls++
		return 42
	})

	res, err := Estimate(context.Background(), Request[string]{
		Players:   []string{"x", "y", "z"},
		Samples:   75,
		Objective: objective,
		Seed:      seed(2024),
	})
	require.NoError(t, err)

	for p, v := range res.Estimate {
		assert.Equal(t, 0.0, v, "player %s", p)
	}
	assert.Equal(t, res.Contributions.Len(), calls)
	assert.Equal(t, calls, res.Calls)
}

func TestEstimate_SinglePlayer(t *testing.T) {
	calls := 0
	objective := Pure(func(lesioned []string) float64 {
		calls++
		if len(lesioned) == 0 {
			return 7.5
		}
		return 2
	})

	res, err := Estimate(context.Background(), Request[string]{
		Players:   []string{"solo"},
		Samples:   500,
		Objective: objective,
	})
	require.NoError(t, err)

	assert.Equal(t, 5.5, res.Estimate["solo"])
	assert.Equal(t, 2, calls, "empty and full coalitions are each evaluated once")
	assert.Equal(t, 2, res.Contributions.Len())
	assert.Equal(t, 500, res.Table.Rows())
}

func TestEstimate_DeterministicAcrossModes(t *testing.T) {
	players := []string{"v1", "v2", "v3", "v4", "v5", "v6"}
	weights := map[string]float64{"v1": 3, "v2": 1.25, "v3": -2, "v4": 0.5, "v5": 8, "v6": 0}
	objective := Pure(func(lesioned []string) float64 {
		// Non-additive: interaction between v1 and v5.
		total := 0.0
		gone := make(map[string]bool)
		for _, p := range lesioned {
			gone[p] = true
		}
		for _, p := range players {
			if !gone[p] {
				total += weights[p]
			}
		}
		if !gone["v1"] && !gone["v5"] {
			total *= 1.5
		}
		return total
	})

	run := func(par Parallelism) *Result[string] {
		res, err := Estimate(context.Background(), Request[string]{
			Players:     players,
			Samples:     300,
			Objective:   objective,
			Parallelism: par,
			Seed:        seed(99),
		})
		require.NoError(t, err)
		return res
	}

	seq := run(Parallelism{Mode: Sequential})
	pooled := run(Parallelism{Mode: Pooled, PoolSize: 4})
	again := run(Parallelism{Mode: Pooled, PoolSize: AllUnits})

	assert.True(t, seq.Table.Equal(pooled.Table))
	assert.True(t, seq.Table.Equal(again.Table))
	assert.Equal(t, seq.SampleDigest, pooled.SampleDigest)
	assert.Equal(t, seq.Contributions.Entries(), pooled.Contributions.Entries())
	assert.Equal(t, seq.Estimate, pooled.Estimate)
}

func TestEstimate_EfficiencyHoldsPerSample(t *testing.T) {
	// Marginals telescope along each permutation, so the estimates always sum
	// to v(N) - v(∅) regardless of K.
	objective := Pure(func(lesioned []string) float64 {
		return 10 / float64(1+len(lesioned)*len(lesioned))
	})

	res, err := Estimate(context.Background(), Request[string]{
		Players:   []string{"a", "b", "c", "d"},
		Samples:   13,
		Objective: objective,
		Seed:      seed(5),
	})
	require.NoError(t, err)

	vFull, ok := res.Contributions.Value("a", "b", "c", "d")
	require.True(t, ok)
	vEmpty, ok := res.Contributions.Value()
	require.True(t, ok)

	sum := 0.0
	for _, v := range res.Estimate {
		sum += v
	}
	assert.InDelta(t, vFull-vEmpty, sum, 1e-9)

	lesionedAll, ok := res.Contributions.LesionEffect("a", "b", "c", "d")
	require.True(t, ok)
	assert.Equal(t, vEmpty, lesionedAll)
}

func TestEstimate_SymmetricPlayersConverge(t *testing.T) {
	// p and q are interchangeable; r contributes nothing.
	objective := Pure(func(lesioned []string) float64 {
		intact := 2
		for _, l := range lesioned {
			if l == "p" || l == "q" {
				intact--
			}
		}
		return float64(intact * intact)
	})

	res, err := Estimate(context.Background(), Request[string]{
		Players:     []string{"p", "q", "r"},
		Samples:     20000,
		Objective:   objective,
		Parallelism: Parallelism{Mode: Pooled},
		Seed:        seed(17),
	})
	require.NoError(t, err)

	if math.Abs(res.Estimate["p"]-res.Estimate["q"]) > 0.1 {
		t.Errorf("Expected symmetric players to converge. Got: p=%f q=%f", res.Estimate["p"], res.Estimate["q"])
	}
	assert.InDelta(t, 2.0, res.Estimate["p"], 0.1)
	assert.Equal(t, 0.0, res.Estimate["r"])
}

func TestEstimate_ExhaustsPowerSet(t *testing.T) {
	n := 4
	players := []int{10, 20, 30, 40}

	res, err := Estimate(context.Background(), Request[int]{
		Players:   players,
		Samples:   n * (1 << n) * 4,
		Objective: Pure(func(l []int) float64 { return float64(len(l)) }),
		Seed:      seed(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1<<n, res.Contributions.Len())
}

func TestEstimate_EdgePlayers(t *testing.T) {
	type edge struct{ From, To int }
	players := []edge{{0, 1}, {1, 2}, {2, 0}}

	res, err := Estimate(context.Background(), Request[edge]{
		Players: players,
		Samples: 50,
		Objective: Pure(func(l []edge) float64 {
			for _, e := range l {
				if e == (edge{1, 2}) {
					return 0
				}
			}
			return 1
		}),
		Seed: seed(3),
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Estimate[edge{1, 2}])
	assert.Equal(t, 0.0, res.Estimate[edge{0, 1}])
}

func TestEstimate_InvalidInput(t *testing.T) {
	ok := Pure(func([]string) float64 { return 0 })

	cases := []struct {
		name string
		req  Request[string]
	}{
		{"no players", Request[string]{Samples: 1, Objective: ok}},
		{"duplicate players", Request[string]{Players: []string{"a", "a"}, Samples: 1, Objective: ok}},
		{"zero samples", Request[string]{Players: []string{"a"}, Samples: 0, Objective: ok}},
		{"negative samples", Request[string]{Players: []string{"a"}, Samples: -3, Objective: ok}},
		{"nil objective", Request[string]{Players: []string{"a"}, Samples: 1}},
		{"bad pool", Request[string]{Players: []string{"a"}, Samples: 1, Objective: ok, Parallelism: Parallelism{Mode: Pooled, PoolSize: -2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Estimate(context.Background(), tc.req)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestEstimate_UnseededRunReportsSeed(t *testing.T) {
	objective := Pure(func(l []string) float64 { return float64(len(l) * len(l)) })
	req := Request[string]{Players: []string{"a", "b", "c"}, Samples: 20, Objective: objective}

	first, err := Estimate(context.Background(), req)
	require.NoError(t, err)

	req.Seed = seed(first.Seed)
	replay, err := Estimate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.SampleDigest, replay.SampleDigest)
	assert.True(t, first.Table.Equal(replay.Table))
}

func TestBuildShapleyTable_MissingCoalitionIsFatal(t *testing.T) {
	ps := mustPlayers(t, "A", "B", "C")
	evaluated := Sample{Players: 3, Permutations: []Permutation{{0, 1, 2}}}
	space, err := ExtractCombinationSpace(evaluated)
	require.NoError(t, err)

	table, err := NewEvaluator(Pure(func([]string) float64 { return 1 }), Parallelism{}).
		Evaluate(context.Background(), ps, DeriveComplements(space, ps))
	require.NoError(t, err)

	replayed := Sample{Players: 3, Permutations: []Permutation{{0, 1, 2}, {2, 1, 0}}}
	_, err = BuildShapleyTable(ps, replayed, table)
	require.ErrorIs(t, err, ErrInternalConsistency)

	var ice *InternalConsistencyError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, 1, ice.Permutation)
}

func TestShapleyTable_Accessors(t *testing.T) {
	res, err := Estimate(context.Background(), Request[string]{
		Players:   []string{"A", "B"},
		Samples:   4,
		Objective: Pure(func(l []string) float64 { return float64(2 - len(l)) }),
		Seed:      seed(8),
	})
	require.NoError(t, err)

	col, ok := res.Table.Column("A")
	require.True(t, ok)
	assert.Len(t, col, 4)
	for _, v := range col {
		assert.Equal(t, 1.0, v)
	}
	_, ok = res.Table.Column("Z")
	assert.False(t, ok)

	assert.Equal(t, []string{"A", "B"}, res.Table.Players())
	assert.Equal(t, []float64{1, 1}, res.Table.Means())
	assert.Len(t, res.Table.Matrix(), 4)
}

func TestShapleyTable_EqualTreatsNaNBitwise(t *testing.T) {
	objective := Pure(func(l []string) float64 {
		if len(l) == 1 {
			return math.NaN()
		}
		return float64(len(l))
	})

	run := func(par Parallelism) *Result[string] {
		res, err := Estimate(context.Background(), Request[string]{
			Players:     []string{"a", "b", "c"},
			Samples:     12,
			Objective:   objective,
			Parallelism: par,
			Seed:        seed(6),
		})
		require.NoError(t, err)
		return res
	}

	seq := run(Parallelism{Mode: Sequential})
	pooled := run(Parallelism{Mode: Pooled, PoolSize: 3})

	require.True(t, math.IsNaN(seq.Table.Row(0)[0]) || math.IsNaN(seq.Table.Row(0)[1]) || math.IsNaN(seq.Table.Row(0)[2]))
	assert.True(t, seq.Table.Equal(pooled.Table))
}
