package shapley

import "math"

// ShapleyTable holds one row per sampled permutation and one column per
// player (canonical order). Entry (k, i) is the marginal contribution of
// player i when it joined the coalition in permutation k.
type ShapleyTable[P comparable] struct {
	players []P
	rows    [][]float64
}

// BuildShapleyTable replays every permutation against the contribution
// table: marginal = v(before ∪ {player}) - v(before).
func BuildShapleyTable[P comparable](ps *PlayerSet[P], sample Sample, contributions *ContributionTable[P]) (*ShapleyTable[P], error) {
	if sample.Len() == 0 {
		return nil, invalidInput("permutation sample is empty")
	}

	n := ps.Len()
	rows := make([][]float64, sample.Len())

	for k, perm := range sample.Permutations {
		row := make([]float64, n)

		running := emptyCoalition(n)
		before, ok := contributions.value(running)
		if !ok {
			return nil, missingCoalition(k, running)
		}

		for _, idx := range perm {
			next := running.With(idx)
			after, ok := contributions.value(next)
			if !ok {
				return nil, missingCoalition(k, next)
			}
			row[idx] = after - before
			running, before = next, after
		}
		rows[k] = row
	}

	return &ShapleyTable[P]{players: ps.Players(), rows: rows}, nil
}

func missingCoalition(permutation int, c Coalition) error {
	return &InternalConsistencyError{
		Permutation: permutation,
		Coalition:   c.String(),
		Detail:      "prefix missing from contribution table",
	}
}

// Players returns the column order.
func (t *ShapleyTable[P]) Players() []P {
	out := make([]P, len(t.players))
	copy(out, t.players)
	return out
}

// Rows returns the number of permutations.
func (t *ShapleyTable[P]) Rows() int { return len(t.rows) }

// Row returns a copy of the marginals recorded for permutation k.
func (t *ShapleyTable[P]) Row(k int) []float64 {
	out := make([]float64, len(t.rows[k]))
	copy(out, t.rows[k])
	return out
}

// Matrix returns a deep copy of all rows.
func (t *ShapleyTable[P]) Matrix() [][]float64 {
	out := make([][]float64, len(t.rows))
	for k := range t.rows {
		out[k] = t.Row(k)
	}
	return out
}

// Column returns the marginals of player p across all permutations.
func (t *ShapleyTable[P]) Column(p P) ([]float64, bool) {
	i := t.column(p)
	if i < 0 {
		return nil, false
	}
	col := make([]float64, len(t.rows))
	for k, row := range t.rows {
		col[k] = row[i]
	}
	return col, true
}

func (t *ShapleyTable[P]) column(p P) int {
	for i, q := range t.players {
		if q == p {
			return i
		}
	}
	return -1
}

// Means returns the column means in canonical order. Every permutation
// records one marginal per player, so each denominator is the sample size.
func (t *ShapleyTable[P]) Means() []float64 {
	means := make([]float64, len(t.players))
	if len(t.rows) == 0 {
		return means
	}
	for _, row := range t.rows {
		for i, v := range row {
			means[i] += v
		}
	}
	for i := range means {
		means[i] /= float64(len(t.rows))
	}
	return means
}

// Estimate returns the Shapley value estimate of every player.
func (t *ShapleyTable[P]) Estimate() map[P]float64 {
	means := t.Means()
	out := make(map[P]float64, len(t.players))
	for i, p := range t.players {
		out[p] = means[i]
	}
	return out
}

// Equal reports whether two tables hold bit-identical marginals.
func (t *ShapleyTable[P]) Equal(other *ShapleyTable[P]) bool {
	if other == nil || len(t.rows) != len(other.rows) || len(t.players) != len(other.players) {
		return false
	}
	for i := range t.players {
		if t.players[i] != other.players[i] {
			return false
		}
	}
	for k := range t.rows {
		for i := range t.rows[k] {
			if math.Float64bits(t.rows[k][i]) != math.Float64bits(other.rows[k][i]) {
				return false
			}
		}
	}
	return true
}
