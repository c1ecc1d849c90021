package metrics

import (
	"math"
	"sort"
)

// z95 is the two-sided 95% normal quantile.
const z95 = 1.959963984540054

// ColumnSummary describes one player's marginal contributions across the
// permutations of a Shapley table.
type ColumnSummary struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	StdErr float64 `json:"stdErr"`
	N      int     `json:"n"`
}

// SummarizeColumns computes mean, sample standard deviation and standard
// error for every column of a Shapley table (rows = permutations).
//
// StdErr = Std / sqrt(N). It shrinks with the square root of the number of
// permutations and is the Monte Carlo error of the column mean.
func SummarizeColumns(rows [][]float64) []ColumnSummary {
	if len(rows) == 0 {
		return nil
	}
	cols := len(rows[0])
	out := make([]ColumnSummary, cols)

	for j := 0; j < cols; j++ {
		col := make([]float64, len(rows))
		for k := range rows {
			col[k] = rows[k][j]
		}
		mean, std := meanStd(col)
		out[j] = ColumnSummary{
			Mean:   mean,
			Std:    std,
			StdErr: std / math.Sqrt(float64(len(col))),
			N:      len(col),
		}
	}
	return out
}

// RankByMean returns column indices ordered by descending mean. Ties keep
// their original (canonical) order.
func RankByMean(summaries []ColumnSummary) []int {
	order := make([]int, len(summaries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return summaries[order[a]].Mean > summaries[order[b]].Mean
	})
	return order
}

// EfficiencyGap measures how far the estimates are from distributing
// exactly v(N) - v(∅):
//
//	gap = Σ φ_i - (v(N) - v(∅))
//
// Permutation sampling telescopes, so the gap is zero up to rounding.
func EfficiencyGap(estimate []float64, vFull, vEmpty float64) float64 {
	sum := 0.0
	for _, v := range estimate {
		sum += v
	}
	return sum - (vFull - vEmpty)
}

// Interval summarizes one player across repeated independent estimates.
type Interval struct {
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Replicates int     `json:"replicates"`
}

// SummarizeReplicates turns R independent estimates (each a vector in
// canonical player order) into per-player 95% normal confidence intervals.
// With fewer than two replicates the interval collapses to the mean.
func SummarizeReplicates(estimates [][]float64) []Interval {
	if len(estimates) == 0 {
		return nil
	}
	cols := len(estimates[0])
	out := make([]Interval, cols)

	for j := 0; j < cols; j++ {
		col := make([]float64, len(estimates))
		for r := range estimates {
			col[r] = estimates[r][j]
		}
		mean, std := meanStd(col)
		half := 0.0
		if len(col) > 1 {
			half = z95 * std / math.Sqrt(float64(len(col)))
		}
		out[j] = Interval{
			Mean:       mean,
			Std:        std,
			Lower:      mean - half,
			Upper:      mean + half,
			Replicates: len(col),
		}
	}
	return out
}

// meanStd returns the mean and the sample (n-1) standard deviation.
func meanStd(xs []float64) (float64, float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= n
	if n < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}
