package shadow

import "math"

// MaxAbsDelta returns the largest element-wise difference between two
// Shapley tables. Tables of different shape are infinitely far apart.
func MaxAbsDelta(a, b [][]float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	worst := 0.0
	for k := range a {
		if len(a[k]) != len(b[k]) {
			return math.Inf(1)
		}
		for i := range a[k] {
			if math.Float64bits(a[k][i]) == math.Float64bits(b[k][i]) {
				continue
			}
			d := math.Abs(a[k][i] - b[k][i])
			if math.IsNaN(d) {
				return math.Inf(1)
			}
			if d > worst {
				worst = d
			}
		}
	}
	return worst
}
