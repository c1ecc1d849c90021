package metrics

import (
	"math"
	"testing"
)

func TestSummarizeColumns_ConstantColumn(t *testing.T) {
	rows := [][]float64{
		{100, 0},
		{100, 0},
		{100, 0},
	}

	s := SummarizeColumns(rows)

	if len(s) != 2 {
		t.Fatalf("Expected 2 column summaries. Got: %d", len(s))
	}
	if s[0].Mean != 100 || s[0].Std != 0 || s[0].StdErr != 0 {
		t.Errorf("Expected mean=100 std=0 for a constant column. Got: %+v", s[0])
	}
	if s[1].N != 3 {
		t.Errorf("Expected N=3. Got: %d", s[1].N)
	}
}

func TestSummarizeColumns_SpreadColumn(t *testing.T) {
	// Marginals alternate between 1 and 3: mean 2, sample std sqrt(4/3).
	rows := [][]float64{{1}, {3}, {1}, {3}}

	s := SummarizeColumns(rows)[0]

	if math.Abs(s.Mean-2) > 1e-12 {
		t.Errorf("Expected mean=2. Got: %f", s.Mean)
	}
	wantStd := math.Sqrt(4.0 / 3.0)
	if math.Abs(s.Std-wantStd) > 1e-12 {
		t.Errorf("Expected std=%f. Got: %f", wantStd, s.Std)
	}
	if math.Abs(s.StdErr-wantStd/2) > 1e-12 {
		t.Errorf("Expected stderr=%f. Got: %f", wantStd/2, s.StdErr)
	}
}

func TestSummarizeColumns_Empty(t *testing.T) {
	if s := SummarizeColumns(nil); s != nil {
		t.Errorf("Expected nil summaries for an empty table. Got: %v", s)
	}
}

func TestRankByMean_StableOnTies(t *testing.T) {
	summaries := []ColumnSummary{{Mean: 1}, {Mean: 5}, {Mean: 1}, {Mean: -2}}

	order := RankByMean(summaries)

	want := []int{1, 0, 2, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Expected rank order %v. Got: %v", want, order)
		}
	}
}

func TestEfficiencyGap(t *testing.T) {
	gap := EfficiencyGap([]float64{60, 30, 10}, 120, 20)

	if math.Abs(gap) > 1e-12 {
		t.Errorf("Expected zero gap when estimates sum to v(N)-v(∅). Got: %f", gap)
	}

	gap = EfficiencyGap([]float64{60, 30}, 120, 20)
	if gap != -10 {
		t.Errorf("Expected gap=-10. Got: %f", gap)
	}
}

func TestSummarizeReplicates_Interval(t *testing.T) {
	estimates := [][]float64{
		{2.0, 0},
		{2.2, 0},
		{1.8, 0},
		{2.0, 0},
	}

	iv := SummarizeReplicates(estimates)

	if iv[0].Replicates != 4 {
		t.Fatalf("Expected 4 replicates. Got: %d", iv[0].Replicates)
	}
	if math.Abs(iv[0].Mean-2.0) > 1e-12 {
		t.Errorf("Expected mean 2.0. Got: %f", iv[0].Mean)
	}
	if !(iv[0].Lower < 2.0 && iv[0].Upper > 2.0) {
		t.Errorf("Expected interval around 2.0. Got: [%f, %f]", iv[0].Lower, iv[0].Upper)
	}
	if iv[1].Lower != 0 || iv[1].Upper != 0 {
		t.Errorf("Expected degenerate interval for a zero player. Got: [%f, %f]", iv[1].Lower, iv[1].Upper)
	}
}

func TestSummarizeReplicates_SingleReplicate(t *testing.T) {
	iv := SummarizeReplicates([][]float64{{3.5}})

	if iv[0].Lower != 3.5 || iv[0].Upper != 3.5 {
		t.Errorf("Expected collapsed interval with one replicate. Got: [%f, %f]", iv[0].Lower, iv[0].Upper)
	}
}
