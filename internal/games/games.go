// Package games provides ready-made objective functions over string player
// labels. They back the HTTP API and double as reference games in tests.
package games

import (
	"context"
	"fmt"
	"sort"

	"github.com/rawblock/shapley-engine/internal/shapley"
	"github.com/rawblock/shapley-engine/pkg/models"
)

// Kinds understood by Build.
const (
	KindConstant  = "constant"
	KindIndicator = "indicator"
	KindAdditive  = "additive"
	KindThreshold = "threshold"
	KindLesion    = "lesion-table" // resolved by the API against the lesion store
)

// Catalogue describes every built-in kind for GET /api/v1/games.
func Catalogue() []models.GameInfo {
	return []models.GameInfo{
		{Kind: KindConstant, Description: "v(lesioned) = value for every lesion", Params: []string{"value"}},
		{Kind: KindIndicator, Description: "value while target is intact, 0 once it is lesioned", Params: []string{"target", "value"}},
		{Kind: KindAdditive, Description: "sum of the weights of intact players", Params: []string{"weights"}},
		{Kind: KindThreshold, Description: "value when intact weight reaches quota (weighted voting)", Params: []string{"weights", "quota", "value"}},
		{Kind: KindLesion, Description: "precomputed lesion outcomes looked up in the lesion store", Params: []string{"gameId"}},
	}
}

// Build returns the objective for a built-in game over the given roster.
func Build(spec models.GameSpec, players []string) (shapley.Objective[string], error) {
	switch spec.Kind {
	case KindConstant:
		return Constant(spec.Value), nil

	case KindIndicator:
		if spec.Target == "" {
			return nil, fmt.Errorf("indicator game requires a target player")
		}
		if !contains(players, spec.Target) {
			return nil, fmt.Errorf("indicator target %q is not a player", spec.Target)
		}
		return Indicator(spec.Target, spec.Value), nil

	case KindAdditive:
		if err := checkWeights(spec.Weights, players); err != nil {
			return nil, err
		}
		return Additive(players, spec.Weights), nil

	case KindThreshold:
		if err := checkWeights(spec.Weights, players); err != nil {
			return nil, err
		}
		if spec.Quota <= 0 {
			return nil, fmt.Errorf("threshold game requires a positive quota")
		}
		return Threshold(players, spec.Weights, spec.Quota, spec.Value), nil

	case KindLesion:
		return nil, fmt.Errorf("lesion-table games are resolved against the lesion store")

	default:
		return nil, fmt.Errorf("unknown game kind %q", spec.Kind)
	}
}

// Constant scores every lesion the same; all Shapley values are zero.
func Constant(value float64) shapley.Objective[string] {
	return shapley.Pure(func([]string) float64 { return value })
}

// Indicator keeps full performance while target is intact.
func Indicator(target string, value float64) shapley.Objective[string] {
	return shapley.Pure(func(lesioned []string) float64 {
		if contains(lesioned, target) {
			return 0
		}
		return value
	})
}

// Additive sums the weights of intact players. Its Shapley values equal the
// weights exactly.
func Additive(players []string, weights map[string]float64) shapley.Objective[string] {
	total := 0.0
	for _, p := range players {
		total += weights[p]
	}
	return func(_ context.Context, lesioned []string) (float64, error) {
		v := total
		for _, p := range lesioned {
			v -= weights[p]
		}
		return v, nil
	}
}

// Threshold is a weighted voting game: the intact players either reach the
// quota and win value, or they do not.
func Threshold(players []string, weights map[string]float64, quota, value float64) shapley.Objective[string] {
	return quotaOf(Additive(players, weights), quota, value)
}

// quotaOf turns an intact-weight objective into a win/lose game.
func quotaOf(weight shapley.Objective[string], quota, value float64) shapley.Objective[string] {
	return func(ctx context.Context, lesioned []string) (float64, error) {
		intact, err := weight(ctx, lesioned)
		if err != nil {
			return 0, err
		}
		if intact >= quota {
			return value, nil
		}
		return 0, nil
	}
}

func checkWeights(weights map[string]float64, players []string) error {
	if len(weights) == 0 {
		return fmt.Errorf("game requires player weights")
	}
	var unknown []string
	for p := range weights {
		if !contains(players, p) {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("weights reference unknown players %v", unknown)
	}
	return nil
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
