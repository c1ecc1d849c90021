package models

import "time"

// GameSpec selects the objective a run is evaluated against.
type GameSpec struct {
	Kind    string             `json:"kind" binding:"required"`
	Value   float64            `json:"value,omitempty"`
	Target  string             `json:"target,omitempty"`  // indicator
	Weights map[string]float64 `json:"weights,omitempty"` // additive, threshold
	Quota   float64            `json:"quota,omitempty"`   // threshold
	GameID  string             `json:"gameId,omitempty"`  // lesion-table
}

// GameInfo documents one built-in game kind.
type GameInfo struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}

// EstimateRequest is the body of POST /api/v1/estimate.
type EstimateRequest struct {
	Players  []string `json:"players" binding:"required"`
	Samples  int      `json:"samples" binding:"required"`
	Mode     string   `json:"mode,omitempty"`     // "sequential" (default) or "pooled"
	PoolSize *int     `json:"poolSize,omitempty"` // -1 = all units
	Seed     *int64   `json:"seed,omitempty"`
	Game     GameSpec `json:"game"`

	IncludeTable bool `json:"includeTable,omitempty"`
}

// ReplicateRequest is the body of POST /api/v1/estimate/replicate.
type ReplicateRequest struct {
	EstimateRequest
	Replicates int `json:"replicates" binding:"required"`
}

// PlayerSummary is one row of an estimate, in rank order.
type PlayerSummary struct {
	Player  string  `json:"player"`
	Shapley float64 `json:"shapley"`
	Std     float64 `json:"std"`
	StdErr  float64 `json:"stdErr"`
	Rank    int     `json:"rank"`
}

// EstimateResponse is returned by POST /api/v1/estimate.
type EstimateResponse struct {
	RunID         string          `json:"runId"`
	Players       []PlayerSummary `json:"players"`
	Seed          int64           `json:"seed"`
	SampleDigest  string          `json:"sampleDigest"`
	Samples       int             `json:"samples"`
	Coalitions    int             `json:"coalitions"`
	Calls         int             `json:"calls"`
	EfficiencyGap float64         `json:"efficiencyGap"`
	Mode          string          `json:"mode"`
	ElapsedMs     int64           `json:"elapsedMs"`
	Table         [][]float64     `json:"table,omitempty"`
}

// ComparisonResponse is returned by POST /api/v1/estimate/verify.
type ComparisonResponse struct {
	RunID           string    `json:"runId"`
	Seed            int64     `json:"seed"`
	Identical       bool      `json:"identical"`
	MaxAbsDelta     float64   `json:"maxAbsDelta"`
	DigestMatch     bool      `json:"digestMatch"`
	ProductionCalls int       `json:"productionCalls"`
	ShadowCalls     int       `json:"shadowCalls"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PlayerInterval is a per-player confidence interval over replicates.
type PlayerInterval struct {
	Player string  `json:"player"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// ReplicateResponse is returned by POST /api/v1/estimate/replicate.
type ReplicateResponse struct {
	RunID      string           `json:"runId"`
	Replicates int              `json:"replicates"`
	Seeds      []int64          `json:"seeds"`
	Intervals  []PlayerInterval `json:"intervals"`
}

// LesionValue is one precomputed lesion outcome.
type LesionValue struct {
	Lesioned []string `json:"lesioned"`
	Value    float64  `json:"value"`
}

// LesionUpload is the body of PUT /api/v1/games/:id/lesions.
type LesionUpload struct {
	Values []LesionValue `json:"values" binding:"required"`
}

// ProgressEvent is broadcast over the websocket stream while a run evaluates.
type ProgressEvent struct {
	Type  string `json:"type"` // "progress" or "done"
	RunID string `json:"runId"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}
