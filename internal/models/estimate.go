package models

import "time"

// ConfidenceLevel is the coarse storage tag attached to a HitRateEstimate.
// It is derived from sample size alone and is deliberately distinct from the
// richer runtime confidence score produced by the confidence scorer.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// HitRateEstimate summarizes graded outcomes for a player/prop/sport
// combination within a line window. It is derived data: every field must be
// reproducible by replaying the outcomes it claims to summarize.
type HitRateEstimate struct {
	PlayerName      string          `json:"player_name"`
	PropType        string          `json:"prop_type"`
	LineRangeMin    float64         `json:"line_range_min"`
	LineRangeMax    float64         `json:"line_range_max"`
	SportKey        string          `json:"sport_key"`
	HitRate         float64         `json:"hit_rate"`
	SampleCount     int             `json:"sample_count"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	StandardError   float64         `json:"standard_error"`
	CILower         float64         `json:"ci_lower"`
	CIUpper         float64         `json:"ci_upper"`
	LastUpdated     time.Time       `json:"last_updated"`
}

// Key returns the storage key for the estimate.
func (e *HitRateEstimate) Key() string {
	return CombinationKey(e.PlayerName, e.PropType, e.SportKey)
}
