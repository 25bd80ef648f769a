package models

import "time"

// RiskLevel classifies the adjusted Kelly fraction of a recommended stake.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

// Recommendation is the final bet/no-bet tier of an evaluation.
type Recommendation string

const (
	RecommendStrongBet   Recommendation = "STRONG_BET"
	RecommendModerateBet Recommendation = "MODERATE_BET"
	RecommendSmallBet    Recommendation = "SMALL_BET"
	RecommendAvoid       Recommendation = "AVOID"
)

// PropEvaluation is the full output of evaluating one prop against current
// market odds. Created fresh on every Evaluate call, never mutated after.
//
// ConfidenceLevel is the coarse sample-size tag carried over from the stored
// estimate; ConfidenceScore is the fine-grained runtime blend. The two are
// separate signals and must not be conflated.
type PropEvaluation struct {
	PlayerName         string          `json:"player_name"`
	PropType           string          `json:"prop_type"`
	Line               float64         `json:"line"`
	PlatformKey        string          `json:"platform_key"`
	HitRate            float64         `json:"hit_rate"`
	SampleCount        int             `json:"sample_count"`
	ImpliedProbability float64         `json:"implied_probability"`
	EVPercentage       float64         `json:"ev_percentage"`
	IsPositiveEV       bool            `json:"is_positive_ev"`
	ConfidenceLevel    ConfidenceLevel `json:"confidence_level"`
	ConfidenceScore    float64         `json:"confidence_score"`
	RecommendedStake   float64         `json:"recommended_stake"`
	KellyPercentage    float64         `json:"kelly_percentage"`
	RiskLevel          RiskLevel       `json:"risk_level"`
	Recommendation     Recommendation  `json:"recommendation"`
	Reasoning          string          `json:"reasoning"`
	EvaluatedAt        time.Time       `json:"evaluated_at"`
}
