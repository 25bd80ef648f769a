package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/Temian1/oddsly/internal/models"
)

// DefaultMaxBetFraction caps the adjusted Kelly fraction at 5% of bankroll.
// A fixed business constant; callers override it through EngineConfig.
const DefaultMaxBetFraction = 0.05

// portfolioCorrelationDiscount assumes correlated bets share 20% common risk.
const portfolioCorrelationDiscount = 0.8

// StakeResult is the output of a single-bet Kelly calculation.
type StakeResult struct {
	RawKelly       float64               `json:"raw_kelly"`
	AdjustedKelly  float64               `json:"adjusted_kelly"`
	Stake          float64               `json:"stake"`
	ExpectedValue  float64               `json:"expected_value"`
	RiskLevel      models.RiskLevel      `json:"risk_level"`
	Recommendation models.Recommendation `json:"recommendation"`
	Reasoning      string                `json:"reasoning"`
}

// KellyInput is one leg of a portfolio staking calculation.
type KellyInput struct {
	HitRate     float64
	DecimalOdds float64
	Confidence  float64
}

// PortfolioResult summarizes a correlation-discounted multi-bet stake.
type PortfolioResult struct {
	TotalStake             float64          `json:"total_stake"`
	TotalFraction          float64          `json:"total_fraction"`
	RiskLevel              models.RiskLevel `json:"risk_level"`
	DiversificationBenefit float64          `json:"diversification_benefit"`
}

// KellyStaking computes capped fractional Kelly stakes.
type KellyStaking struct {
	maxBetFraction float64
	minBetAmount   float64
	logger         *logrus.Logger
}

// NewKellyStaking creates a staking calculator. A non-positive maxBetFraction
// falls back to the business default.
func NewKellyStaking(maxBetFraction, minBetAmount float64, logger *logrus.Logger) *KellyStaking {
	if maxBetFraction <= 0 || maxBetFraction > 1 {
		maxBetFraction = DefaultMaxBetFraction
	}
	return &KellyStaking{
		maxBetFraction: maxBetFraction,
		minBetAmount:   minBetAmount,
		logger:         logger,
	}
}

// Calculate computes a capped fractional Kelly stake.
//
// Kelly Criterion: f = (bp - q) / b
// where b = decimal odds - 1, p = hit rate, q = 1 - p.
// Non-positive EV is a hard gate: the result is an Avoid with zero stake.
func (k *KellyStaking) Calculate(hitRate, decimalOdds, bankroll, confidence float64) (*StakeResult, error) {
	if hitRate <= 0 || hitRate >= 1 {
		return nil, fmt.Errorf("%w: hit rate %.4f outside (0,1)", models.ErrInvalidInput, hitRate)
	}
	if decimalOdds <= 1 {
		return nil, fmt.Errorf("%w: decimal odds %.2f must exceed 1", models.ErrInvalidInput, decimalOdds)
	}
	if bankroll <= 0 {
		return nil, fmt.Errorf("%w: bankroll %.2f must be positive", models.ErrInvalidInput, bankroll)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %.4f outside [0,1]", models.ErrInvalidInput, confidence)
	}

	b := decimalOdds - 1
	p := hitRate
	q := 1 - p

	ev := p*b - q
	if ev <= 0 {
		k.logger.WithFields(logrus.Fields{
			"hit_rate":     hitRate,
			"decimal_odds": decimalOdds,
			"ev":           ev,
		}).Debug("Non-positive EV, no bet recommended")

		return &StakeResult{
			ExpectedValue:  ev,
			RiskLevel:      models.RiskLow,
			Recommendation: models.RecommendAvoid,
			Reasoning:      fmt.Sprintf("EV per unit is %.4f at %.2f odds; no edge to stake", ev, decimalOdds),
		}, nil
	}

	rawKelly := math.Max(0, (b*p-q)/b)
	adjusted := math.Min(rawKelly*confidence, k.maxBetFraction)
	stake := bankroll * adjusted

	// Floor dust stakes up to the minimum bet, keeping the fraction and the
	// dollar amount consistent.
	if stake > 0 && stake < k.minBetAmount {
		stake = k.minBetAmount
		adjusted = stake / bankroll
	}

	result := &StakeResult{
		RawKelly:       rawKelly,
		AdjustedKelly:  adjusted,
		Stake:          stake,
		ExpectedValue:  ev,
		RiskLevel:      riskLevel(adjusted),
		Recommendation: recommendation(ev, adjusted, confidence),
	}
	result.Reasoning = reasoning(result, hitRate, decimalOdds, confidence)

	k.logger.WithFields(logrus.Fields{
		"bankroll":       bankroll,
		"hit_rate":       hitRate,
		"decimal_odds":   decimalOdds,
		"confidence":     confidence,
		"raw_kelly":      rawKelly,
		"adjusted_kelly": adjusted,
		"stake":          stake,
	}).Debug("Stake calculated")

	return result, nil
}

// PortfolioStake sums individual Kelly fractions across bets and applies a
// fixed correlation discount.
func (k *KellyStaking) PortfolioStake(bets []KellyInput, bankroll float64) (*PortfolioResult, error) {
	if bankroll <= 0 {
		return nil, fmt.Errorf("%w: bankroll %.2f must be positive", models.ErrInvalidInput, bankroll)
	}

	naive := 0.0
	for i, bet := range bets {
		result, err := k.Calculate(bet.HitRate, bet.DecimalOdds, bankroll, bet.Confidence)
		if err != nil {
			return nil, fmt.Errorf("bet %d: %w", i, err)
		}
		naive += result.AdjustedKelly
	}

	discounted := naive * portfolioCorrelationDiscount

	benefit := 0.0
	if naive > 0 {
		benefit = 1 - discounted/naive
	}

	return &PortfolioResult{
		TotalStake:             bankroll * discounted,
		TotalFraction:          discounted,
		RiskLevel:              riskLevel(discounted),
		DiversificationBenefit: benefit,
	}, nil
}

func riskLevel(adjusted float64) models.RiskLevel {
	switch {
	case adjusted <= 0.01:
		return models.RiskLow
	case adjusted <= 0.025:
		return models.RiskMedium
	case adjusted <= 0.05:
		return models.RiskHigh
	default:
		return models.RiskExtreme
	}
}

// recommendation combines edge, sizing, and confidence into a bet tier.
func recommendation(ev, adjusted, confidence float64) models.Recommendation {
	switch {
	case ev >= 0.10 && adjusted >= 0.03 && confidence >= 0.7:
		return models.RecommendStrongBet
	case ev >= 0.05 && adjusted >= 0.015 && confidence >= 0.5:
		return models.RecommendModerateBet
	case adjusted > 0:
		return models.RecommendSmallBet
	default:
		return models.RecommendAvoid
	}
}

// reasoning builds a deterministic explanation string from the same inputs
// that produced the result, for audit logs and golden-output tests.
func reasoning(r *StakeResult, hitRate, decimalOdds, confidence float64) string {
	capped := ""
	if r.AdjustedKelly < r.RawKelly*confidence {
		capped = ", capped at max fraction"
	}
	return fmt.Sprintf(
		"hit rate %.1f%% vs %.2f odds gives EV %.4f/unit; kelly %.2f%% scaled by confidence %.2f to %.2f%%%s",
		hitRate*100, decimalOdds, r.ExpectedValue, r.RawKelly*100, confidence, r.AdjustedKelly*100, capped,
	)
}
