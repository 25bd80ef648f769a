package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Temian1/oddsly/internal/logger"
	"github.com/Temian1/oddsly/internal/models"
)

func newTestKelly() *KellyStaking {
	return NewKellyStaking(DefaultMaxBetFraction, 1.0, logger.NewLogger("error"))
}

func TestCalculateRejectsInvalidInputs(t *testing.T) {
	k := newTestKelly()

	tests := []struct {
		name                                       string
		hitRate, decimalOdds, bankroll, confidence float64
	}{
		{"hit rate zero", 0, 1.91, 1000, 1},
		{"hit rate one", 1, 1.91, 1000, 1},
		{"odds at 1", 0.6, 1.0, 1000, 1},
		{"zero bankroll", 0.6, 1.91, 0, 1},
		{"confidence above 1", 0.6, 1.91, 1000, 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Calculate(tt.hitRate, tt.decimalOdds, tt.bankroll, tt.confidence)
			assert.True(t, errors.Is(err, models.ErrInvalidInput))
		})
	}
}

func TestCalculateAvoidsOnNonPositiveEV(t *testing.T) {
	k := newTestKelly()

	// ev = 0.50*0.91 - 0.50 = -0.045
	result, err := k.Calculate(0.50, 1.91, 10000, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assert.Equal(t, models.RecommendAvoid, result.Recommendation)
	assert.Equal(t, 0.0, result.Stake)
	assert.Equal(t, 0.0, result.RawKelly)
	assert.InDelta(t, -0.045, result.ExpectedValue, 1e-9)
}

func TestCalculateCapsAtMaxFraction(t *testing.T) {
	k := newTestKelly()

	result, err := k.Calculate(0.60, 1.91, 10000, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// rawKelly = (0.91*0.60 - 0.40)/0.91
	assert.InDelta(t, 0.1604, result.RawKelly, 1e-3)
	assert.Equal(t, 0.05, result.AdjustedKelly)
	assert.Equal(t, 500.0, result.Stake)
	assert.Equal(t, models.RiskHigh, result.RiskLevel)
	assert.Contains(t, []models.Recommendation{
		models.RecommendStrongBet, models.RecommendModerateBet,
	}, result.Recommendation)
}

func TestCalculateNeverReturnsNegativeKelly(t *testing.T) {
	k := newTestKelly()

	rates := []float64{0.05, 0.2, 0.4, 0.5, 0.6, 0.8, 0.95}
	oddsList := []float64{1.1, 1.5, 1.91, 2.5, 5.0}

	for _, p := range rates {
		for _, d := range oddsList {
			result, err := k.Calculate(p, d, 1000, 0.8)
			if err != nil {
				t.Fatalf("p=%.2f d=%.2f: %v", p, d, err)
			}
			if result.RawKelly < 0 {
				t.Fatalf("negative raw kelly %.4f at p=%.2f d=%.2f", result.RawKelly, p, d)
			}

			// Sign consistency: a zero raw kelly must mean non-positive EV.
			ev := p*(d-1) - (1 - p)
			if result.RawKelly == 0 && ev > 1e-12 {
				t.Fatalf("raw kelly zero with positive ev %.4f at p=%.2f d=%.2f", ev, p, d)
			}
		}
	}
}

func TestCalculateConfidenceScalesFraction(t *testing.T) {
	k := newTestKelly()

	full, err := k.Calculate(0.58, 2.2, 10000, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	half, err := k.Calculate(0.58, 2.2, 10000, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if half.AdjustedKelly >= full.AdjustedKelly {
		t.Fatalf("expected lower fraction at half confidence: %.4f vs %.4f",
			half.AdjustedKelly, full.AdjustedKelly)
	}
}

func TestCalculateFloorsDustStakes(t *testing.T) {
	k := NewKellyStaking(0.05, 5.0, logger.NewLogger("error"))

	// Tiny bankroll pushes the stake below the minimum bet.
	result, err := k.Calculate(0.60, 1.91, 50, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assert.Equal(t, 5.0, result.Stake)
	// Percentage and dollar amount stay consistent.
	assert.InDelta(t, result.Stake/50, result.AdjustedKelly, 1e-9)
}

func TestRiskLevels(t *testing.T) {
	tests := []struct {
		adjusted float64
		want     models.RiskLevel
	}{
		{0.005, models.RiskLow},
		{0.01, models.RiskLow},
		{0.02, models.RiskMedium},
		{0.025, models.RiskMedium},
		{0.04, models.RiskHigh},
		{0.05, models.RiskHigh},
		{0.08, models.RiskExtreme},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, riskLevel(tt.adjusted), "adjusted %.3f", tt.adjusted)
	}
}

func TestReasoningIsDeterministic(t *testing.T) {
	k := newTestKelly()

	first, err := k.Calculate(0.60, 1.91, 10000, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := k.Calculate(0.60, 1.91, 10000, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assert.Equal(t, first.Reasoning, second.Reasoning)
	assert.NotEmpty(t, first.Reasoning)
}

func TestPortfolioStakeAppliesCorrelationDiscount(t *testing.T) {
	k := newTestKelly()

	bets := []KellyInput{
		{HitRate: 0.60, DecimalOdds: 1.91, Confidence: 1.0},
		{HitRate: 0.62, DecimalOdds: 1.91, Confidence: 1.0},
	}

	result, err := k.PortfolioStake(bets, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both legs cap at 5%, naive sum 10%, discounted to 8%.
	assert.InDelta(t, 0.08, result.TotalFraction, 1e-9)
	assert.InDelta(t, 800.0, result.TotalStake, 1e-6)
	assert.InDelta(t, 0.2, result.DiversificationBenefit, 1e-9)
	assert.Equal(t, models.RiskExtreme, result.RiskLevel)
}

func TestPortfolioStakeEmpty(t *testing.T) {
	k := newTestKelly()

	result, err := k.PortfolioStake(nil, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assert.Equal(t, 0.0, result.TotalStake)
	assert.Equal(t, 0.0, result.DiversificationBenefit)
}
