package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Temian1/oddsly/internal/models"
)

func validInput() ConfidenceInput {
	return ConfidenceInput{
		SampleSize:    100,
		HitRate:       0.6,
		TimeRangeDays: 90,
		DataQuality:   QualityHigh,
		Consistency:   0.8,
		Recency:       0.9,
	}
}

func TestScoreConfidenceRejectsOutOfDomainInputs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfidenceInput)
	}{
		{"negative sample size", func(in *ConfidenceInput) { in.SampleSize = -1 }},
		{"hit rate above 1", func(in *ConfidenceInput) { in.HitRate = 1.2 }},
		{"hit rate below 0", func(in *ConfidenceInput) { in.HitRate = -0.1 }},
		{"negative time range", func(in *ConfidenceInput) { in.TimeRangeDays = -5 }},
		{"consistency above 1", func(in *ConfidenceInput) { in.Consistency = 1.5 }},
		{"recency below 0", func(in *ConfidenceInput) { in.Recency = -0.2 }},
		{"unknown quality", func(in *ConfidenceInput) { in.DataQuality = "excellent" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := ScoreConfidence(in)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidInput))
		})
	}
}

func TestScoreConfidenceWeightedBlend(t *testing.T) {
	in := ConfidenceInput{
		SampleSize:    1000,
		HitRate:       0.5,
		TimeRangeDays: 365,
		DataQuality:   QualityHigh,
		Consistency:   1.0,
		Recency:       1.0,
	}

	result, err := ScoreConfidence(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every factor maxed: 0.3 + 0.2 + 0.2 + 0.2 + 0.1
	assert.InDelta(t, 1.0, result.Overall, 1e-9)
	assert.Equal(t, TierVeryHigh, result.Tier)
	assert.Empty(t, result.Warnings)
}

func TestScoreConfidenceMonotonicInSampleSize(t *testing.T) {
	sizes := []int{0, 4, 5, 9, 10, 29, 30, 49, 50, 99, 100, 249, 250, 499, 500, 999, 1000, 5000}

	prev := -1.0
	for _, n := range sizes {
		in := validInput()
		in.SampleSize = n

		result, err := ScoreConfidence(in)
		if err != nil {
			t.Fatalf("sample size %d: %v", n, err)
		}
		if result.Overall < prev {
			t.Fatalf("overall decreased at sample size %d: %.4f < %.4f", n, result.Overall, prev)
		}
		prev = result.Overall
	}
}

func TestMarginOfError(t *testing.T) {
	assert.Equal(t, 1.0, MarginOfError(0.5, 0))

	got := MarginOfError(0.5, 100)
	want := 1.96 * math.Sqrt(0.25/100)
	assert.InDelta(t, want, got, 1e-9)
}

func TestScoreConfidenceWarnings(t *testing.T) {
	in := ConfidenceInput{
		SampleSize:    7,
		HitRate:       0.5,
		TimeRangeDays: 14,
		DataQuality:   QualityLow,
		Consistency:   0.3,
		Recency:       0.2,
	}

	result, err := ScoreConfidence(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Small sample (<30), strict small sample (<10), short history, low
	// quality, low consistency, low recency.
	assert.Len(t, result.Warnings, 6)
	assert.Equal(t, TierVeryLow, result.Tier)
}

func TestConfidenceTierBands(t *testing.T) {
	tests := []struct {
		overall float64
		want    ConfidenceTier
	}{
		{0.95, TierVeryHigh},
		{0.9, TierVeryHigh},
		{0.8, TierHigh},
		{0.75, TierHigh},
		{0.65, TierMedium},
		{0.6, TierMedium},
		{0.5, TierLow},
		{0.4, TierLow},
		{0.39, TierVeryLow},
		{0.1, TierVeryLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, confidenceTier(tt.overall), "overall %.2f", tt.overall)
	}
}
