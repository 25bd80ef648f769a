package engine

import (
	"fmt"
	"math"

	"github.com/Temian1/oddsly/internal/models"
)

// DataQuality grades the provenance of the sample feeding a confidence score.
type DataQuality string

const (
	QualityHigh   DataQuality = "high"
	QualityMedium DataQuality = "medium"
	QualityLow    DataQuality = "low"
)

// ConfidenceTier is the qualitative band for an overall confidence score.
type ConfidenceTier string

const (
	TierVeryHigh ConfidenceTier = "VERY_HIGH"
	TierHigh     ConfidenceTier = "HIGH"
	TierMedium   ConfidenceTier = "MEDIUM"
	TierLow      ConfidenceTier = "LOW"
	TierVeryLow  ConfidenceTier = "VERY_LOW"
)

// Factor weights for the overall confidence blend.
const (
	weightSampleSize  = 0.3
	weightTimeRange   = 0.2
	weightQuality     = 0.2
	weightConsistency = 0.2
	weightRecency     = 0.1
)

// ConfidenceInput describes the sample behind a hit-rate estimate. Derived,
// stateless, never persisted.
type ConfidenceInput struct {
	SampleSize    int
	HitRate       float64
	TimeRangeDays int
	DataQuality   DataQuality
	Consistency   float64
	Recency       float64
}

// ConfidenceResult is the fine-grained runtime confidence score. Distinct
// from the coarse ConfidenceLevel tag stored on HitRateEstimate.
type ConfidenceResult struct {
	Overall       float64
	Tier          ConfidenceTier
	MarginOfError float64
	Warnings      []string
}

// ScoreConfidence blends sample metadata into an overall confidence score.
// Pure and deterministic; safe to call concurrently without locking.
func ScoreConfidence(in ConfidenceInput) (*ConfidenceResult, error) {
	if err := validateConfidenceInput(in); err != nil {
		return nil, err
	}

	overall := weightSampleSize*sampleSizeFactor(in.SampleSize) +
		weightTimeRange*timeRangeFactor(in.TimeRangeDays) +
		weightQuality*qualityFactor(in.DataQuality) +
		weightConsistency*in.Consistency +
		weightRecency*in.Recency

	return &ConfidenceResult{
		Overall:       overall,
		Tier:          confidenceTier(overall),
		MarginOfError: MarginOfError(in.HitRate, in.SampleSize),
		Warnings:      confidenceWarnings(in),
	}, nil
}

func validateConfidenceInput(in ConfidenceInput) error {
	switch {
	case in.SampleSize < 0:
		return fmt.Errorf("%w: sample size %d is negative", models.ErrInvalidInput, in.SampleSize)
	case in.HitRate < 0 || in.HitRate > 1:
		return fmt.Errorf("%w: hit rate %.4f outside [0,1]", models.ErrInvalidInput, in.HitRate)
	case in.TimeRangeDays < 0:
		return fmt.Errorf("%w: time range %d days is negative", models.ErrInvalidInput, in.TimeRangeDays)
	case in.Consistency < 0 || in.Consistency > 1:
		return fmt.Errorf("%w: consistency %.4f outside [0,1]", models.ErrInvalidInput, in.Consistency)
	case in.Recency < 0 || in.Recency > 1:
		return fmt.Errorf("%w: recency %.4f outside [0,1]", models.ErrInvalidInput, in.Recency)
	}

	switch in.DataQuality {
	case QualityHigh, QualityMedium, QualityLow:
		return nil
	default:
		return fmt.Errorf("%w: unknown data quality %q", models.ErrInvalidInput, in.DataQuality)
	}
}

// sampleSizeFactor maps a sample size into a monotone [0.1, 1.0] band.
func sampleSizeFactor(n int) float64 {
	switch {
	case n >= 1000:
		return 1.0
	case n >= 500:
		return 0.9
	case n >= 250:
		return 0.8
	case n >= 100:
		return 0.7
	case n >= 50:
		return 0.55
	case n >= 30:
		return 0.4
	case n >= 10:
		return 0.25
	case n >= 5:
		return 0.15
	default:
		return 0.1
	}
}

// timeRangeFactor maps a lookback span into a monotone [0.3, 1.0] band.
func timeRangeFactor(days int) float64 {
	switch {
	case days >= 365:
		return 1.0
	case days >= 180:
		return 0.85
	case days >= 90:
		return 0.7
	case days >= 30:
		return 0.5
	case days >= 7:
		return 0.4
	default:
		return 0.3
	}
}

func qualityFactor(q DataQuality) float64 {
	switch q {
	case QualityHigh:
		return 1.0
	case QualityMedium:
		return 0.7
	default:
		return 0.4
	}
}

func confidenceTier(overall float64) ConfidenceTier {
	switch {
	case overall >= 0.9:
		return TierVeryHigh
	case overall >= 0.75:
		return TierHigh
	case overall >= 0.6:
		return TierMedium
	case overall >= 0.4:
		return TierLow
	default:
		return TierVeryLow
	}
}

// MarginOfError returns the 95% margin of error for a sample proportion.
// The degenerate zero-sample case is defined as 1.0 (total uncertainty).
func MarginOfError(hitRate float64, sampleSize int) float64 {
	if sampleSize == 0 {
		return 1.0
	}
	return 1.96 * math.Sqrt(hitRate*(1-hitRate)/float64(sampleSize))
}

func confidenceWarnings(in ConfidenceInput) []string {
	var warnings []string

	if in.SampleSize < 30 {
		warnings = append(warnings, fmt.Sprintf("small sample: %d outcomes (want 30+)", in.SampleSize))
	}
	if in.SampleSize < 10 {
		warnings = append(warnings, fmt.Sprintf("sample of %d is too small for a reliable estimate", in.SampleSize))
	}
	if in.TimeRangeDays < 30 {
		warnings = append(warnings, fmt.Sprintf("short history: %d days (want 30+)", in.TimeRangeDays))
	}
	if in.DataQuality == QualityLow {
		warnings = append(warnings, "low data quality source")
	}
	if in.Consistency < 0.5 {
		warnings = append(warnings, fmt.Sprintf("inconsistent results: consistency %.2f", in.Consistency))
	}
	if in.Recency < 0.5 {
		warnings = append(warnings, fmt.Sprintf("stale data: recency %.2f", in.Recency))
	}

	return warnings
}
