package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Temian1/oddsly/internal/metrics"
	"github.com/Temian1/oddsly/internal/models"
)

// defaultLineSlack widens the estimate window around a requested line so that
// adjacent half-point lines contribute history.
const defaultLineSlack = 0.5

// EvaluationRequest describes one prop to evaluate against market odds.
type EvaluationRequest struct {
	PlayerName string
	PropType   string
	SportKey   string
	Line       float64
	Odds       float64
	OddsKind   OddsKind
	Platform   string
	Bankroll   float64
	LegCount   int
	// Window overrides the default line window around Line when set.
	Window *LineWindow
}

// Evaluator wires the aggregator, EV calculator, and Kelly staking into the
// single Evaluate entry point exposed to callers.
type Evaluator struct {
	aggregator *HistoricalAggregator
	ev         *EVCalculator
	kelly      *KellyStaking
	logger     *logrus.Logger
}

// NewEvaluator creates the evaluation pipeline.
func NewEvaluator(aggregator *HistoricalAggregator, ev *EVCalculator, kelly *KellyStaking, logger *logrus.Logger) *Evaluator {
	return &Evaluator{
		aggregator: aggregator,
		ev:         ev,
		kelly:      kelly,
		logger:     logger,
	}
}

// Evaluate runs the full pipeline: hit-rate estimate, implied probability,
// EV, and Kelly stake. Every call terminates with a PropEvaluation or a
// named error, never a silent default.
func (e *Evaluator) Evaluate(ctx context.Context, req EvaluationRequest) (*models.PropEvaluation, error) {
	metrics.EvaluationsTotal.Inc()

	if req.PlayerName == "" || req.PropType == "" {
		return nil, fmt.Errorf("%w: player name and prop type are required", models.ErrInvalidInput)
	}
	if req.Bankroll <= 0 {
		return nil, fmt.Errorf("%w: bankroll %.2f must be positive", models.ErrInvalidInput, req.Bankroll)
	}

	window := LineWindow{Min: req.Line - defaultLineSlack, Max: req.Line + defaultLineSlack}
	if req.Window != nil {
		window = *req.Window
	}

	estimate, err := e.aggregator.Estimate(ctx, req.PlayerName, req.PropType, window, req.SportKey)
	if err != nil {
		return nil, err
	}

	implied, err := e.ev.ImpliedProbability(req.Odds, req.OddsKind, req.Platform, req.LegCount)
	if err != nil {
		return nil, err
	}

	evResult := e.ev.Evaluate(estimate.HitRate, implied)

	confidence, err := ScoreConfidence(confidenceInputFromEstimate(estimate, e.aggregator.LookbackDays()))
	if err != nil {
		return nil, err
	}

	decimalOdds, err := e.decimalOdds(req)
	if err != nil {
		return nil, err
	}

	stake, err := e.kelly.Calculate(estimate.HitRate, decimalOdds, req.Bankroll, confidence.Overall)
	if err != nil {
		return nil, err
	}

	if evResult.IsPositiveEV {
		metrics.PositiveEVTotal.Inc()
	}

	e.logger.WithFields(logrus.Fields{
		"player":         req.PlayerName,
		"prop_type":      req.PropType,
		"line":           req.Line,
		"hit_rate":       estimate.HitRate,
		"implied":        implied,
		"ev_pct":         evResult.EVPercentage,
		"stake":          stake.Stake,
		"recommendation": stake.Recommendation,
	}).Info("Prop evaluated")

	return &models.PropEvaluation{
		PlayerName:         req.PlayerName,
		PropType:           req.PropType,
		Line:               req.Line,
		PlatformKey:        req.Platform,
		HitRate:            estimate.HitRate,
		SampleCount:        estimate.SampleCount,
		ImpliedProbability: implied,
		EVPercentage:       evResult.EVPercentage,
		IsPositiveEV:       evResult.IsPositiveEV,
		ConfidenceLevel:    estimate.ConfidenceLevel,
		ConfidenceScore:    confidence.Overall,
		RecommendedStake:   stake.Stake,
		KellyPercentage:    stake.AdjustedKelly * 100,
		RiskLevel:          stake.RiskLevel,
		Recommendation:     stake.Recommendation,
		Reasoning:          stake.Reasoning,
		EvaluatedAt:        time.Now().UTC(),
	}, nil
}

// decimalOdds normalizes the request odds to decimal for staking math.
func (e *Evaluator) decimalOdds(req EvaluationRequest) (float64, error) {
	switch req.OddsKind {
	case OddsDecimal:
		if req.Odds <= 1 {
			return 0, fmt.Errorf("%w: decimal odds %.2f must exceed 1", models.ErrInvalidInput, req.Odds)
		}
		return req.Odds, nil
	case OddsAmerican:
		return DecimalFromAmerican(req.Odds)
	case OddsDFS:
		return e.ev.DecimalFromDFS(req.Platform, req.LegCount), nil
	default:
		return 0, fmt.Errorf("%w: unknown odds kind %q", models.ErrInvalidInput, req.OddsKind)
	}
}

// confidenceInputFromEstimate derives scorer inputs from estimate metadata.
// Consistency tracks how tight the sample proportion is (low standard error);
// recency decays with the estimate's age across the lookback window.
func confidenceInputFromEstimate(estimate *models.HitRateEstimate, lookbackDays int) ConfidenceInput {
	consistency := clamp01(1 - 2*estimate.StandardError)

	recency := 1.0
	if lookbackDays > 0 && !estimate.LastUpdated.IsZero() {
		ageDays := time.Since(estimate.LastUpdated).Hours() / 24
		recency = clamp01(1 - ageDays/float64(lookbackDays))
	}

	quality := QualityLow
	switch estimate.ConfidenceLevel {
	case models.ConfidenceHigh:
		quality = QualityHigh
	case models.ConfidenceMedium:
		quality = QualityMedium
	}

	return ConfidenceInput{
		SampleSize:    estimate.SampleCount,
		HitRate:       estimate.HitRate,
		TimeRangeDays: lookbackDays,
		DataQuality:   quality,
		Consistency:   consistency,
		Recency:       recency,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
