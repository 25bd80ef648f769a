package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/Temian1/oddsly/internal/metrics"
	"github.com/Temian1/oddsly/internal/models"
	"github.com/Temian1/oddsly/internal/repository"
)

// lockStripes bounds the number of per-combination mutexes.
const lockStripes = 64

// LineWindow is the inclusive line range an estimate covers.
type LineWindow struct {
	Min float64
	Max float64
}

// FullLineWindow covers every line for a combination.
var FullLineWindow = LineWindow{Min: math.Inf(-1), Max: math.Inf(1)}

// RecalcError records a single failed combination during RecalculateAll.
type RecalcError struct {
	PlayerName string
	PropType   string
	SportKey   string
	Err        error
}

func (e RecalcError) Error() string {
	return fmt.Sprintf("%s/%s/%s: %v", e.PlayerName, e.PropType, e.SportKey, e.Err)
}

// HistoricalAggregator computes hit-rate estimates from stored outcomes and
// keeps the persisted estimates in sync as new outcomes are graded.
//
// All recomputation funnels through this type so that updates for a single
// (player, propType, sport) combination apply in arrival order: concurrent
// refresh workers fan in through a striped per-combination lock.
type HistoricalAggregator struct {
	store         repository.PropStore
	lookbackDays  int
	minSampleSize int
	estimateCache *cache.Cache
	locks         [lockStripes]chan struct{}
	logger        *logrus.Logger
}

// NewHistoricalAggregator creates an aggregator over the given store.
func NewHistoricalAggregator(store repository.PropStore, lookbackDays, minSampleSize int, cacheTTL time.Duration, logger *logrus.Logger) *HistoricalAggregator {
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	if minSampleSize <= 0 {
		minSampleSize = 5
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}

	a := &HistoricalAggregator{
		store:         store,
		lookbackDays:  lookbackDays,
		minSampleSize: minSampleSize,
		estimateCache: cache.New(cacheTTL, 2*cacheTTL),
		logger:        logger,
	}
	for i := range a.locks {
		a.locks[i] = make(chan struct{}, 1)
	}
	return a
}

// Estimate computes a hit-rate estimate for the player/prop/sport combination
// within the line window, over the configured lookback. Fewer than
// minSampleSize graded outcomes is ErrInsufficientData: confidence math below
// the floor is not meaningful.
func (a *HistoricalAggregator) Estimate(ctx context.Context, playerName, propType string, window LineWindow, sportKey string) (*models.HitRateEstimate, error) {
	since := time.Now().UTC().AddDate(0, 0, -a.lookbackDays)

	filter := &models.OutcomeFilter{
		PlayerName: playerName,
		PropType:   propType,
		SportKey:   sportKey,
		Since:      since,
		GradedOnly: true,
	}
	if !math.IsInf(window.Min, -1) {
		filter.LineMin = &window.Min
	}
	if !math.IsInf(window.Max, 1) {
		filter.LineMax = &window.Max
	}

	outcomes, err := a.store.QueryOutcomes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}

	if len(outcomes) < a.minSampleSize {
		return nil, fmt.Errorf("%w: %d graded outcomes, need %d",
			models.ErrInsufficientData, len(outcomes), a.minSampleSize)
	}

	return buildEstimate(playerName, propType, sportKey, outcomes), nil
}

// buildEstimate computes the estimate from a non-empty graded outcome set.
func buildEstimate(playerName, propType, sportKey string, outcomes []*models.Outcome) *models.HitRateEstimate {
	hits := 0
	lineMin := math.Inf(1)
	lineMax := math.Inf(-1)
	for _, o := range outcomes {
		if *o.Hit {
			hits++
		}
		lineMin = math.Min(lineMin, o.Line)
		lineMax = math.Max(lineMax, o.Line)
	}

	n := len(outcomes)
	hitRate := float64(hits) / float64(n)

	// Normal approximation for the standard error and 95% CI, clamped to [0,1].
	se := math.Sqrt(hitRate * (1 - hitRate) / float64(n))
	lower := math.Max(0, hitRate-1.96*se)
	upper := math.Min(1, hitRate+1.96*se)

	return &models.HitRateEstimate{
		PlayerName:      playerName,
		PropType:        propType,
		LineRangeMin:    lineMin,
		LineRangeMax:    lineMax,
		SportKey:        sportKey,
		HitRate:         hitRate,
		SampleCount:     n,
		ConfidenceLevel: storageConfidence(n),
		StandardError:   se,
		CILower:         lower,
		CIUpper:         upper,
		LastUpdated:     time.Now().UTC(),
	}
}

// storageConfidence is the coarse sample-size tag persisted with an estimate.
// Deliberately separate from the runtime confidence scorer's blend.
func storageConfidence(sampleCount int) models.ConfidenceLevel {
	switch {
	case sampleCount >= 30:
		return models.ConfidenceHigh
	case sampleCount >= 15:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// RecordOutcome persists an outcome. When the save grades a previously
// ungraded outcome, the affected combination's stored estimate is recomputed
// under the combination lock.
func (a *HistoricalAggregator) RecordOutcome(ctx context.Context, outcome *models.Outcome) error {
	key := outcome.CombinationKey()

	lock := a.locks[stripeFor(key)]
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	if err := a.store.SaveOutcome(ctx, outcome); err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}

	if !outcome.Graded() {
		return nil
	}

	if err := a.recompute(ctx, outcome.PlayerName, outcome.PropType, outcome.SportKey); err != nil {
		return fmt.Errorf("failed to recompute estimate: %w", err)
	}

	return nil
}

// recompute rebuilds and upserts the stored estimate for one combination.
// Caller holds the combination lock.
func (a *HistoricalAggregator) recompute(ctx context.Context, playerName, propType, sportKey string) error {
	estimate, err := a.Estimate(ctx, playerName, propType, FullLineWindow, sportKey)
	if err != nil {
		// Below the sample floor there is nothing to persist yet.
		if isInsufficientData(err) {
			return nil
		}
		return err
	}

	if err := a.store.UpsertHitRate(ctx, estimate); err != nil {
		return err
	}

	a.estimateCache.Delete(estimate.Key())
	metrics.EstimatesRecomputedTotal.Inc()

	a.logger.WithFields(logrus.Fields{
		"player":       playerName,
		"prop_type":    propType,
		"sport":        sportKey,
		"hit_rate":     estimate.HitRate,
		"sample_count": estimate.SampleCount,
	}).Debug("Hit rate recomputed")

	return nil
}

// ReadEstimate returns the stored estimate for a combination, read through a
// short-TTL cache.
func (a *HistoricalAggregator) ReadEstimate(ctx context.Context, playerName, propType, sportKey string) (*models.HitRateEstimate, bool, error) {
	key := models.CombinationKey(playerName, propType, sportKey)

	if cached, found := a.estimateCache.Get(key); found {
		if estimate, ok := cached.(*models.HitRateEstimate); ok {
			return estimate, true, nil
		}
	}

	estimate, found, err := a.store.ReadHitRate(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	a.estimateCache.SetDefault(key, estimate)
	return estimate, true, nil
}

// RecalculateAll recomputes the stored estimate for every combination with
// enough graded history. Per-combination failures are collected, not fatal:
// one bad combination must not abort the batch.
func (a *HistoricalAggregator) RecalculateAll(ctx context.Context) (int, []RecalcError) {
	combos, err := a.store.DistinctCombinations(ctx, a.minSampleSize)
	if err != nil {
		return 0, []RecalcError{{Err: fmt.Errorf("failed to list combinations: %w", err)}}
	}

	metrics.TrackedCombinations.Set(float64(len(combos)))

	recomputed := 0
	var failures []RecalcError

	for _, combo := range combos {
		key := models.CombinationKey(combo.PlayerName, combo.PropType, combo.SportKey)
		lock := a.locks[stripeFor(key)]

		select {
		case lock <- struct{}{}:
		case <-ctx.Done():
			failures = append(failures, RecalcError{
				PlayerName: combo.PlayerName, PropType: combo.PropType, SportKey: combo.SportKey,
				Err: ctx.Err(),
			})
			return recomputed, failures
		}

		err := a.recompute(ctx, combo.PlayerName, combo.PropType, combo.SportKey)
		<-lock

		if err != nil {
			failures = append(failures, RecalcError{
				PlayerName: combo.PlayerName, PropType: combo.PropType, SportKey: combo.SportKey,
				Err: err,
			})
			a.logger.WithError(err).WithFields(logrus.Fields{
				"player":    combo.PlayerName,
				"prop_type": combo.PropType,
				"sport":     combo.SportKey,
			}).Warn("Failed to recalculate combination")
			continue
		}
		recomputed++
	}

	a.logger.WithFields(logrus.Fields{
		"recomputed": recomputed,
		"failures":   len(failures),
	}).Info("Recalculation complete")

	return recomputed, failures
}

// MinSampleSize exposes the configured hard floor.
func (a *HistoricalAggregator) MinSampleSize() int {
	return a.minSampleSize
}

// LookbackDays exposes the configured estimation window.
func (a *HistoricalAggregator) LookbackDays() int {
	return a.lookbackDays
}

func stripeFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % lockStripes)
}

func isInsufficientData(err error) bool {
	return errors.Is(err, models.ErrInsufficientData)
}
