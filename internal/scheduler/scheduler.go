package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Temian1/oddsly/internal/config"
	"github.com/Temian1/oddsly/internal/datasource"
	"github.com/Temian1/oddsly/internal/engine"
	"github.com/Temian1/oddsly/internal/metrics"
	"github.com/Temian1/oddsly/internal/models"
)

// Status is a non-blocking snapshot of the scheduler's state.
type Status struct {
	IsRunning       bool             `json:"is_running"`
	IsRefreshing    bool             `json:"is_refreshing"`
	LastRefreshTime time.Time        `json:"last_refresh_time"`
	RecordCounts    map[string]int64 `json:"record_counts"`
	ErrorCount      int64            `json:"error_count"`
}

// fetchResult is the settled outcome of one sport's fetch-and-record job.
type fetchResult struct {
	sportKey string
	recorded int
	skipped  int
	err      error
}

// RefreshScheduler periodically pulls fresh market data for the configured
// sports, feeds new outcomes into the aggregator, and maintains the refresh
// watermark. At most one refresh runs at a time: a trigger arriving while one
// is in flight is a logged no-op, deliberate backpressure rather than an error.
type RefreshScheduler struct {
	fetcher    datasource.MarketFetcher
	aggregator *engine.HistoricalAggregator
	cfg        config.RefreshConfig
	cron       *cron.Cron
	watermark  *RefreshWatermark
	logger     *logrus.Logger

	mu           sync.Mutex
	isRunning    bool
	isRefreshing bool
	entryID      cron.EntryID
	recordCounts map[string]int64
	errorCount   int64

	refreshWG       sync.WaitGroup
	gracefulTimeout time.Duration
}

// NewRefreshScheduler creates a scheduler. It does not start anything: the
// composition root owns the Start/Stop lifecycle.
func NewRefreshScheduler(fetcher datasource.MarketFetcher, aggregator *engine.HistoricalAggregator, cfg config.RefreshConfig, logger *logrus.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		fetcher:         fetcher,
		aggregator:      aggregator,
		cfg:             cfg,
		cron:            cron.New(cron.WithLocation(time.UTC)),
		watermark:       NewRefreshWatermark(),
		logger:          logger,
		recordCounts:    make(map[string]int64),
		gracefulTimeout: 30 * time.Second,
	}
}

// Start begins periodic refresh ticking.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	interval := time.Duration(s.cfg.IntervalMinutes) * time.Minute
	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		tickCtx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		s.refresh(tickCtx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	s.logger.WithFields(logrus.Fields{
		"interval_minutes": s.cfg.IntervalMinutes,
		"sports":           s.cfg.Sports,
		"max_concurrent":   s.cfg.MaxConcurrentFetches,
	}).Info("Refresh scheduler started")

	return nil
}

// Stop cancels periodic ticking and waits for an in-flight refresh to finish
// rather than aborting it mid-write, bounded by the graceful timeout.
func (s *RefreshScheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.refreshWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Refresh scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("refresh still in flight after %s graceful timeout", s.gracefulTimeout)
	}
}

// RefreshNow triggers a refresh immediately, subject to the same
// single-flight rule as scheduled ticks.
func (s *RefreshScheduler) RefreshNow(ctx context.Context) {
	s.refresh(ctx)
}

// GetStatus returns a snapshot without blocking on an in-progress refresh.
func (s *RefreshScheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int64, len(s.recordCounts))
	for sport, count := range s.recordCounts {
		counts[sport] = count
	}

	_, lastEnd, _ := s.watermark.Snapshot()

	return Status{
		IsRunning:       s.isRunning,
		IsRefreshing:    s.isRefreshing,
		LastRefreshTime: lastEnd,
		RecordCounts:    counts,
		ErrorCount:      s.errorCount,
	}
}

// StatusJSON serializes the current status for the health server.
func (s *RefreshScheduler) StatusJSON() ([]byte, error) {
	return json.Marshal(s.GetStatus())
}

// refresh runs one full cycle: fetch every configured sport through a bounded
// worker pool, record new outcomes, update the watermark. Per-sport failures
// are isolated and counted; none aborts its siblings.
func (s *RefreshScheduler) refresh(ctx context.Context) {
	s.mu.Lock()
	if s.isRefreshing {
		s.mu.Unlock()
		s.logger.Info("Refresh already in flight, skipping trigger")
		return
	}
	s.isRefreshing = true
	s.refreshWG.Add(1)
	s.mu.Unlock()

	start := time.Now()
	s.watermark.BeginRun(start)
	metrics.RefreshInFlight.Set(1)

	defer func() {
		s.watermark.EndRun(time.Now())
		metrics.RefreshInFlight.Set(0)
		metrics.RefreshDuration.Observe(time.Since(start).Seconds())

		s.mu.Lock()
		s.isRefreshing = false
		s.mu.Unlock()
		s.refreshWG.Done()
	}()

	results := s.fetchAll(ctx)

	recorded, failed := 0, 0
	for _, result := range results {
		if result.err != nil {
			failed++
			s.mu.Lock()
			s.errorCount++
			s.mu.Unlock()
			metrics.FetchErrorsTotal.WithLabelValues(result.sportKey).Inc()
			s.logger.WithError(result.err).WithField("sport", result.sportKey).
				Warn("Sport refresh failed")
			continue
		}

		recorded += result.recorded
		s.mu.Lock()
		s.recordCounts[result.sportKey] += int64(result.recorded)
		s.mu.Unlock()
	}

	s.logger.WithFields(logrus.Fields{
		"sports":   len(results),
		"failed":   failed,
		"recorded": recorded,
		"duration": time.Since(start).String(),
	}).Info("Refresh cycle complete")
}

// fetchAll runs one fetch job per configured sport over a bounded worker
// pool and joins all of them, settled or failed.
func (s *RefreshScheduler) fetchAll(ctx context.Context) []fetchResult {
	sem := make(chan struct{}, s.cfg.MaxConcurrentFetches)
	results := make([]fetchResult, len(s.cfg.Sports))

	var wg sync.WaitGroup
	for i, sportKey := range s.cfg.Sports {
		wg.Add(1)
		go func(idx int, sport string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = s.fetchSport(ctx, sport)
		}(i, sportKey)
	}
	wg.Wait()

	return results
}

// fetchSport fetches one sport's props and records them in arrival order.
// A single worker owns each sport, so outcomes for any one combination are
// applied sequentially through the aggregator.
func (s *RefreshScheduler) fetchSport(ctx context.Context, sportKey string) fetchResult {
	result := fetchResult{sportKey: sportKey}

	fetchStart := time.Now()
	raws, err := s.fetcher.FetchMarketProps(ctx, sportKey, "")
	metrics.FetchDuration.WithLabelValues(sportKey).Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		result.err = fmt.Errorf("fetch %s: %w", sportKey, err)
		return result
	}

	platforms := make(map[string]struct{}, len(s.cfg.Platforms))
	for _, p := range s.cfg.Platforms {
		platforms[p] = struct{}{}
	}

	for _, raw := range raws {
		if _, ok := platforms[raw.PlatformKey]; len(platforms) > 0 && !ok {
			continue
		}

		outcome := normalizeOutcome(sportKey, raw)

		// Graded results pass through even for seen events; everything else
		// is deduplicated against the watermark.
		if !outcome.Graded() && s.watermark.Seen(sportKey, dedupKey(raw)) {
			result.skipped++
			continue
		}

		if err := s.aggregator.RecordOutcome(ctx, outcome); err != nil {
			metrics.RecordErrorsTotal.Inc()
			s.logger.WithError(err).WithFields(logrus.Fields{
				"sport":  sportKey,
				"player": outcome.PlayerName,
				"prop":   outcome.PropType,
			}).Warn("Failed to record outcome")
			continue
		}

		s.watermark.MarkSeen(sportKey, dedupKey(raw))
		metrics.OutcomesRecordedTotal.Inc()
		result.recorded++
	}

	return result
}

// normalizeOutcome converts a provider payload into the storage model.
func normalizeOutcome(sportKey string, raw datasource.RawOutcome) *models.Outcome {
	outcome := &models.Outcome{
		ID:          uuid.New(),
		PlayerName:  raw.PlayerName,
		PropType:    raw.PropType,
		Line:        raw.Line.InexactFloat64(),
		GameDate:    raw.GameDate,
		SportKey:    sportKey,
		PlatformKey: raw.PlatformKey,
		EventID:     raw.EventID,
		Odds:        raw.Odds.InexactFloat64(),
		CreatedAt:   raw.FetchedAt,
	}

	if raw.ActualResult != nil {
		actual := raw.ActualResult.InexactFloat64()
		hit := actual >= outcome.Line
		outcome.ActualResult = &actual
		outcome.Hit = &hit
	}

	return outcome
}

// dedupKey identifies a prop market entry within one sport's seen set.
func dedupKey(raw datasource.RawOutcome) string {
	return raw.EventID + "|" + raw.PlayerName + "|" + raw.PropType + "|" + raw.Line.String()
}
