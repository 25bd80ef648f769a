package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Temian1/oddsly/internal/config"
	"github.com/Temian1/oddsly/internal/datasource"
	"github.com/Temian1/oddsly/internal/engine"
	"github.com/Temian1/oddsly/internal/logger"
	"github.com/Temian1/oddsly/internal/models"
	"github.com/Temian1/oddsly/internal/repository"
)

// stubFetcher is a scriptable MarketFetcher for scheduler tests.
type stubFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	fetchFn func(ctx context.Context, sportKey string) ([]datasource.RawOutcome, error)
}

func newStubFetcher(fetchFn func(ctx context.Context, sportKey string) ([]datasource.RawOutcome, error)) *stubFetcher {
	return &stubFetcher{calls: make(map[string]int), fetchFn: fetchFn}
}

func (f *stubFetcher) FetchMarketProps(ctx context.Context, sportKey, matchID string) ([]datasource.RawOutcome, error) {
	f.mu.Lock()
	f.calls[sportKey]++
	f.mu.Unlock()
	return f.fetchFn(ctx, sportKey)
}

func (f *stubFetcher) Name() string    { return "stub" }
func (f *stubFetcher) IsEnabled() bool { return true }

func (f *stubFetcher) callCount(sportKey string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[sportKey]
}

func (f *stubFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func rawProp(eventID, player, propType, platform string, line float64) datasource.RawOutcome {
	return datasource.RawOutcome{
		EventID:     eventID,
		PlayerName:  player,
		PropType:    propType,
		Line:        decimal.NewFromFloat(line),
		Odds:        decimal.NewFromFloat(1.91),
		GameDate:    time.Now().UTC(),
		PlatformKey: platform,
		FetchedAt:   time.Now().UTC(),
	}
}

func gradedRawProp(eventID, player, propType, platform string, line, actual float64) datasource.RawOutcome {
	raw := rawProp(eventID, player, propType, platform, line)
	result := decimal.NewFromFloat(actual)
	raw.ActualResult = &result
	return raw
}

func newTestScheduler(fetcher datasource.MarketFetcher, sports []string) (*RefreshScheduler, *repository.MemoryPropStore) {
	log := logger.NewLogger("error")
	store := repository.NewMemoryPropStore()
	agg := engine.NewHistoricalAggregator(store, 90, 5, time.Minute, log)

	cfg := config.RefreshConfig{
		IntervalMinutes:      30,
		MaxConcurrentFetches: 2,
		Sports:               sports,
		Platforms:            []string{"prizepicks"},
	}

	return NewRefreshScheduler(fetcher, agg, cfg, log), store
}

func TestRefreshIsolatesSportFailures(t *testing.T) {
	failing := map[string]bool{
		"basketball_nba":       false,
		"americanfootball_nfl": true,
		"icehockey_nhl":        false,
		"baseball_mlb":         true,
		"soccer_epl":           false,
	}

	fetcher := newStubFetcher(func(_ context.Context, sportKey string) ([]datasource.RawOutcome, error) {
		if failing[sportKey] {
			return nil, fmt.Errorf("provider returned 500")
		}
		return []datasource.RawOutcome{
			rawProp(sportKey+"-evt-1", "Some Player", "points", "prizepicks", 25.5),
		}, nil
	})

	sports := []string{"basketball_nba", "americanfootball_nfl", "icehockey_nhl", "baseball_mlb", "soccer_epl"}
	sched, _ := newTestScheduler(fetcher, sports)

	sched.RefreshNow(context.Background())

	status := sched.GetStatus()
	assert.False(t, status.IsRefreshing)
	assert.Equal(t, int64(2), status.ErrorCount)
	assert.Equal(t, int64(1), status.RecordCounts["basketball_nba"])
	assert.Equal(t, int64(1), status.RecordCounts["icehockey_nhl"])
	assert.Equal(t, int64(1), status.RecordCounts["soccer_epl"])
	assert.NotContains(t, status.RecordCounts, "americanfootball_nfl")

	// Every sport got its fetch attempt despite the failures.
	for _, sport := range sports {
		assert.Equal(t, 1, fetcher.callCount(sport), sport)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)

	fetcher := newStubFetcher(func(_ context.Context, _ string) ([]datasource.RawOutcome, error) {
		entered <- struct{}{}
		<-release
		return nil, nil
	})

	sched, _ := newTestScheduler(fetcher, []string{"basketball_nba"})

	done := make(chan struct{})
	go func() {
		sched.RefreshNow(context.Background())
		close(done)
	}()

	<-entered

	// A trigger while the first refresh is still blocked is a no-op.
	sched.RefreshNow(context.Background())
	assert.Equal(t, 1, fetcher.totalCalls())

	close(release)
	<-done

	assert.False(t, sched.GetStatus().IsRefreshing)
}

func TestRefreshDeduplicatesAcrossRuns(t *testing.T) {
	fetcher := newStubFetcher(func(_ context.Context, sportKey string) ([]datasource.RawOutcome, error) {
		return []datasource.RawOutcome{
			rawProp(sportKey+"-evt-1", "LeBron James", "points", "prizepicks", 25.5),
		}, nil
	})

	sched, _ := newTestScheduler(fetcher, []string{"basketball_nba"})
	ctx := context.Background()

	sched.RefreshNow(ctx)
	sched.RefreshNow(ctx)

	status := sched.GetStatus()
	assert.Equal(t, int64(1), status.RecordCounts["basketball_nba"])
	assert.Equal(t, 2, fetcher.callCount("basketball_nba"))
}

func TestRefreshGradedResultsBypassDedup(t *testing.T) {
	graded := false
	fetcher := newStubFetcher(func(_ context.Context, sportKey string) ([]datasource.RawOutcome, error) {
		if graded {
			return []datasource.RawOutcome{
				gradedRawProp(sportKey+"-evt-1", "LeBron James", "points", "prizepicks", 25.5, 31),
			}, nil
		}
		return []datasource.RawOutcome{
			rawProp(sportKey+"-evt-1", "LeBron James", "points", "prizepicks", 25.5),
		}, nil
	})

	sched, store := newTestScheduler(fetcher, []string{"basketball_nba"})
	ctx := context.Background()

	sched.RefreshNow(ctx)
	graded = true
	sched.RefreshNow(ctx)

	outcomes, err := store.QueryOutcomes(ctx, &models.OutcomeFilter{
		PlayerName: "LeBron James",
		GradedOnly: true,
	})
	if err != nil {
		t.Fatalf("query outcomes: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 graded outcome, got %d", len(outcomes))
	}
	assert.Equal(t, 31.0, *outcomes[0].ActualResult)
	assert.True(t, *outcomes[0].Hit)
}

func TestRefreshFiltersUnknownPlatforms(t *testing.T) {
	fetcher := newStubFetcher(func(_ context.Context, sportKey string) ([]datasource.RawOutcome, error) {
		return []datasource.RawOutcome{
			rawProp(sportKey+"-evt-1", "LeBron James", "points", "prizepicks", 25.5),
			rawProp(sportKey+"-evt-2", "LeBron James", "points", "unknown_book", 25.5),
		}, nil
	})

	sched, _ := newTestScheduler(fetcher, []string{"basketball_nba"})
	sched.RefreshNow(context.Background())

	status := sched.GetStatus()
	assert.Equal(t, int64(1), status.RecordCounts["basketball_nba"])
}

func TestStartRejectsDoubleStart(t *testing.T) {
	fetcher := newStubFetcher(func(_ context.Context, _ string) ([]datasource.RawOutcome, error) {
		return nil, nil
	})

	sched, _ := newTestScheduler(fetcher, []string{"basketball_nba"})
	ctx := context.Background()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = sched.Stop() }()

	assert.Error(t, sched.Start(ctx))
	assert.True(t, sched.GetStatus().IsRunning)
}

func TestStopWaitsForInFlightRefresh(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)

	fetcher := newStubFetcher(func(_ context.Context, _ string) ([]datasource.RawOutcome, error) {
		entered <- struct{}{}
		<-release
		return nil, nil
	})

	sched, _ := newTestScheduler(fetcher, []string{"basketball_nba"})
	ctx := context.Background()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	go sched.RefreshNow(ctx)
	<-entered

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()

	// Stop must block while the refresh is in flight.
	select {
	case err := <-stopped:
		t.Fatalf("stop returned before refresh finished: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after refresh finished")
	}

	assert.False(t, sched.GetStatus().IsRunning)
}

func TestStopIdempotentWhenNotRunning(t *testing.T) {
	fetcher := newStubFetcher(func(_ context.Context, _ string) ([]datasource.RawOutcome, error) {
		return nil, nil
	})
	sched, _ := newTestScheduler(fetcher, []string{"basketball_nba"})

	assert.NoError(t, sched.Stop())
}
