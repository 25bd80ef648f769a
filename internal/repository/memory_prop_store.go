package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Temian1/oddsly/internal/models"
)

// MemoryPropStore is an in-process PropStore used by tests and storage-free
// runs. Writes serialize on a RWMutex.
type MemoryPropStore struct {
	mu       sync.RWMutex
	outcomes map[uuid.UUID]*models.Outcome
	byNatKey map[string]uuid.UUID
	hitRates map[string]*models.HitRateEstimate
}

// NewMemoryPropStore creates an empty in-memory prop store
func NewMemoryPropStore() *MemoryPropStore {
	return &MemoryPropStore{
		outcomes: make(map[uuid.UUID]*models.Outcome),
		byNatKey: make(map[string]uuid.UUID),
		hitRates: make(map[string]*models.HitRateEstimate),
	}
}

func naturalKey(o *models.Outcome) string {
	return strings.Join([]string{
		o.EventID,
		strings.ToLower(strings.TrimSpace(o.PlayerName)),
		o.PropType,
		o.PlatformKey,
		strconv.FormatFloat(o.Line, 'f', -1, 64),
	}, "|")
}

// SaveOutcome appends or updates an outcome. Graded outcomes are immutable.
func (s *MemoryPropStore) SaveOutcome(ctx context.Context, outcome *models.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := naturalKey(outcome)
	if id, ok := s.byNatKey[key]; ok {
		existing := s.outcomes[id]
		if existing.Graded() {
			if outcome.Hit != nil && *outcome.Hit != *existing.Hit {
				return models.ErrAlreadyGraded
			}
			return nil
		}
		updated := *existing
		updated.ActualResult = outcome.ActualResult
		updated.Hit = outcome.Hit
		updated.Odds = outcome.Odds
		if updated.Graded() {
			now := time.Now().UTC()
			updated.GradedAt = &now
		}
		s.outcomes[id] = &updated
		outcome.ID = id
		return nil
	}

	stored := *outcome
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.Graded() && stored.GradedAt == nil {
		now := time.Now().UTC()
		stored.GradedAt = &now
	}
	s.outcomes[stored.ID] = &stored
	s.byNatKey[key] = stored.ID
	outcome.ID = stored.ID

	return nil
}

// QueryOutcomes retrieves outcomes matching the filter, newest first
func (s *MemoryPropStore) QueryOutcomes(ctx context.Context, filter *models.OutcomeFilter) ([]*models.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Outcome
	for _, o := range s.outcomes {
		if filter == nil || filter.Matches(o) {
			copied := *o
			matched = append(matched, &copied)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].GameDate.After(matched[j].GameDate)
	})

	return matched, nil
}

// UpsertHitRate creates or overwrites a hit-rate estimate
func (s *MemoryPropStore) UpsertHitRate(ctx context.Context, estimate *models.HitRateEstimate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *estimate
	s.hitRates[estimate.Key()] = &copied
	return nil
}

// ReadHitRate retrieves a stored hit-rate estimate by key
func (s *MemoryPropStore) ReadHitRate(ctx context.Context, key string) (*models.HitRateEstimate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	estimate, ok := s.hitRates[key]
	if !ok {
		return nil, false, nil
	}
	copied := *estimate
	return &copied, true, nil
}

// DistinctCombinations lists combinations with at least minGraded graded outcomes
func (s *MemoryPropStore) DistinctCombinations(ctx context.Context, minGraded int) ([]Combination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]*Combination)
	for _, o := range s.outcomes {
		if !o.Graded() {
			continue
		}
		key := o.CombinationKey()
		if c, ok := counts[key]; ok {
			c.GradedCount++
		} else {
			counts[key] = &Combination{
				PlayerName:  o.PlayerName,
				PropType:    o.PropType,
				SportKey:    o.SportKey,
				GradedCount: 1,
			}
		}
	}

	var combos []Combination
	for _, c := range counts {
		if c.GradedCount >= minGraded {
			combos = append(combos, *c)
		}
	}

	sort.Slice(combos, func(i, j int) bool {
		if combos[i].PlayerName != combos[j].PlayerName {
			return combos[i].PlayerName < combos[j].PlayerName
		}
		return combos[i].PropType < combos[j].PropType
	})

	return combos, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryPropStore) Ping(ctx context.Context) error {
	return nil
}
