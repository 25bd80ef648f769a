package repository

import (
	"context"

	"github.com/Temian1/oddsly/internal/models"
)

// Combination identifies a distinct (player, propType, sport) grouping of
// graded outcomes.
type Combination struct {
	PlayerName  string
	PropType    string
	SportKey    string
	GradedCount int
}

// PropStore defines the interface for outcome and hit-rate persistence.
// The engine must not know whether the store is a database or memory.
type PropStore interface {
	SaveOutcome(ctx context.Context, outcome *models.Outcome) error
	QueryOutcomes(ctx context.Context, filter *models.OutcomeFilter) ([]*models.Outcome, error)
	UpsertHitRate(ctx context.Context, estimate *models.HitRateEstimate) error
	ReadHitRate(ctx context.Context, key string) (*models.HitRateEstimate, bool, error)
	DistinctCombinations(ctx context.Context, minGraded int) ([]Combination, error)
	Ping(ctx context.Context) error
}
