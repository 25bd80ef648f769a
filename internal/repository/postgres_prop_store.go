package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Temian1/oddsly/internal/database"
	"github.com/Temian1/oddsly/internal/models"
)

// PostgresPropStore implements PropStore for PostgreSQL
type PostgresPropStore struct {
	db *database.DB
}

// NewPostgresPropStore creates a new PostgreSQL-backed prop store
func NewPostgresPropStore(db *database.DB) PropStore {
	return &PostgresPropStore{db: db}
}

// SaveOutcome inserts or updates an outcome. A previously graded outcome is
// immutable: attempts to change its result fail with ErrAlreadyGraded.
func (s *PostgresPropStore) SaveOutcome(ctx context.Context, outcome *models.Outcome) error {
	existing, err := s.findByIdentity(ctx, outcome)
	if err != nil && err != models.ErrNotFound {
		return err
	}

	if existing != nil {
		if existing.Graded() {
			if outcome.Hit != nil && *outcome.Hit != *existing.Hit {
				return models.ErrAlreadyGraded
			}
			return nil
		}

		query := `
			UPDATE outcomes
			SET actual_result = $2, hit = $3, odds = $4, graded_at = $5
			WHERE id = $1
		`
		var gradedAt *time.Time
		if outcome.Graded() {
			now := time.Now().UTC()
			gradedAt = &now
		}
		_, err := s.db.GetPool().Exec(ctx, query,
			existing.ID, outcome.ActualResult, outcome.Hit, outcome.Odds, gradedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update outcome: %w", err)
		}
		outcome.ID = existing.ID
		return nil
	}

	query := `
		INSERT INTO outcomes (id, player_name, prop_type, line, actual_result, hit,
		                      game_date, sport_key, platform_key, event_id, odds, created_at, graded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if outcome.ID == uuid.Nil {
		outcome.ID = uuid.New()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	if outcome.Graded() && outcome.GradedAt == nil {
		now := time.Now().UTC()
		outcome.GradedAt = &now
	}

	_, err = s.db.GetPool().Exec(ctx, query,
		outcome.ID, outcome.PlayerName, outcome.PropType, outcome.Line, outcome.ActualResult,
		outcome.Hit, outcome.GameDate, outcome.SportKey, outcome.PlatformKey, outcome.EventID,
		outcome.Odds, outcome.CreatedAt, outcome.GradedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}

	return nil
}

// findByIdentity locates an outcome by its natural key.
func (s *PostgresPropStore) findByIdentity(ctx context.Context, outcome *models.Outcome) (*models.Outcome, error) {
	query := `
		SELECT id, player_name, prop_type, line, actual_result, hit, game_date,
		       sport_key, platform_key, event_id, odds, created_at, graded_at
		FROM outcomes
		WHERE event_id = $1 AND lower(player_name) = lower($2) AND prop_type = $3
		  AND line = $4 AND platform_key = $5
	`

	row := s.db.GetPool().QueryRow(ctx, query,
		outcome.EventID, outcome.PlayerName, outcome.PropType, outcome.Line, outcome.PlatformKey,
	)

	found := &models.Outcome{}
	err := scanOutcome(row, found)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find outcome: %w", err)
	}

	return found, nil
}

// QueryOutcomes retrieves outcomes matching the filter
func (s *PostgresPropStore) QueryOutcomes(ctx context.Context, filter *models.OutcomeFilter) ([]*models.Outcome, error) {
	var (
		clauses []string
		args    []interface{}
	)

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.PlayerName != "" {
		add("lower(player_name) = lower($%d)", strings.TrimSpace(filter.PlayerName))
	}
	if filter.PropType != "" {
		add("prop_type = $%d", filter.PropType)
	}
	if filter.SportKey != "" {
		add("sport_key = $%d", filter.SportKey)
	}
	if filter.LineMin != nil {
		add("line >= $%d", *filter.LineMin)
	}
	if filter.LineMax != nil {
		add("line <= $%d", *filter.LineMax)
	}
	if !filter.Since.IsZero() {
		add("game_date >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("game_date <= $%d", filter.Until)
	}
	if filter.GradedOnly {
		clauses = append(clauses, "hit IS NOT NULL AND actual_result IS NOT NULL")
	}

	query := `
		SELECT id, player_name, prop_type, line, actual_result, hit, game_date,
		       sport_key, platform_key, event_id, odds, created_at, graded_at
		FROM outcomes
	`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY game_date DESC"

	rows, err := s.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.Outcome
	for rows.Next() {
		outcome := &models.Outcome{}
		if err := scanOutcome(rows, outcome); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rows.Err()
}

// UpsertHitRate creates or overwrites a hit-rate estimate
func (s *PostgresPropStore) UpsertHitRate(ctx context.Context, estimate *models.HitRateEstimate) error {
	query := `
		INSERT INTO hit_rates (key, player_name, prop_type, line_range_min, line_range_max,
		                       sport_key, hit_rate, sample_count, confidence_level,
		                       standard_error, ci_lower, ci_upper, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (key) DO UPDATE SET
			line_range_min = EXCLUDED.line_range_min,
			line_range_max = EXCLUDED.line_range_max,
			hit_rate = EXCLUDED.hit_rate,
			sample_count = EXCLUDED.sample_count,
			confidence_level = EXCLUDED.confidence_level,
			standard_error = EXCLUDED.standard_error,
			ci_lower = EXCLUDED.ci_lower,
			ci_upper = EXCLUDED.ci_upper,
			last_updated = EXCLUDED.last_updated
	`

	_, err := s.db.GetPool().Exec(ctx, query,
		estimate.Key(), estimate.PlayerName, estimate.PropType, estimate.LineRangeMin,
		estimate.LineRangeMax, estimate.SportKey, estimate.HitRate, estimate.SampleCount,
		estimate.ConfidenceLevel, estimate.StandardError, estimate.CILower, estimate.CIUpper,
		estimate.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert hit rate: %w", err)
	}

	return nil
}

// ReadHitRate retrieves a stored hit-rate estimate by key
func (s *PostgresPropStore) ReadHitRate(ctx context.Context, key string) (*models.HitRateEstimate, bool, error) {
	query := `
		SELECT player_name, prop_type, line_range_min, line_range_max, sport_key,
		       hit_rate, sample_count, confidence_level, standard_error,
		       ci_lower, ci_upper, last_updated
		FROM hit_rates WHERE key = $1
	`

	estimate := &models.HitRateEstimate{}
	err := s.db.GetPool().QueryRow(ctx, query, key).Scan(
		&estimate.PlayerName, &estimate.PropType, &estimate.LineRangeMin, &estimate.LineRangeMax,
		&estimate.SportKey, &estimate.HitRate, &estimate.SampleCount, &estimate.ConfidenceLevel,
		&estimate.StandardError, &estimate.CILower, &estimate.CIUpper, &estimate.LastUpdated,
	)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read hit rate: %w", err)
	}

	return estimate, true, nil
}

// DistinctCombinations lists (player, propType, sport) combinations with at
// least minGraded graded outcomes
func (s *PostgresPropStore) DistinctCombinations(ctx context.Context, minGraded int) ([]Combination, error) {
	query := `
		SELECT min(player_name), prop_type, sport_key, count(*)
		FROM outcomes
		WHERE hit IS NOT NULL AND actual_result IS NOT NULL
		GROUP BY lower(player_name), prop_type, sport_key
		HAVING count(*) >= $1
	`

	rows, err := s.db.GetPool().Query(ctx, query, minGraded)
	if err != nil {
		return nil, fmt.Errorf("failed to query combinations: %w", err)
	}
	defer rows.Close()

	var combos []Combination
	for rows.Next() {
		var c Combination
		if err := rows.Scan(&c.PlayerName, &c.PropType, &c.SportKey, &c.GradedCount); err != nil {
			return nil, fmt.Errorf("failed to scan combination: %w", err)
		}
		combos = append(combos, c)
	}

	return combos, rows.Err()
}

// Ping verifies store connectivity
func (s *PostgresPropStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// scanOutcome scans an outcome row in column order.
func scanOutcome(row pgx.Row, o *models.Outcome) error {
	return row.Scan(
		&o.ID, &o.PlayerName, &o.PropType, &o.Line, &o.ActualResult, &o.Hit,
		&o.GameDate, &o.SportKey, &o.PlatformKey, &o.EventID, &o.Odds, &o.CreatedAt, &o.GradedAt,
	)
}
