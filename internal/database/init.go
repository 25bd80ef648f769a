package database

import (
	"context"
	"fmt"

	"github.com/Temian1/oddsly/internal/config"
)

// schema holds the DDL for the engine's two tables. Idempotent: safe to run
// on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id              UUID PRIMARY KEY,
	player_name     TEXT NOT NULL,
	prop_type       TEXT NOT NULL,
	line            DOUBLE PRECISION NOT NULL,
	actual_result   DOUBLE PRECISION,
	hit             BOOLEAN,
	game_date       TIMESTAMPTZ NOT NULL,
	sport_key       TEXT NOT NULL,
	platform_key    TEXT NOT NULL,
	event_id        TEXT NOT NULL,
	odds            DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	graded_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outcomes_combination
	ON outcomes (lower(player_name), prop_type, sport_key, game_date);

CREATE UNIQUE INDEX IF NOT EXISTS idx_outcomes_event
	ON outcomes (event_id, lower(player_name), prop_type, line, platform_key);

CREATE TABLE IF NOT EXISTS hit_rates (
	key              TEXT PRIMARY KEY,
	player_name      TEXT NOT NULL,
	prop_type        TEXT NOT NULL,
	line_range_min   DOUBLE PRECISION NOT NULL,
	line_range_max   DOUBLE PRECISION NOT NULL,
	sport_key        TEXT NOT NULL,
	hit_rate         DOUBLE PRECISION NOT NULL,
	sample_count     INTEGER NOT NULL,
	confidence_level TEXT NOT NULL,
	standard_error   DOUBLE PRECISION NOT NULL,
	ci_lower         DOUBLE PRECISION NOT NULL,
	ci_upper         DOUBLE PRECISION NOT NULL,
	last_updated     TIMESTAMPTZ NOT NULL
);
`

// Initialize creates a database connection pool and applies the schema
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if _, err := db.pool.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
