package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome represents a single historical player-prop result.
// Created when market data is fetched; ActualResult/Hit are populated later
// by grading. A graded outcome is immutable.
type Outcome struct {
	ID           uuid.UUID  `json:"id"`
	PlayerName   string     `json:"player_name"`
	PropType     string     `json:"prop_type"`
	Line         float64    `json:"line"`
	ActualResult *float64   `json:"actual_result,omitempty"`
	Hit          *bool      `json:"hit,omitempty"`
	GameDate     time.Time  `json:"game_date"`
	SportKey     string     `json:"sport_key"`
	PlatformKey  string     `json:"platform_key"`
	EventID      string     `json:"event_id"`
	Odds         float64    `json:"odds"`
	CreatedAt    time.Time  `json:"created_at"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
}

// Graded reports whether the outcome has been settled against an actual result.
func (o *Outcome) Graded() bool {
	return o.Hit != nil && o.ActualResult != nil
}

// CombinationKey identifies the (player, propType, sport) combination an
// outcome contributes to. Player names compare case-insensitively.
func (o *Outcome) CombinationKey() string {
	return CombinationKey(o.PlayerName, o.PropType, o.SportKey)
}

// CombinationKey builds the canonical key for a player/prop/sport combination.
func CombinationKey(playerName, propType, sportKey string) string {
	return strings.ToLower(strings.TrimSpace(playerName)) + "|" + propType + "|" + sportKey
}

// OutcomeFilter narrows QueryOutcomes results. Zero-valued fields are ignored.
type OutcomeFilter struct {
	PlayerName string
	PropType   string
	SportKey   string
	LineMin    *float64
	LineMax    *float64
	Since      time.Time
	Until      time.Time
	GradedOnly bool
}

// Matches reports whether an outcome satisfies the filter.
func (f *OutcomeFilter) Matches(o *Outcome) bool {
	if f.PlayerName != "" && !strings.EqualFold(strings.TrimSpace(f.PlayerName), strings.TrimSpace(o.PlayerName)) {
		return false
	}
	if f.PropType != "" && f.PropType != o.PropType {
		return false
	}
	if f.SportKey != "" && f.SportKey != o.SportKey {
		return false
	}
	if f.LineMin != nil && o.Line < *f.LineMin {
		return false
	}
	if f.LineMax != nil && o.Line > *f.LineMax {
		return false
	}
	if !f.Since.IsZero() && o.GameDate.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && o.GameDate.After(f.Until) {
		return false
	}
	if f.GradedOnly && !o.Graded() {
		return false
	}
	return true
}
