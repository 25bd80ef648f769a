package datasource

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketFetcher is the collaborator contract for pulling current player-prop
// markets from a third-party odds provider. Implementations must return
// within a bounded timeout; the engine treats a timeout as an ordinary fetch
// failure.
type MarketFetcher interface {
	// FetchMarketProps retrieves current prop outcomes for a sport. An empty
	// matchID fetches all upcoming matches.
	FetchMarketProps(ctx context.Context, sportKey, matchID string) ([]RawOutcome, error)

	// Name returns the name of the data source
	Name() string

	// IsEnabled returns whether this data source is currently enabled
	IsEnabled() bool
}

// RawOutcome represents one prop market entry as returned by a provider,
// before normalization into a models.Outcome.
type RawOutcome struct {
	EventID      string           `json:"event_id"`
	PlayerName   string           `json:"player_name"`
	PropType     string           `json:"prop_type"`
	Line         decimal.Decimal  `json:"line"`
	Odds         decimal.Decimal  `json:"odds"`
	ActualResult *decimal.Decimal `json:"actual_result,omitempty"`
	GameDate     time.Time        `json:"game_date"`
	SportKey     string           `json:"sport_key"`
	PlatformKey  string           `json:"platform_key"`
	FetchedAt    time.Time        `json:"fetched_at"`
}
