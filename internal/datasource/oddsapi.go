package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OddsAPIClient implements MarketFetcher for a The-Odds-API-style provider.
type OddsAPIClient struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	enabled    bool
	logger     *logrus.Logger
}

// oddsAPIEvent represents one event from the provider
type oddsAPIEvent struct {
	ID           string             `json:"id"`
	SportKey     string             `json:"sport_key"`
	CommenceTime time.Time          `json:"commence_time"`
	Bookmakers   []oddsAPIBookmaker `json:"bookmakers"`
}

// oddsAPIBookmaker represents a book or DFS platform carrying markets
type oddsAPIBookmaker struct {
	Key     string          `json:"key"`
	Markets []oddsAPIMarket `json:"markets"`
}

// oddsAPIMarket represents one prop market type
type oddsAPIMarket struct {
	Key      string           `json:"key"`
	Outcomes []oddsAPIOutcome `json:"outcomes"`
}

// oddsAPIOutcome represents one selection within a market
type oddsAPIOutcome struct {
	Description string  `json:"description"` // player name for prop markets
	Name        string  `json:"name"`        // Over/Under side
	Point       *string `json:"point"`
	Price       *string `json:"price"`
}

// NewOddsAPIClient creates a new odds provider client
func NewOddsAPIClient(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, enabled bool, logger *logrus.Logger) *OddsAPIClient {
	return &OddsAPIClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		enabled:    enabled,
		logger:     logger,
	}
}

// Name returns the name of the data source
func (c *OddsAPIClient) Name() string {
	return "odds_api"
}

// IsEnabled returns whether this data source is currently enabled
func (c *OddsAPIClient) IsEnabled() bool {
	return c.enabled
}

// FetchMarketProps retrieves current player-prop outcomes for a sport. An
// empty matchID fetches all upcoming events for the sport.
func (c *OddsAPIClient) FetchMarketProps(ctx context.Context, sportKey, matchID string) ([]RawOutcome, error) {
	if !c.enabled {
		return nil, fmt.Errorf("data source %s is disabled", c.Name())
	}

	endpoint := fmt.Sprintf("%s/sports/%s/odds", c.baseURL, url.PathEscape(sportKey))
	if matchID != "" {
		endpoint = fmt.Sprintf("%s/sports/%s/events/%s/odds", c.baseURL, url.PathEscape(sportKey), url.PathEscape(matchID))
	}
	endpoint += "?markets=player_props&oddsFormat=american&apiKey=" + url.QueryEscape(c.apiKey)

	resp, err := c.httpClient.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch props for %s: %w", sportKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("odds API rejected credentials for %s", sportKey)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("odds API returned %d for %s: %s", resp.StatusCode, sportKey, string(body))
	}

	var events []oddsAPIEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode props response: %w", err)
	}

	return c.normalize(events), nil
}

// normalize flattens provider events into raw outcomes, dropping entries with
// unparseable numbers rather than failing the batch.
func (c *OddsAPIClient) normalize(events []oddsAPIEvent) []RawOutcome {
	now := time.Now().UTC()
	var outcomes []RawOutcome

	for _, event := range events {
		for _, book := range event.Bookmakers {
			for _, market := range book.Markets {
				for _, entry := range market.Outcomes {
					if entry.Description == "" || entry.Point == nil || entry.Price == nil {
						continue
					}

					line, err := decimal.NewFromString(*entry.Point)
					if err != nil {
						c.logger.WithFields(logrus.Fields{
							"event":  event.ID,
							"player": entry.Description,
							"point":  *entry.Point,
						}).Warn("Dropping outcome with unparseable line")
						continue
					}

					odds, err := decimal.NewFromString(*entry.Price)
					if err != nil {
						c.logger.WithFields(logrus.Fields{
							"event":  event.ID,
							"player": entry.Description,
							"price":  *entry.Price,
						}).Warn("Dropping outcome with unparseable odds")
						continue
					}

					outcomes = append(outcomes, RawOutcome{
						EventID:     event.ID,
						PlayerName:  entry.Description,
						PropType:    market.Key,
						Line:        line,
						Odds:        odds,
						GameDate:    event.CommenceTime,
						SportKey:    event.SportKey,
						PlatformKey: book.Key,
						FetchedAt:   now,
					})
				}
			}
		}
	}

	return outcomes
}
