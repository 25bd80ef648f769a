package engine

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/Temian1/oddsly/internal/models"
)

// OddsKind distinguishes the three odds formats the engine accepts.
type OddsKind string

const (
	OddsAmerican OddsKind = "american"
	OddsDecimal  OddsKind = "decimal"
	OddsDFS      OddsKind = "dfs"
)

// DefaultEVThreshold is the minimum hit rate for a positive-EV call. A fixed
// business constant; callers override it through EngineConfig.
const DefaultEVThreshold = 0.565

// defaultDFSPayout is used when a platform/leg-count pair is missing from the
// payout table. Keeps the implied probability finite; logged, never fatal.
const defaultDFSPayout = 3.0

// dfsPayouts maps platform -> leg count -> total payout multiplier for
// fixed-payout DFS contests.
var dfsPayouts = map[string]map[int]float64{
	"prizepicks": {
		2: 3.0,
		3: 5.0,
		4: 10.0,
		5: 20.0,
		6: 37.5,
	},
	"underdog": {
		2: 3.0,
		3: 6.0,
		4: 10.0,
		5: 20.0,
	},
	"parlayplay": {
		2: 2.8,
		3: 5.3,
		4: 10.0,
	},
}

// EVResult is the expected-value verdict for one prop.
type EVResult struct {
	EVPercentage float64
	IsPositiveEV bool
}

// EVCalculator converts market odds into implied probabilities and computes
// expected value against a hit-rate estimate. Stateless apart from its logger.
type EVCalculator struct {
	evThreshold float64
	logger      *logrus.Logger
}

// NewEVCalculator creates an EV calculator with the given positive-EV
// threshold. A non-positive threshold falls back to the business default.
func NewEVCalculator(evThreshold float64, logger *logrus.Logger) *EVCalculator {
	if evThreshold <= 0 || evThreshold >= 1 {
		evThreshold = DefaultEVThreshold
	}
	return &EVCalculator{evThreshold: evThreshold, logger: logger}
}

// ImpliedProbability converts odds in the given format to a vig-free
// probability. legCount is only consulted for DFS odds; platform selects the
// payout table entry.
func (c *EVCalculator) ImpliedProbability(odds float64, kind OddsKind, platform string, legCount int) (float64, error) {
	switch kind {
	case OddsAmerican:
		return americanImpliedProbability(odds)
	case OddsDecimal:
		if odds <= 1 {
			return 0, fmt.Errorf("%w: decimal odds %.2f must exceed 1", models.ErrInvalidInput, odds)
		}
		return 1 / odds, nil
	case OddsDFS:
		return c.dfsImpliedProbability(platform, legCount), nil
	default:
		return 0, fmt.Errorf("%w: unknown odds kind %q", models.ErrInvalidInput, kind)
	}
}

func americanImpliedProbability(odds float64) (float64, error) {
	if odds == 0 {
		return 0, fmt.Errorf("%w: american odds cannot be zero", models.ErrInvalidInput)
	}
	if odds > 0 {
		return 100 / (odds + 100), nil
	}
	abs := math.Abs(odds)
	return abs / (abs + 100), nil
}

// dfsImpliedProbability derives the break-even per-leg probability from the
// platform payout multiplier: 1 / payout^(1/legs).
func (c *EVCalculator) dfsImpliedProbability(platform string, legCount int) float64 {
	if legCount < 1 {
		legCount = 1
	}

	payout := defaultDFSPayout
	if table, ok := dfsPayouts[platform]; ok {
		if p, ok := table[legCount]; ok {
			payout = p
		} else {
			c.logger.WithFields(logrus.Fields{
				"platform":  platform,
				"leg_count": legCount,
			}).Warn("No payout entry for leg count, using default multiplier")
		}
	} else {
		c.logger.WithField("platform", platform).Warn("Unknown DFS platform, using default multiplier")
	}

	return 1 / math.Pow(payout, 1/float64(legCount))
}

// Evaluate computes the EV of betting a prop with the given hit rate against
// the market's implied probability.
func (c *EVCalculator) Evaluate(hitRate, impliedProbability float64) EVResult {
	edge := hitRate - impliedProbability
	return EVResult{
		EVPercentage: edge * 100,
		IsPositiveEV: hitRate >= c.evThreshold && edge > 0,
	}
}

// DecimalFromAmerican converts American odds to decimal odds.
func DecimalFromAmerican(odds float64) (float64, error) {
	if odds == 0 {
		return 0, fmt.Errorf("%w: american odds cannot be zero", models.ErrInvalidInput)
	}
	if odds > 0 {
		return 1 + odds/100, nil
	}
	return 1 + 100/math.Abs(odds), nil
}

// DecimalFromDFS converts a DFS payout multiplier into per-leg decimal odds
// consistent with the implied probability table.
func (c *EVCalculator) DecimalFromDFS(platform string, legCount int) float64 {
	implied := c.dfsImpliedProbability(platform, legCount)
	return 1 / implied
}
