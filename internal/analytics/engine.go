// Package analytics computes mark-to-market valuations, portfolio risk and
// performance metrics, and the cross-symbol correlation matrix over the
// tracked trades.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"spreadtrack/internal/models"
	"spreadtrack/internal/storage"
)

// TradeValuation is the mark-to-market view of one active trade.
//
// The P&L fields follow the tracker's historical convention:
//
//	pnlPerContract = -netEntryCredit + legsValue
//
// where each leg contributes its price negated for short legs. The sign
// this produces for cheapened credit spreads is preserved as observed;
// see the hand-computed expectations in the tests before changing it.
type TradeValuation struct {
	TradeID  int64           `json:"trade_id"`
	Symbol   string          `json:"symbol"`
	Strategy models.Strategy `json:"strategy"`

	LegsValue      float64 `json:"legs_value"`
	PnLPerContract float64 `json:"pnl_per_contract"`
	TotalPnL       float64 `json:"total_pnl"`
	PnLPercent     float64 `json:"pnl_percent"`
	// CurrentValue is the cost to close the whole position.
	CurrentValue float64 `json:"current_value"`
	// Approximate is set when any leg had no resolvable price and was
	// valued at zero.
	Approximate bool `json:"approximate"`

	// Trade-level greek aggregates, signed by leg direction and scaled to
	// the full position.
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	// Raw greek sums across legs, unscaled.
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`

	// AvgLegIV is the mean mid implied volatility across legs reporting
	// one, in percent. Nil when no leg carried IV.
	AvgLegIV *float64 `json:"avg_leg_iv,omitempty"`
}

// Engine values trades against their latest stored snapshots.
type Engine struct {
	store       storage.Interface
	logger      logrus.FieldLogger
	accountSize float64
}

// NewEngine creates an analytics engine. accountSize scales position-size
// percentages; zero disables that metric.
func NewEngine(store storage.Interface, logger logrus.FieldLogger, accountSize float64) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{store: store, logger: logger, accountSize: accountSize}
}

// ValueTrades values every trade, excluding and logging the ones that
// cannot be valued rather than failing the batch.
func (e *Engine) ValueTrades(ctx context.Context, trades []models.ActiveTrade) []TradeValuation {
	vals := make([]TradeValuation, 0, len(trades))
	for i := range trades {
		v, err := e.ValueTrade(ctx, &trades[i])
		if err != nil {
			e.logger.WithError(err).WithField("trade_id", trades[i].ID).Error("excluding trade from analytics")
			continue
		}
		vals = append(vals, *v)
	}
	return vals
}

// ValueTrade marks one trade to market using each leg's latest snapshot.
// A leg with no resolvable price is valued at zero and flags the trade
// approximate.
func (e *Engine) ValueTrade(ctx context.Context, trade *models.ActiveTrade) (*TradeValuation, error) {
	legs := trade.ResolveLegs()
	if len(legs) == 0 {
		return nil, fmt.Errorf("trade %d has no resolvable legs", trade.ID)
	}

	v := &TradeValuation{
		TradeID:  trade.ID,
		Symbol:   trade.Symbol,
		Strategy: trade.Strategy,
	}
	contracts := float64(trade.Contracts)

	var ivSum float64
	var ivCount int
	for _, leg := range legs {
		snap, err := e.store.GetLatestSnapshot(ctx, leg.OptionSymbol)
		if err != nil && !errors.Is(err, storage.ErrSnapshotNotFound) {
			return nil, fmt.Errorf("snapshot for %s: %w", leg.OptionSymbol, err)
		}

		price, ok := snap.CurrentPrice()
		if !ok {
			v.Approximate = true
		}
		sign := 1.0
		if leg.IsShort {
			sign = -1.0
		}
		v.LegsValue += price * sign

		if snap != nil {
			if snap.Delta != nil {
				v.Delta += *snap.Delta * sign * contracts * models.SharesPerContract
			}
			if snap.Theta != nil {
				v.Theta += *snap.Theta * sign * contracts * models.SharesPerContract
			}
			if snap.Gamma != nil {
				v.Gamma += *snap.Gamma
			}
			if snap.Vega != nil {
				v.Vega += *snap.Vega
			}
			if snap.MidIV != nil {
				ivSum += *snap.MidIV * 100
				ivCount++
			}
		}
	}

	v.PnLPerContract = -trade.NetCredit + v.LegsValue
	v.TotalPnL = v.PnLPerContract * contracts * models.SharesPerContract
	denom := absFloat(trade.NetCredit) * contracts * models.SharesPerContract
	if denom != 0 {
		v.PnLPercent = v.TotalPnL / denom * 100
	}
	v.CurrentValue = -v.LegsValue * contracts * models.SharesPerContract

	if ivCount > 0 {
		avg := ivSum / float64(ivCount)
		v.AvgLegIV = &avg
	}
	return v, nil
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// holdDays is the whole-day span between entry and close.
func holdDays(entry, close time.Time) float64 {
	return close.Sub(entry).Hours() / 24
}
