// Package ingest turns scan provider results into stored active trades.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"spreadtrack/internal/models"
	"spreadtrack/internal/provider"
	"spreadtrack/internal/storage"
)

// Pipeline validates, transforms, and persists scan results. One active
// trade is allowed per symbol and strategy pair: a BULL_PUT and an
// IRON_CONDOR may coexist on the same underlying, two BULL_PUTs may not.
type Pipeline struct {
	store  storage.Interface
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(store storage.Interface, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{store: store, logger: logger, now: time.Now}
}

// ProcessScanResults stores each valid, non-duplicate item and returns the
// new trade IDs. Item-level failures are logged and skipped; they never
// abort the batch.
func (p *Pipeline) ProcessScanResults(ctx context.Context, result *provider.ScanResultSet, scanLabel string) []int64 {
	log := p.logger.WithField("scan", scanLabel)
	if result == nil || len(result.Items) == 0 {
		log.Warn("scan returned no items")
		return nil
	}
	log.WithField("items", len(result.Items)).Info("processing scan results")

	active, err := p.store.GetActiveTrades(ctx, "")
	if err != nil {
		log.WithError(err).Error("cannot load active trades for duplicate check, skipping scan")
		return nil
	}
	existing := make(map[string]bool, len(active))
	for _, t := range active {
		existing[dedupKey(t.Symbol, t.Strategy)] = true
	}

	var stored []int64
	for _, item := range result.Items {
		trade, err := p.transform(&item)
		if err != nil {
			log.WithError(err).WithField("underlying", item.Underlying).Error("skipping scan item")
			continue
		}
		key := dedupKey(trade.Symbol, trade.Strategy)
		if existing[key] {
			log.WithFields(logrus.Fields{
				"symbol":   trade.Symbol,
				"strategy": string(trade.Strategy),
			}).Info("skipping duplicate trade")
			continue
		}
		id, err := p.store.SaveNewTrade(ctx, trade)
		if err != nil {
			log.WithError(err).WithField("symbol", trade.Symbol).Error("failed to store trade")
			continue
		}
		existing[key] = true
		stored = append(stored, id)
		log.WithFields(logrus.Fields{
			"trade_id": id,
			"symbol":   trade.Symbol,
			"strategy": string(trade.Strategy),
		}).Info("stored new trade")
	}
	log.WithField("stored", len(stored)).Info("scan processed")
	return stored
}

func dedupKey(symbol string, strategy models.Strategy) string {
	return symbol + "|" + string(strategy)
}

// inferStrategy reads the strategy off the strike list: four strikes is an
// iron condor; two strikes in ascending order is a bull put, descending a
// bear call.
func inferStrategy(strikes []float64) (models.Strategy, error) {
	switch len(strikes) {
	case 4:
		return models.StrategyIronCondor, nil
	case 2:
		if strikes[0] < strikes[1] {
			return models.StrategyBullPut, nil
		}
		return models.StrategyBearCall, nil
	default:
		return "", fmt.Errorf("unexpected number of strikes: %d", len(strikes))
	}
}

// transform maps one scan item onto an active trade. The scan's max profit
// is the net credit; contract count defaults to 1.
func (p *Pipeline) transform(item *provider.ScanItem) (*models.ActiveTrade, error) {
	if item.Underlying == "" {
		return nil, fmt.Errorf("missing underlying symbol")
	}
	if item.StockLast == 0 {
		return nil, fmt.Errorf("missing current price for %s", item.Underlying)
	}
	if len(item.ExpirationDates) == 0 {
		return nil, fmt.Errorf("missing expiration date for %s", item.Underlying)
	}
	expiration, err := time.Parse(models.TrackingDateLayout, item.ExpirationDates[0])
	if err != nil {
		return nil, fmt.Errorf("bad expiration date for %s: %w", item.Underlying, err)
	}
	strategy, err := inferStrategy(item.Strikes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", item.Underlying, err)
	}

	trade := &models.ActiveTrade{
		Symbol:          item.Underlying,
		UnderlyingPrice: item.StockLast,
		Strategy:        strategy,
		EntryDate:       p.now().UTC(),
		ExpirationDate:  expiration,
		NetCredit:       item.MaxProfit,
		Contracts:       1,
		Status:          models.StatusOpen,
	}
	strikes := item.Strikes
	switch strategy {
	case models.StrategyIronCondor:
		trade.ShortPutStrike = &strikes[0]
		trade.LongPutStrike = &strikes[1]
		trade.ShortCallStrike = &strikes[2]
		trade.LongCallStrike = &strikes[3]
		trade.ShortPutSymbol = models.BuildOptionSymbol(item.Underlying, expiration, strikes[0], true)
		trade.LongPutSymbol = models.BuildOptionSymbol(item.Underlying, expiration, strikes[1], true)
		trade.ShortCallSymbol = models.BuildOptionSymbol(item.Underlying, expiration, strikes[2], false)
		trade.LongCallSymbol = models.BuildOptionSymbol(item.Underlying, expiration, strikes[3], false)
	case models.StrategyBullPut:
		trade.ShortPutStrike = &strikes[0]
		trade.LongPutStrike = &strikes[1]
		trade.ShortPutSymbol = models.BuildOptionSymbol(item.Underlying, expiration, strikes[0], true)
		trade.LongPutSymbol = models.BuildOptionSymbol(item.Underlying, expiration, strikes[1], true)
	case models.StrategyBearCall:
		trade.ShortCallStrike = &strikes[0]
		trade.LongCallStrike = &strikes[1]
		trade.ShortCallSymbol = models.BuildOptionSymbol(item.Underlying, expiration, strikes[0], false)
		trade.LongCallSymbol = models.BuildOptionSymbol(item.Underlying, expiration, strikes[1], false)
	}
	if err := trade.Validate(); err != nil {
		return nil, err
	}
	return trade, nil
}
