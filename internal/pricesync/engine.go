// Package pricesync implements the daily quote collection cycle: for every
// leg of every active trade it fetches a quote and upserts the day's price
// snapshot, fanning out across trades and legs with bounded concurrency.
package pricesync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"spreadtrack/internal/models"
	"spreadtrack/internal/provider"
	"spreadtrack/internal/storage"
)

// DefaultTradeWorkers bounds how many trades are synchronized at once.
const DefaultTradeWorkers = 5

// SyncStats aggregates one synchronization cycle. All counters are totals
// across every trade and leg processed in the cycle.
type SyncStats struct {
	TradesProcessed    int
	LegsChecked        int
	SnapshotsCreated   int
	SnapshotsUpdated   int
	SnapshotsCompleted int
	Errors             int

	TotalFetchLatency time.Duration
	MaxFetchLatency   time.Duration
}

// legResult is the outcome of synchronizing a single leg. Workers only
// produce these values; all counting happens in one place after the
// fan-out completes.
type legResult struct {
	fetched   bool
	latency   time.Duration
	created   bool
	updated   bool
	completed bool
	failed    bool
}

// tradeResult carries one trade's leg outcomes back to the aggregator.
type tradeResult struct {
	processed bool
	legs      []legResult
}

// Engine drives the price synchronization cycle.
type Engine struct {
	store        storage.Interface
	quotes       provider.QuoteProvider
	logger       logrus.FieldLogger
	tradeWorkers int
	now          func() time.Time
}

// Config tunes the engine. Zero values take defaults.
type Config struct {
	// TradeWorkers is the number of trades processed concurrently; the
	// legs of each trade fan out on their own inner group.
	TradeWorkers int
}

// NewEngine creates a price sync engine.
func NewEngine(store storage.Interface, quotes provider.QuoteProvider, logger logrus.FieldLogger, cfg Config) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	workers := cfg.TradeWorkers
	if workers <= 0 {
		workers = DefaultTradeWorkers
	}
	return &Engine{
		store:        store,
		quotes:       quotes,
		logger:       logger,
		tradeWorkers: workers,
		now:          time.Now,
	}
}

// Synchronize runs one collection cycle over the given trades. Per-trade
// and per-leg failures are counted in the returned stats rather than
// aborting the cycle; the error return is reserved for context
// cancellation.
func (e *Engine) Synchronize(ctx context.Context, trades []models.ActiveTrade) (*SyncStats, error) {
	cycleID := uuid.New().String()
	trackingDate := models.TrackingDate(e.now())
	log := e.logger.WithFields(logrus.Fields{
		"cycle_id":      cycleID,
		"tracking_date": trackingDate,
	})
	log.WithField("trades", len(trades)).Info("starting price sync cycle")

	results := make([]tradeResult, len(trades))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.tradeWorkers)
	for i := range trades {
		i := i
		trade := trades[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = tradeResult{
				processed: true,
				legs:      e.syncTrade(gctx, log, &trade, trackingDate),
			}
			return nil
		})
	}
	err := g.Wait()

	stats := collect(results)
	if err != nil {
		return stats, err
	}

	log.WithFields(logrus.Fields{
		"trades_processed":    stats.TradesProcessed,
		"legs_checked":        stats.LegsChecked,
		"snapshots_created":   stats.SnapshotsCreated,
		"snapshots_updated":   stats.SnapshotsUpdated,
		"snapshots_completed": stats.SnapshotsCompleted,
		"errors":              stats.Errors,
	}).Info("price sync cycle finished")
	return stats, nil
}

// collect is the single aggregation point for a cycle's worker results.
func collect(results []tradeResult) *SyncStats {
	stats := &SyncStats{}
	for _, tr := range results {
		if !tr.processed {
			continue
		}
		stats.TradesProcessed++
		for _, lr := range tr.legs {
			stats.LegsChecked++
			if lr.fetched {
				stats.TotalFetchLatency += lr.latency
				if lr.latency > stats.MaxFetchLatency {
					stats.MaxFetchLatency = lr.latency
				}
			}
			if lr.failed {
				stats.Errors++
			}
			if lr.created {
				stats.SnapshotsCreated++
			}
			if lr.updated {
				stats.SnapshotsUpdated++
			}
			if lr.completed {
				stats.SnapshotsCompleted++
			}
		}
	}
	return stats
}

// syncTrade fans the trade's legs out on an inner group. Each leg writes
// its own result slot; nothing here aborts sibling legs.
func (e *Engine) syncTrade(ctx context.Context, log logrus.FieldLogger, trade *models.ActiveTrade, trackingDate string) []legResult {
	legs := trade.ResolveLegs()
	if len(legs) == 0 {
		log.WithField("trade_id", trade.ID).Warn("trade has no resolvable legs, skipping")
		return nil
	}

	out := make([]legResult, len(legs))
	var g errgroup.Group
	g.SetLimit(len(legs))
	for i, leg := range legs {
		i, leg := i, leg
		g.Go(func() error {
			out[i] = e.syncLeg(ctx, log, trade, leg, trackingDate)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) syncLeg(ctx context.Context, log logrus.FieldLogger, trade *models.ActiveTrade, leg models.Leg, trackingDate string) legResult {
	legLog := log.WithFields(logrus.Fields{
		"trade_id":      trade.ID,
		"option_symbol": leg.OptionSymbol,
		"slot":          string(leg.Slot),
	})

	var res legResult

	existing, err := e.store.GetSnapshot(ctx, trade.ID, trackingDate, leg.OptionSymbol)
	if err != nil && !errors.Is(err, storage.ErrSnapshotNotFound) {
		legLog.WithError(err).Error("failed to load existing snapshot")
		res.failed = true
		return res
	}
	if existing != nil && existing.IsComplete {
		legLog.Debug("snapshot already complete, skipping")
		return res
	}

	start := e.now()
	quote, err := e.quotes.GetQuote(ctx, leg.OptionSymbol)
	res.fetched = true
	res.latency = e.now().Sub(start)

	if err != nil {
		legLog.WithError(err).Error("quote fetch failed")
		res.failed = true
		return res
	}
	if quote == nil {
		legLog.Warn("no quote data for symbol, skipping leg")
		return res
	}

	snap := snapshotFromQuote(trade.ID, trackingDate, leg.OptionSymbol, quote, e.now())
	created, err := e.store.UpsertSnapshot(ctx, snap)
	if err != nil {
		legLog.WithError(err).Error("snapshot upsert failed")
		res.failed = true
		return res
	}
	res.created = created
	res.updated = !created

	if quote.MarketClosed {
		if err := e.store.MarkSnapshotComplete(ctx, trade.ID, trackingDate, leg.OptionSymbol); err != nil {
			legLog.WithError(err).Error("failed to finalize snapshot")
			res.failed = true
			return res
		}
		res.completed = true
	}
	return res
}

// snapshotFromQuote maps a provider quote onto the day's snapshot row.
func snapshotFromQuote(tradeID int64, trackingDate, optionSymbol string, q *provider.QuoteSnapshot, now time.Time) *models.PriceSnapshot {
	return &models.PriceSnapshot{
		TradeID:      tradeID,
		TrackingDate: trackingDate,
		OptionSymbol: optionSymbol,

		Bid:  q.Bid,
		Ask:  q.Ask,
		Last: q.Last,
		Mark: q.Mark,

		BidSize:      q.BidSize,
		AskSize:      q.AskSize,
		Volume:       q.Volume,
		OpenInterest: q.OpenInterest,

		Delta: q.Delta,
		Gamma: q.Gamma,
		Theta: q.Theta,
		Vega:  q.Vega,
		Rho:   q.Rho,

		BidIV: q.BidIV,
		MidIV: q.MidIV,
		AskIV: q.AskIV,

		IsMarketClosed: q.MarketClosed,
		LastUpdate:     now.UTC(),
	}
}
