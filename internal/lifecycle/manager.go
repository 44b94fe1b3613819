// Package lifecycle advances trades through their status machine: it
// expires trades past their expiration date, migrates them into history,
// and handles operator-initiated closes.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"spreadtrack/internal/models"
	"spreadtrack/internal/storage"
)

// Stats summarizes one lifecycle pass.
type Stats struct {
	Examined int
	Expired  int
	Errors   int
}

// Manager owns trade status progression and completion.
type Manager struct {
	store  storage.Interface
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(store storage.Interface, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{store: store, logger: logger, now: time.Now}
}

// ProcessActiveTrades scans every active trade and retires the ones past
// expiration. Each expiry is handled independently; one failing trade
// does not block the rest of the pass.
func (m *Manager) ProcessActiveTrades(ctx context.Context) (*Stats, error) {
	trades, err := m.store.GetActiveTrades(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("loading active trades: %w", err)
	}

	stats := &Stats{Examined: len(trades)}
	for i := range trades {
		trade := &trades[i]
		if trade.DaysToExpiry(m.now()) >= 0 {
			continue
		}
		if err := m.expireTrade(ctx, trade); err != nil {
			m.logger.WithError(err).WithField("trade_id", trade.ID).Error("failed to expire trade")
			stats.Errors++
			continue
		}
		stats.Expired++
	}

	if stats.Expired > 0 || stats.Errors > 0 {
		m.logger.WithFields(logrus.Fields{
			"examined": stats.Examined,
			"expired":  stats.Expired,
			"errors":   stats.Errors,
		}).Info("lifecycle pass finished")
	}
	return stats, nil
}

// expireTrade marks the trade EXPIRED and migrates it to history. An
// expired spread is kept to worthlessness, so the full entry credit is
// realized and no exit debit is paid.
func (m *Manager) expireTrade(ctx context.Context, trade *models.ActiveTrade) error {
	m.logger.WithFields(logrus.Fields{
		"trade_id":   trade.ID,
		"symbol":     trade.Symbol,
		"strategy":   string(trade.Strategy),
		"expiration": trade.ExpirationDate.Format("2006-01-02"),
	}).Info("trade past expiration, retiring")

	// A prior pass may have marked the trade EXPIRED and then failed the
	// migration; retry the migration instead of re-transitioning.
	if trade.Status != models.StatusExpired {
		if err := m.store.UpdateTradeStatus(ctx, trade.ID, models.StatusExpired); err != nil {
			return fmt.Errorf("marking expired: %w", err)
		}
	}
	realized := trade.NetCredit * float64(trade.Contracts) * models.SharesPerContract
	exit := storage.ExitDetails{
		UnderlyingExitPrice: trade.UnderlyingPrice,
		ExitDebit:           0,
		ActualProfitLoss:    realized,
		ExitType:            models.ExitExpired,
		CloseDate:           trade.ExpirationDate,
	}
	if err := m.store.CompleteTrade(ctx, trade.ID, exit); err != nil {
		return fmt.Errorf("completing: %w", err)
	}
	return nil
}

// RequestClose flags an open trade for wind-down. The trade stays active
// and keeps collecting snapshots until it is closed or expires.
func (m *Manager) RequestClose(ctx context.Context, tradeID int64) error {
	if err := m.store.UpdateTradeStatus(ctx, tradeID, models.StatusClosing); err != nil {
		return fmt.Errorf("requesting close of trade %d: %w", tradeID, err)
	}
	m.logger.WithField("trade_id", tradeID).Info("trade flagged for close")
	return nil
}

// CloseTrade retires a trade before expiration at the given exit debit.
// The realized P&L is the entry credit kept minus the debit paid to close,
// scaled by contract count. exitType describes why the trade was closed
// and must not be EXPIRED.
func (m *Manager) CloseTrade(ctx context.Context, tradeID int64, underlyingExitPrice, exitDebit float64, exitType models.ExitType) error {
	if !exitType.Valid() || exitType == models.ExitExpired {
		return fmt.Errorf("trade %d: exit type %q not valid for a manual close", tradeID, exitType)
	}
	trade, err := m.store.GetTradeByID(ctx, tradeID)
	if err != nil {
		return err
	}

	realized := (trade.NetCredit - exitDebit) * float64(trade.Contracts) * models.SharesPerContract
	exit := storage.ExitDetails{
		UnderlyingExitPrice: underlyingExitPrice,
		ExitDebit:           exitDebit,
		ActualProfitLoss:    realized,
		ExitType:            exitType,
		CloseDate:           m.now().UTC(),
	}
	if err := m.store.CompleteTrade(ctx, tradeID, exit); err != nil {
		return fmt.Errorf("closing trade %d: %w", tradeID, err)
	}
	m.logger.WithFields(logrus.Fields{
		"trade_id":  tradeID,
		"exit_type": string(exitType),
		"realized":  realized,
	}).Info("trade closed")
	return nil
}
