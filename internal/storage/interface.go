// Package storage provides persistence for trades, price snapshots, and
// status history.
package storage

import (
	"context"
	"time"

	"spreadtrack/internal/models"
)

// ExitDetails carries the exit-side data required to migrate an active
// trade into history.
type ExitDetails struct {
	UnderlyingExitPrice float64
	ExitDebit           float64
	ActualProfitLoss    float64
	ExitType            models.ExitType
	CloseDate           time.Time
}

// Interface defines the contract for trade and snapshot persistence.
//
// Implementations must be safe for concurrent use: the price sync engine
// calls snapshot methods from multiple goroutines, each call standing on
// its own connection. No method holds a transaction across a caller's
// network fetch.
type Interface interface {
	// Trade lifecycle
	SaveNewTrade(ctx context.Context, trade *models.ActiveTrade) (int64, error)
	GetActiveTrades(ctx context.Context, statusFilter models.TradeStatus) ([]models.ActiveTrade, error)
	GetTradeByID(ctx context.Context, tradeID int64) (*models.ActiveTrade, error)
	// UpdateTradeStatus validates the transition, persists the new status,
	// and appends the status-history entry in the same transaction.
	UpdateTradeStatus(ctx context.Context, tradeID int64, newStatus models.TradeStatus) error
	// CompleteTrade inserts the completed row and removes the active row
	// as one atomic unit. After it returns the trade exists in exactly one
	// of the two stores.
	CompleteTrade(ctx context.Context, tradeID int64, exit ExitDetails) error

	// History and audit
	GetTradeHistory(ctx context.Context, symbolFilter string, limit int) ([]models.CompletedTrade, error)
	GetStatusHistory(ctx context.Context, tradeID int64) ([]models.StatusChange, error)

	// Price snapshots
	GetSnapshot(ctx context.Context, tradeID int64, trackingDate, optionSymbol string) (*models.PriceSnapshot, error)
	// UpsertSnapshot creates the row for (trade, date, symbol) on first
	// observation and updates it in place afterwards. Returns true when a
	// new row was created.
	UpsertSnapshot(ctx context.Context, snap *models.PriceSnapshot) (bool, error)
	MarkSnapshotComplete(ctx context.Context, tradeID int64, trackingDate, optionSymbol string) error
	GetLatestSnapshot(ctx context.Context, optionSymbol string) (*models.PriceSnapshot, error)
	GetSnapshotHistory(ctx context.Context, tradeID int64) ([]models.PriceSnapshot, error)

	Close() error
}

// Ensure both implementations satisfy Interface at compile time.
var (
	_ Interface = (*SQLiteStorage)(nil)
	_ Interface = (*MemoryStorage)(nil)
)
