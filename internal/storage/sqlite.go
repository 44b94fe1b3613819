package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"spreadtrack/internal/models"
)

// SQLiteStorage implements Interface on a GORM-managed SQLite database.
type SQLiteStorage struct {
	db *gorm.DB
}

// NewSQLiteStorage opens (creating if needed) the database at path and
// migrates the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return newSQLiteStorage(db)
}

// NewSQLiteStorageFromDB wraps an existing GORM handle, used by tests with
// an in-memory database.
func NewSQLiteStorageFromDB(db *gorm.DB) (*SQLiteStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newSQLiteStorage(db)
}

func newSQLiteStorage(db *gorm.DB) (*SQLiteStorage, error) {
	if err := db.AutoMigrate(
		&models.ActiveTrade{},
		&models.CompletedTrade{},
		&models.StatusChange{},
		&models.PriceSnapshot{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveNewTrade validates and inserts a new active trade, returning its ID.
// Malformed trades are rejected at this boundary and never stored.
func (s *SQLiteStorage) SaveNewTrade(ctx context.Context, trade *models.ActiveTrade) (int64, error) {
	if trade.Status == "" {
		trade.Status = models.StatusOpen
	}
	if trade.EntryDate.IsZero() {
		trade.EntryDate = time.Now().UTC()
	}
	if err := trade.Validate(); err != nil {
		return 0, fmt.Errorf("rejecting trade: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(trade).Error; err != nil {
		return 0, fmt.Errorf("saving trade: %w", err)
	}
	return trade.ID, nil
}

// GetActiveTrades returns active trades, optionally filtered by status.
// An empty statusFilter returns all active trades.
func (s *SQLiteStorage) GetActiveTrades(ctx context.Context, statusFilter models.TradeStatus) ([]models.ActiveTrade, error) {
	q := s.db.WithContext(ctx).Order("trade_id")
	if statusFilter != "" {
		q = q.Where("status = ?", statusFilter)
	}
	var trades []models.ActiveTrade
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("loading active trades: %w", err)
	}
	return trades, nil
}

// GetTradeByID returns one active trade or ErrTradeNotFound.
func (s *SQLiteStorage) GetTradeByID(ctx context.Context, tradeID int64) (*models.ActiveTrade, error) {
	var trade models.ActiveTrade
	err := s.db.WithContext(ctx).First(&trade, "trade_id = ?", tradeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trade %d: %w", tradeID, ErrTradeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading trade %d: %w", tradeID, err)
	}
	return &trade, nil
}

// UpdateTradeStatus applies a status transition and appends the audit row
// in one transaction. Invalid transitions are rejected unchanged.
func (s *SQLiteStorage) UpdateTradeStatus(ctx context.Context, tradeID int64, newStatus models.TradeStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trade models.ActiveTrade
		err := tx.First(&trade, "trade_id = ?", tradeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("trade %d: %w", tradeID, ErrTradeNotFound)
		}
		if err != nil {
			return fmt.Errorf("loading trade %d: %w", tradeID, err)
		}

		oldStatus := trade.Status
		if err := trade.TransitionStatus(newStatus); err != nil {
			return err
		}
		if err := tx.Model(&models.ActiveTrade{}).
			Where("trade_id = ?", tradeID).
			Update("status", newStatus).Error; err != nil {
			return fmt.Errorf("updating status: %w", err)
		}
		change := models.StatusChange{
			TradeID:   tradeID,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			ChangedAt: time.Now().UTC(),
		}
		if err := tx.Create(&change).Error; err != nil {
			return fmt.Errorf("recording status change: %w", err)
		}
		return nil
	})
}

// CompleteTrade migrates an active trade into completed_trades. The insert
// and delete run in one transaction so a crash can never leave the trade
// duplicated or lost.
func (s *SQLiteStorage) CompleteTrade(ctx context.Context, tradeID int64, exit ExitDetails) error {
	if !exit.ExitType.Valid() {
		return fmt.Errorf("trade %d: invalid exit type %q", tradeID, exit.ExitType)
	}
	closeDate := exit.CloseDate
	if closeDate.IsZero() {
		closeDate = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trade models.ActiveTrade
		err := tx.First(&trade, "trade_id = ?", tradeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("trade %d: %w", tradeID, ErrTradeNotFound)
		}
		if err != nil {
			return fmt.Errorf("loading trade %d: %w", tradeID, err)
		}

		completed := models.CompletedTrade{
			ID:                   trade.ID,
			Symbol:               trade.Symbol,
			UnderlyingEntryPrice: trade.UnderlyingPrice,
			UnderlyingExitPrice:  exit.UnderlyingExitPrice,
			Strategy:             trade.Strategy,
			EntryDate:            trade.EntryDate,
			ExpirationDate:       trade.ExpirationDate,
			CloseDate:            closeDate,
			ShortPutStrike:       trade.ShortPutStrike,
			LongPutStrike:        trade.LongPutStrike,
			ShortCallStrike:      trade.ShortCallStrike,
			LongCallStrike:       trade.LongCallStrike,
			ShortPutSymbol:       trade.ShortPutSymbol,
			LongPutSymbol:        trade.LongPutSymbol,
			ShortCallSymbol:      trade.ShortCallSymbol,
			LongCallSymbol:       trade.LongCallSymbol,
			EntryCredit:          trade.NetCredit,
			ExitDebit:            exit.ExitDebit,
			Contracts:            trade.Contracts,
			ActualProfitLoss:     exit.ActualProfitLoss,
			ExitType:             exit.ExitType,
			CompletedAt:          time.Now().UTC(),
		}
		if err := tx.Create(&completed).Error; err != nil {
			return fmt.Errorf("inserting completed trade: %w", err)
		}
		if err := tx.Delete(&models.ActiveTrade{}, "trade_id = ?", tradeID).Error; err != nil {
			return fmt.Errorf("removing active trade: %w", err)
		}
		return nil
	})
}

// GetTradeHistory returns completed trades newest first, optionally
// filtered by underlying symbol. limit <= 0 means no limit.
func (s *SQLiteStorage) GetTradeHistory(ctx context.Context, symbolFilter string, limit int) ([]models.CompletedTrade, error) {
	q := s.db.WithContext(ctx).Order("close_date DESC, trade_id DESC")
	if symbolFilter != "" {
		q = q.Where("symbol = ?", symbolFilter)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var trades []models.CompletedTrade
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("loading trade history: %w", err)
	}
	return trades, nil
}

// GetStatusHistory returns the audit log for one trade, oldest first.
func (s *SQLiteStorage) GetStatusHistory(ctx context.Context, tradeID int64) ([]models.StatusChange, error) {
	var changes []models.StatusChange
	err := s.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("history_id").
		Find(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("loading status history: %w", err)
	}
	return changes, nil
}

// GetSnapshot fetches the snapshot for (trade, date, symbol) or
// ErrSnapshotNotFound.
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, tradeID int64, trackingDate, optionSymbol string) (*models.PriceSnapshot, error) {
	var snap models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("trade_id = ? AND tracking_date = ? AND option_symbol = ?", tradeID, trackingDate, optionSymbol).
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return &snap, nil
}

// UpsertSnapshot creates or updates the row for the snapshot's
// (trade, date, symbol) key. Repeated upserts for the same key update the
// same row, never create duplicates.
func (s *SQLiteStorage) UpsertSnapshot(ctx context.Context, snap *models.PriceSnapshot) (bool, error) {
	if snap.LastUpdate.IsZero() {
		snap.LastUpdate = time.Now().UTC()
	}
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PriceSnapshot
		err := tx.Where("trade_id = ? AND tracking_date = ? AND option_symbol = ?",
			snap.TradeID, snap.TrackingDate, snap.OptionSymbol).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(snap).Error
		case err != nil:
			return err
		default:
			snap.ID = existing.ID
			return tx.Save(snap).Error
		}
	})
	if err != nil {
		return false, fmt.Errorf("upserting snapshot: %w", err)
	}
	return created, nil
}

// MarkSnapshotComplete finalizes the day's snapshot for a leg; the row is
// immutable for that day thereafter by convention.
func (s *SQLiteStorage) MarkSnapshotComplete(ctx context.Context, tradeID int64, trackingDate, optionSymbol string) error {
	res := s.db.WithContext(ctx).Model(&models.PriceSnapshot{}).
		Where("trade_id = ? AND tracking_date = ? AND option_symbol = ?", tradeID, trackingDate, optionSymbol).
		Update("is_complete", true)
	if res.Error != nil {
		return fmt.Errorf("marking snapshot complete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// GetLatestSnapshot returns the most recent snapshot for an option symbol
// across all trades, or ErrSnapshotNotFound.
func (s *SQLiteStorage) GetLatestSnapshot(ctx context.Context, optionSymbol string) (*models.PriceSnapshot, error) {
	var snap models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("option_symbol = ?", optionSymbol).
		Order("tracking_date DESC, last_update_time DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	return &snap, nil
}

// GetSnapshotHistory returns every snapshot recorded for a trade, oldest
// first.
func (s *SQLiteStorage) GetSnapshotHistory(ctx context.Context, tradeID int64) ([]models.PriceSnapshot, error) {
	var snaps []models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("tracking_date, option_symbol").
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("loading snapshot history: %w", err)
	}
	return snaps, nil
}
