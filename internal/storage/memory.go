package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"spreadtrack/internal/models"
)

// MemoryStorage is an in-memory Interface implementation for tests. It
// mirrors the SQLite store's semantics, including transition validation
// and the atomic active-to-completed move.
type MemoryStorage struct {
	mu        sync.RWMutex
	nextTrade int64
	nextSnap  int64
	nextHist  int64
	active    map[int64]models.ActiveTrade
	completed map[int64]models.CompletedTrade
	snapshots map[int64]models.PriceSnapshot
	history   []models.StatusChange

	// Error injection hooks for failure-path tests. FailWritesFunc is
	// consulted per write when set, so tests can fail selectively.
	FailReads      error
	FailWrites     error
	FailWritesFunc func() error
}

func (m *MemoryStorage) writeErr() error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if m.FailWritesFunc != nil {
		return m.FailWritesFunc()
	}
	return nil
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		active:    make(map[int64]models.ActiveTrade),
		completed: make(map[int64]models.CompletedTrade),
		snapshots: make(map[int64]models.PriceSnapshot),
	}
}

// Close is a no-op for the in-memory store.
func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) SaveNewTrade(_ context.Context, trade *models.ActiveTrade) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr(); err != nil {
		return 0, err
	}
	if trade.Status == "" {
		trade.Status = models.StatusOpen
	}
	if trade.EntryDate.IsZero() {
		trade.EntryDate = time.Now().UTC()
	}
	if err := trade.Validate(); err != nil {
		return 0, fmt.Errorf("rejecting trade: %w", err)
	}
	if trade.ID == 0 {
		m.nextTrade++
		trade.ID = m.nextTrade
	} else if trade.ID > m.nextTrade {
		m.nextTrade = trade.ID
	}
	m.active[trade.ID] = *trade
	return trade.ID, nil
}

func (m *MemoryStorage) GetActiveTrades(_ context.Context, statusFilter models.TradeStatus) ([]models.ActiveTrade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	trades := make([]models.ActiveTrade, 0, len(m.active))
	for _, t := range m.active {
		if statusFilter == "" || t.Status == statusFilter {
			trades = append(trades, t)
		}
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].ID < trades[j].ID })
	return trades, nil
}

func (m *MemoryStorage) GetTradeByID(_ context.Context, tradeID int64) (*models.ActiveTrade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	t, ok := m.active[tradeID]
	if !ok {
		return nil, fmt.Errorf("trade %d: %w", tradeID, ErrTradeNotFound)
	}
	return &t, nil
}

func (m *MemoryStorage) UpdateTradeStatus(_ context.Context, tradeID int64, newStatus models.TradeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr(); err != nil {
		return err
	}
	t, ok := m.active[tradeID]
	if !ok {
		return fmt.Errorf("trade %d: %w", tradeID, ErrTradeNotFound)
	}
	oldStatus := t.Status
	if err := t.TransitionStatus(newStatus); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	m.active[tradeID] = t
	m.nextHist++
	m.history = append(m.history, models.StatusChange{
		ID:        m.nextHist,
		TradeID:   tradeID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		ChangedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemoryStorage) CompleteTrade(_ context.Context, tradeID int64, exit ExitDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr(); err != nil {
		return err
	}
	if !exit.ExitType.Valid() {
		return fmt.Errorf("trade %d: invalid exit type %q", tradeID, exit.ExitType)
	}
	t, ok := m.active[tradeID]
	if !ok {
		return fmt.Errorf("trade %d: %w", tradeID, ErrTradeNotFound)
	}
	closeDate := exit.CloseDate
	if closeDate.IsZero() {
		closeDate = time.Now().UTC()
	}
	m.completed[tradeID] = models.CompletedTrade{
		ID:                   t.ID,
		Symbol:               t.Symbol,
		UnderlyingEntryPrice: t.UnderlyingPrice,
		UnderlyingExitPrice:  exit.UnderlyingExitPrice,
		Strategy:             t.Strategy,
		EntryDate:            t.EntryDate,
		ExpirationDate:       t.ExpirationDate,
		CloseDate:            closeDate,
		ShortPutStrike:       t.ShortPutStrike,
		LongPutStrike:        t.LongPutStrike,
		ShortCallStrike:      t.ShortCallStrike,
		LongCallStrike:       t.LongCallStrike,
		ShortPutSymbol:       t.ShortPutSymbol,
		LongPutSymbol:        t.LongPutSymbol,
		ShortCallSymbol:      t.ShortCallSymbol,
		LongCallSymbol:       t.LongCallSymbol,
		EntryCredit:          t.NetCredit,
		ExitDebit:            exit.ExitDebit,
		Contracts:            t.Contracts,
		ActualProfitLoss:     exit.ActualProfitLoss,
		ExitType:             exit.ExitType,
		CompletedAt:          time.Now().UTC(),
	}
	delete(m.active, tradeID)
	return nil
}

func (m *MemoryStorage) GetTradeHistory(_ context.Context, symbolFilter string, limit int) ([]models.CompletedTrade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	trades := make([]models.CompletedTrade, 0, len(m.completed))
	for _, t := range m.completed {
		if symbolFilter == "" || t.Symbol == symbolFilter {
			trades = append(trades, t)
		}
	}
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].CloseDate.Equal(trades[j].CloseDate) {
			return trades[i].ID > trades[j].ID
		}
		return trades[i].CloseDate.After(trades[j].CloseDate)
	})
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

func (m *MemoryStorage) GetStatusHistory(_ context.Context, tradeID int64) ([]models.StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	var changes []models.StatusChange
	for _, c := range m.history {
		if c.TradeID == tradeID {
			changes = append(changes, c)
		}
	}
	return changes, nil
}

func (m *MemoryStorage) GetSnapshot(_ context.Context, tradeID int64, trackingDate, optionSymbol string) (*models.PriceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	for _, s := range m.snapshots {
		if s.TradeID == tradeID && s.TrackingDate == trackingDate && s.OptionSymbol == optionSymbol {
			snap := s
			return &snap, nil
		}
	}
	return nil, ErrSnapshotNotFound
}

func (m *MemoryStorage) UpsertSnapshot(_ context.Context, snap *models.PriceSnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr(); err != nil {
		return false, err
	}
	if snap.LastUpdate.IsZero() {
		snap.LastUpdate = time.Now().UTC()
	}
	for id, s := range m.snapshots {
		if s.TradeID == snap.TradeID && s.TrackingDate == snap.TrackingDate && s.OptionSymbol == snap.OptionSymbol {
			snap.ID = id
			m.snapshots[id] = *snap
			return false, nil
		}
	}
	m.nextSnap++
	snap.ID = m.nextSnap
	m.snapshots[snap.ID] = *snap
	return true, nil
}

func (m *MemoryStorage) MarkSnapshotComplete(_ context.Context, tradeID int64, trackingDate, optionSymbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeErr(); err != nil {
		return err
	}
	for id, s := range m.snapshots {
		if s.TradeID == tradeID && s.TrackingDate == trackingDate && s.OptionSymbol == optionSymbol {
			s.IsComplete = true
			m.snapshots[id] = s
			return nil
		}
	}
	return ErrSnapshotNotFound
}

func (m *MemoryStorage) GetLatestSnapshot(_ context.Context, optionSymbol string) (*models.PriceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	var latest *models.PriceSnapshot
	for _, s := range m.snapshots {
		if s.OptionSymbol != optionSymbol {
			continue
		}
		snap := s
		if latest == nil ||
			snap.TrackingDate > latest.TrackingDate ||
			(snap.TrackingDate == latest.TrackingDate && snap.LastUpdate.After(latest.LastUpdate)) {
			latest = &snap
		}
	}
	if latest == nil {
		return nil, ErrSnapshotNotFound
	}
	return latest, nil
}

func (m *MemoryStorage) GetSnapshotHistory(_ context.Context, tradeID int64) ([]models.PriceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads != nil {
		return nil, m.FailReads
	}
	var snaps []models.PriceSnapshot
	for _, s := range m.snapshots {
		if s.TradeID == tradeID {
			snaps = append(snaps, s)
		}
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].TrackingDate == snaps[j].TrackingDate {
			return snaps[i].OptionSymbol < snaps[j].OptionSymbol
		}
		return snaps[i].TrackingDate < snaps[j].TrackingDate
	})
	return snaps, nil
}

// CompletedCount reports how many completed rows exist for a trade ID,
// used by atomicity tests.
func (m *MemoryStorage) CompletedCount(tradeID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.completed[tradeID]; ok {
		return 1
	}
	return 0
}

// ActiveCount reports how many active rows exist for a trade ID.
func (m *MemoryStorage) ActiveCount(tradeID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.active[tradeID]; ok {
		return 1
	}
	return 0
}
