package models

import (
	"fmt"
	"time"
)

// SharesPerContract is the standard option contract multiplier.
const SharesPerContract = 100.0

// TradeStatus represents the lifecycle state of an active trade.
type TradeStatus string

const (
	// StatusOpen is the initial state of every ingested trade.
	StatusOpen TradeStatus = "OPEN"
	// StatusClosing marks a trade an external decision wants wound down.
	StatusClosing TradeStatus = "CLOSING"
	// StatusExpired is terminal; reaching it triggers migration to history.
	StatusExpired TradeStatus = "EXPIRED"
)

// Valid returns true if the TradeStatus is one of the defined constants.
func (s TradeStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosing, StatusExpired:
		return true
	default:
		return false
	}
}

// ExitType categorizes how a completed trade was closed out.
type ExitType string

const (
	ExitExpired     ExitType = "EXPIRED"
	ExitClosedEarly ExitType = "CLOSED_EARLY"
	ExitStoppedOut  ExitType = "STOPPED_OUT"
	ExitRolled      ExitType = "ROLLED"
)

// Valid returns true if the ExitType is one of the defined constants.
func (e ExitType) Valid() bool {
	switch e {
	case ExitExpired, ExitClosedEarly, ExitStoppedOut, ExitRolled:
		return true
	default:
		return false
	}
}

// ActiveTrade is a live multi-leg spread position.
//
// Strike and symbol fields are populated per strategy: the populated slot
// set must exactly match Strategy.LegSlots(). NetCredit is signed and per
// contract: positive means credit received at entry, negative means debit
// paid.
type ActiveTrade struct {
	ID              int64       `gorm:"column:trade_id;primaryKey" json:"trade_id"`
	Symbol          string      `gorm:"column:symbol;index" json:"symbol"`
	UnderlyingPrice float64     `gorm:"column:underlying_price" json:"underlying_price"`
	Strategy        Strategy    `gorm:"column:trade_type;index" json:"trade_type"`
	EntryDate       time.Time   `gorm:"column:entry_date" json:"entry_date"`
	ExpirationDate  time.Time   `gorm:"column:expiration_date;index" json:"expiration_date"`
	ShortPutStrike  *float64    `gorm:"column:short_put" json:"short_put,omitempty"`
	LongPutStrike   *float64    `gorm:"column:long_put" json:"long_put,omitempty"`
	ShortCallStrike *float64    `gorm:"column:short_call" json:"short_call,omitempty"`
	LongCallStrike  *float64    `gorm:"column:long_call" json:"long_call,omitempty"`
	ShortPutSymbol  string      `gorm:"column:short_put_symbol" json:"short_put_symbol,omitempty"`
	LongPutSymbol   string      `gorm:"column:long_put_symbol" json:"long_put_symbol,omitempty"`
	ShortCallSymbol string      `gorm:"column:short_call_symbol" json:"short_call_symbol,omitempty"`
	LongCallSymbol  string      `gorm:"column:long_call_symbol" json:"long_call_symbol,omitempty"`
	NetCredit       float64     `gorm:"column:net_credit" json:"net_credit"`
	Contracts       int         `gorm:"column:num_contracts" json:"num_contracts"`
	Status          TradeStatus `gorm:"column:status;index" json:"status"`
	CreatedAt       time.Time   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"column:updated_at" json:"updated_at"`
}

// TableName maps ActiveTrade to the active_trades table.
func (ActiveTrade) TableName() string { return "active_trades" }

// slotStrings returns the strike pointer and option symbol stored for a slot.
func (t *ActiveTrade) slotFields(slot LegSlot) (*float64, string) {
	switch slot {
	case SlotShortPut:
		return t.ShortPutStrike, t.ShortPutSymbol
	case SlotLongPut:
		return t.LongPutStrike, t.LongPutSymbol
	case SlotShortCall:
		return t.ShortCallStrike, t.ShortCallSymbol
	case SlotLongCall:
		return t.LongCallStrike, t.LongCallSymbol
	default:
		return nil, ""
	}
}

// slotPopulated reports whether a slot carries both a strike and a symbol.
func (t *ActiveTrade) slotPopulated(slot LegSlot) bool {
	strike, symbol := t.slotFields(slot)
	return strike != nil && symbol != ""
}

// Validate enforces the construction invariants: the populated leg slots
// exactly match the strategy's required set, contract count is positive,
// and the expiration date is set. A mismatched slot set is a validation
// error, never silently tolerated at the write boundary.
func (t *ActiveTrade) Validate() error {
	if !t.Strategy.Valid() {
		return fmt.Errorf("trade %d: unknown strategy %q", t.ID, t.Strategy)
	}
	if t.Symbol == "" {
		return fmt.Errorf("trade %d: symbol is required", t.ID)
	}
	if t.Contracts <= 0 {
		return fmt.Errorf("trade %d: contract count must be positive (got %d)", t.ID, t.Contracts)
	}
	if t.ExpirationDate.IsZero() {
		return fmt.Errorf("trade %d: expiration date is required", t.ID)
	}
	if t.Status != "" && !t.Status.Valid() {
		return fmt.Errorf("trade %d: invalid status %q", t.ID, t.Status)
	}

	required := make(map[LegSlot]bool, 4)
	for _, spec := range t.Strategy.LegSlots() {
		required[spec.Slot] = true
		if !t.slotPopulated(spec.Slot) {
			return fmt.Errorf("trade %d: strategy %s requires leg slot %s", t.ID, t.Strategy, spec.Slot)
		}
	}
	for _, slot := range []LegSlot{SlotShortPut, SlotLongPut, SlotShortCall, SlotLongCall} {
		if !required[slot] && t.slotPopulated(slot) {
			return fmt.Errorf("trade %d: strategy %s must not populate leg slot %s", t.ID, t.Strategy, slot)
		}
	}
	return nil
}

// DaysToExpiry returns whole days between now and expiration, negative once
// the expiration date has passed.
func (t *ActiveTrade) DaysToExpiry(now time.Time) int {
	exp := t.ExpirationDate.UTC().Truncate(24 * time.Hour)
	day := now.UTC().Truncate(24 * time.Hour)
	return int(exp.Sub(day).Hours() / 24)
}

// TotalCredit returns the signed entry credit for the whole position in
// dollars (per-contract credit x contracts x contract multiplier).
func (t *ActiveTrade) TotalCredit() float64 {
	return t.NetCredit * float64(t.Contracts) * SharesPerContract
}

// CompletedTrade is a historical trade record. Rows are immutable once
// written; they are created exclusively by the lifecycle manager's
// completion step.
type CompletedTrade struct {
	ID                   int64     `gorm:"column:trade_id;primaryKey" json:"trade_id"`
	Symbol               string    `gorm:"column:symbol;index" json:"symbol"`
	UnderlyingEntryPrice float64   `gorm:"column:underlying_entry_price" json:"underlying_entry_price"`
	UnderlyingExitPrice  float64   `gorm:"column:underlying_exit_price" json:"underlying_exit_price"`
	Strategy             Strategy  `gorm:"column:trade_type" json:"trade_type"`
	EntryDate            time.Time `gorm:"column:entry_date" json:"entry_date"`
	ExpirationDate       time.Time `gorm:"column:expiration_date" json:"expiration_date"`
	CloseDate            time.Time `gorm:"column:close_date" json:"close_date"`
	ShortPutStrike       *float64  `gorm:"column:short_put" json:"short_put,omitempty"`
	LongPutStrike        *float64  `gorm:"column:long_put" json:"long_put,omitempty"`
	ShortCallStrike      *float64  `gorm:"column:short_call" json:"short_call,omitempty"`
	LongCallStrike       *float64  `gorm:"column:long_call" json:"long_call,omitempty"`
	ShortPutSymbol       string    `gorm:"column:short_put_symbol" json:"short_put_symbol,omitempty"`
	LongPutSymbol        string    `gorm:"column:long_put_symbol" json:"long_put_symbol,omitempty"`
	ShortCallSymbol      string    `gorm:"column:short_call_symbol" json:"short_call_symbol,omitempty"`
	LongCallSymbol       string    `gorm:"column:long_call_symbol" json:"long_call_symbol,omitempty"`
	EntryCredit          float64   `gorm:"column:entry_credit" json:"entry_credit"`
	ExitDebit            float64   `gorm:"column:exit_debit" json:"exit_debit"`
	Contracts            int       `gorm:"column:num_contracts" json:"num_contracts"`
	ActualProfitLoss     float64   `gorm:"column:actual_profit_loss" json:"actual_profit_loss"`
	ExitType             ExitType  `gorm:"column:exit_type" json:"exit_type"`
	CompletedAt          time.Time `gorm:"column:completed_at" json:"completed_at"`
}

// TableName maps CompletedTrade to the completed_trades table.
func (CompletedTrade) TableName() string { return "completed_trades" }

// ProfitLossPercent returns realized P&L as a percentage of the absolute
// entry credit, 0 when the entry credit is 0.
func (c *CompletedTrade) ProfitLossPercent() float64 {
	if c.EntryCredit == 0 {
		return 0
	}
	return c.ActualProfitLoss / abs(c.EntryCredit) * 100
}

// HoldDays returns whole days between entry and close.
func (c *CompletedTrade) HoldDays() int {
	return int(c.CloseDate.Sub(c.EntryDate).Hours() / 24)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// StatusChange is one append-only audit entry for a trade status
// transition. History is always queried by trade ID and never drives
// further transitions.
type StatusChange struct {
	ID        int64       `gorm:"column:history_id;primaryKey" json:"history_id"`
	TradeID   int64       `gorm:"column:trade_id;index" json:"trade_id"`
	OldStatus TradeStatus `gorm:"column:old_status" json:"old_status"`
	NewStatus TradeStatus `gorm:"column:new_status" json:"new_status"`
	ChangedAt time.Time   `gorm:"column:change_date" json:"change_date"`
}

// TableName maps StatusChange to the trade_status_history table.
func (StatusChange) TableName() string { return "trade_status_history" }
