// Package models provides data structures and state management for spread trades.
package models

// Strategy identifies the multi-leg option structure of a trade.
type Strategy string

const (
	// StrategyBullPut is a short put vertical (credit).
	StrategyBullPut Strategy = "BULL_PUT"
	// StrategyBearCall is a short call vertical (credit).
	StrategyBearCall Strategy = "BEAR_CALL"
	// StrategyIronCondor combines a bull put and a bear call vertical.
	StrategyIronCondor Strategy = "IRON_CONDOR"
	// StrategyBullCall is a long call vertical (debit).
	StrategyBullCall Strategy = "BULL_CALL"
	// StrategyBearPut is a long put vertical (debit).
	StrategyBearPut Strategy = "BEAR_PUT"
)

// Valid returns true if the Strategy is one of the defined constants.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyBullPut, StrategyBearCall, StrategyIronCondor, StrategyBullCall, StrategyBearPut:
		return true
	default:
		return false
	}
}

// AllStrategies lists every supported strategy, in a stable order.
var AllStrategies = []Strategy{
	StrategyBullPut,
	StrategyBearCall,
	StrategyIronCondor,
	StrategyBullCall,
	StrategyBearPut,
}

// LegSlot names one of the four option positions a spread can hold.
type LegSlot string

const (
	SlotShortPut  LegSlot = "short_put"
	SlotLongPut   LegSlot = "long_put"
	SlotShortCall LegSlot = "short_call"
	SlotLongCall  LegSlot = "long_call"
)

// SlotSpec describes one required leg slot of a strategy.
type SlotSpec struct {
	Slot    LegSlot
	IsShort bool
	IsPut   bool
}

var (
	putPairSlots = []SlotSpec{
		{Slot: SlotShortPut, IsShort: true, IsPut: true},
		{Slot: SlotLongPut, IsShort: false, IsPut: true},
	}
	callPairSlots = []SlotSpec{
		{Slot: SlotShortCall, IsShort: true, IsPut: false},
		{Slot: SlotLongCall, IsShort: false, IsPut: false},
	}
	condorSlots = append(append([]SlotSpec{}, putPairSlots...), callPairSlots...)
)

// LegSlots returns the exact set of leg slots the strategy must populate.
// The slice is shared; callers must not mutate it.
func (s Strategy) LegSlots() []SlotSpec {
	switch s {
	case StrategyBullPut, StrategyBearPut:
		return putPairSlots
	case StrategyBearCall, StrategyBullCall:
		return callPairSlots
	case StrategyIronCondor:
		return condorSlots
	default:
		return nil
	}
}
