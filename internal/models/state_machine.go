package models

import "fmt"

// StatusTransition defines one valid trade status transition.
type StatusTransition struct {
	From        TradeStatus
	To          TradeStatus
	Condition   string
	Description string
}

// ValidStatusTransitions is the complete transition table. Status only
// ever moves forward: OPEN -> CLOSING -> EXPIRED or OPEN -> EXPIRED.
var ValidStatusTransitions = []StatusTransition{
	{StatusOpen, StatusClosing, "close_requested", "External decision to wind the position down"},
	{StatusOpen, StatusExpired, "past_expiration", "Expiration date has passed"},
	{StatusClosing, StatusExpired, "past_expiration", "Expiration date passed while closing"},
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to TradeStatus) bool {
	for _, tr := range ValidStatusTransitions {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}

// TransitionStatus moves the trade to a new status, rejecting anything not
// in the transition table. The trade is unchanged on error.
func (t *ActiveTrade) TransitionStatus(to TradeStatus) error {
	if !to.Valid() {
		return fmt.Errorf("trade %d: invalid target status %q", t.ID, to)
	}
	if t.Status == to {
		return fmt.Errorf("trade %d: already in status %s", t.ID, to)
	}
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("trade %d: invalid status transition %s -> %s", t.ID, t.Status, to)
	}
	t.Status = to
	return nil
}
