package models

import (
	"fmt"
	"math"
	"time"
)

// Leg is one resolved option contract of a trade: the slot it fills, the
// OCC symbol to quote, and enough shape to value it.
type Leg struct {
	Slot         LegSlot
	OptionSymbol string
	Strike       float64
	IsShort      bool
	IsPut        bool
}

// ResolveLegs derives the option legs of a trade from its stored strikes
// and symbols. The strategy's slot table is filtered down to slots that
// are actually populated, so legacy rows with missing legs degrade to a
// shorter list instead of failing. An empty result means there is nothing
// to synchronize, which callers log and skip.
func (t *ActiveTrade) ResolveLegs() []Leg {
	specs := t.Strategy.LegSlots()
	legs := make([]Leg, 0, len(specs))
	for _, spec := range specs {
		strike, symbol := t.slotFields(spec.Slot)
		if strike == nil || symbol == "" {
			continue
		}
		legs = append(legs, Leg{
			Slot:         spec.Slot,
			OptionSymbol: symbol,
			Strike:       *strike,
			IsShort:      spec.IsShort,
			IsPut:        spec.IsPut,
		})
	}
	return legs
}

// OptionSymbols returns the OCC symbols of all populated legs, in slot
// table order.
func (t *ActiveTrade) OptionSymbols() []string {
	legs := t.ResolveLegs()
	symbols := make([]string, len(legs))
	for i, leg := range legs {
		symbols[i] = leg.OptionSymbol
	}
	return symbols
}

// BuildOptionSymbol constructs an OCC-style option identifier, e.g.
// SPY240419P00410000: underlying, YYMMDD expiration, P/C, strike in
// thousandths padded to eight digits.
func BuildOptionSymbol(underlying string, expiration time.Time, strike float64, put bool) string {
	cp := "C"
	if put {
		cp = "P"
	}
	millis := int64(math.Round(strike * 1000))
	return fmt.Sprintf("%s%s%s%08d", underlying, expiration.Format("060102"), cp, millis)
}
