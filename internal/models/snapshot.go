package models

import "time"

// PriceSnapshot is one day's observed market data for a single option leg
// of a trade. Rows are keyed by (trade_id, tracking_date, option_symbol)
// and updated in place during the day; once the market closes the row is
// marked complete and no longer touched. Rows are never deleted.
//
// Price and greek fields are pointers so that "never observed" is
// distinguishable from an observed zero; the analytics fallback ladder
// depends on that distinction.
type PriceSnapshot struct {
	ID           int64  `gorm:"column:tracking_id;primaryKey" json:"tracking_id"`
	TradeID      int64  `gorm:"column:trade_id;uniqueIndex:idx_tracking_key,priority:1" json:"trade_id"`
	TrackingDate string `gorm:"column:tracking_date;uniqueIndex:idx_tracking_key,priority:2" json:"tracking_date"`
	OptionSymbol string `gorm:"column:option_symbol;uniqueIndex:idx_tracking_key,priority:3;index" json:"option_symbol"`

	Bid  *float64 `gorm:"column:bid" json:"bid,omitempty"`
	Ask  *float64 `gorm:"column:ask" json:"ask,omitempty"`
	Last *float64 `gorm:"column:last" json:"last,omitempty"`
	Mark *float64 `gorm:"column:mark" json:"mark,omitempty"`

	BidSize      int   `gorm:"column:bid_size" json:"bid_size"`
	AskSize      int   `gorm:"column:ask_size" json:"ask_size"`
	Volume       int64 `gorm:"column:volume" json:"volume"`
	OpenInterest int64 `gorm:"column:open_interest" json:"open_interest"`

	Delta *float64 `gorm:"column:delta" json:"delta,omitempty"`
	Gamma *float64 `gorm:"column:gamma" json:"gamma,omitempty"`
	Theta *float64 `gorm:"column:theta" json:"theta,omitempty"`
	Vega  *float64 `gorm:"column:vega" json:"vega,omitempty"`
	Rho   *float64 `gorm:"column:rho" json:"rho,omitempty"`

	BidIV *float64 `gorm:"column:bid_iv" json:"bid_iv,omitempty"`
	MidIV *float64 `gorm:"column:mid_iv" json:"mid_iv,omitempty"`
	AskIV *float64 `gorm:"column:ask_iv" json:"ask_iv,omitempty"`

	IsMarketClosed bool      `gorm:"column:is_market_closed" json:"is_market_closed"`
	IsComplete     bool      `gorm:"column:is_complete" json:"is_complete"`
	LastUpdate     time.Time `gorm:"column:last_update_time" json:"last_update_time"`
}

// TableName maps PriceSnapshot to the option_price_tracking table.
func (PriceSnapshot) TableName() string { return "option_price_tracking" }

// TrackingDateLayout is the storage format for PriceSnapshot.TrackingDate.
const TrackingDateLayout = "2006-01-02"

// TrackingDate formats a time as a snapshot tracking date.
func TrackingDate(t time.Time) string {
	return t.UTC().Format(TrackingDateLayout)
}

// CurrentPrice resolves the leg's usable price via the fallback ladder:
// mark, then last, then the bid/ask midpoint when both sides are present.
// The boolean is false when no rung applies; callers decide how to degrade.
func (s *PriceSnapshot) CurrentPrice() (float64, bool) {
	if s == nil {
		return 0, false
	}
	if s.Mark != nil {
		return *s.Mark, true
	}
	if s.Last != nil {
		return *s.Last, true
	}
	if s.Bid != nil && s.Ask != nil {
		return (*s.Bid + *s.Ask) / 2, true
	}
	return 0, false
}
