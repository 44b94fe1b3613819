// Package provider contains the market-data and scan-source collaborators:
// the quote provider that prices individual option contracts and the scan
// provider that supplies candidate trades.
package provider

import "context"

// QuoteSnapshot is one observation of an option contract's market data.
// Price, greek, and IV fields are nil when the provider did not report
// them; downstream code must not treat nil as zero.
type QuoteSnapshot struct {
	Symbol string

	Bid  *float64
	Ask  *float64
	Last *float64
	Mark *float64

	BidSize      int
	AskSize      int
	Volume       int64
	OpenInterest int64

	Delta *float64
	Gamma *float64
	Theta *float64
	Vega  *float64
	Rho   *float64

	BidIV *float64
	MidIV *float64
	AskIV *float64

	// MarketClosed reports whether the market was closed when the quote
	// was taken; a closed-market quote finalizes the day's snapshot.
	MarketClosed bool
}

// MarketStatus describes the current market session.
type MarketStatus struct {
	State string // e.g. "open", "closed", "premarket"
	Open  bool
}

// QuoteProvider supplies quotes for single option identifiers.
//
// GetQuote returns (nil, nil) when the provider has no data for the
// symbol; an error is reserved for transport or provider failures. The
// distinction matters: no-data legs are logged and skipped, failures are
// counted as sync errors.
type QuoteProvider interface {
	GetQuote(ctx context.Context, optionSymbol string) (*QuoteSnapshot, error)
	GetMarketStatus(ctx context.Context) (*MarketStatus, error)
}

// ScanDescriptor identifies one saved scan at the scan provider.
type ScanDescriptor struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// ScanItem is one candidate trade row from a scan run. Shapes follow the
// scan provider's payload: strikes are listed low-slot first and the
// expiration list usually holds a single date.
type ScanItem struct {
	Underlying      string    `json:"underlying"`
	Name            string    `json:"name"`
	StockLast       float64   `json:"stock_last"`
	ExpirationDates []string  `json:"expiration_date"`
	Strikes         []float64 `json:"strike"`
	MaxProfit       float64   `json:"max_profit"`
}

// ScanResultSet is the payload of one scan execution.
type ScanResultSet struct {
	Items []ScanItem `json:"items"`
}

// ScanProvider supplies candidate trade opportunities.
type ScanProvider interface {
	ListScans(ctx context.Context) ([]ScanDescriptor, error)
	RunScan(ctx context.Context, id int64) (*ScanResultSet, error)
}
