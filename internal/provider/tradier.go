package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"spreadtrack/internal/util"
)

// DefaultTimeout bounds every provider HTTP call. The quote provider
// imposes no deadline of its own, so a stalled call would otherwise pin a
// worker slot indefinitely.
const DefaultTimeout = 15 * time.Second

// clockCacheTTL limits how often the market clock is refreshed while
// stamping quotes with the closed-market flag.
const clockCacheTTL = 60 * time.Second

// APIError represents a provider API error with status code and body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// TradierClient implements QuoteProvider against a Tradier-style market
// data API.
type TradierClient struct {
	client  *http.Client
	apiKey  string
	baseURL string
	logger  logrus.FieldLogger

	clockMu      sync.Mutex
	clockFetched time.Time
	clockStatus  *MarketStatus
	clockFlight  singleflight.Group
}

// Ensure TradierClient implements QuoteProvider at compile time.
var _ QuoteProvider = (*TradierClient)(nil)

// NewTradierClient creates a quote provider client. sandbox selects the
// provider's paper endpoint; timeout <= 0 falls back to DefaultTimeout.
func NewTradierClient(apiKey string, sandbox bool, timeout time.Duration, logger logrus.FieldLogger) *TradierClient {
	baseURL := "https://api.tradier.com/v1"
	if sandbox {
		baseURL = "https://sandbox.tradier.com/v1"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TradierClient{
		client:  &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		baseURL: baseURL,
		logger:  logger,
	}
}

// WithBaseURL overrides the API endpoint, used by tests with an
// httptest server.
func (t *TradierClient) WithBaseURL(baseURL string) *TradierClient {
	t.baseURL = baseURL
	return t
}

type quoteGreeks struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
	Rho   *float64 `json:"rho"`
	BidIV *float64 `json:"bid_iv"`
	MidIV *float64 `json:"mid_iv"`
	AskIV *float64 `json:"ask_iv"`
}

type quotePayload struct {
	Symbol       string       `json:"symbol"`
	Bid          *float64     `json:"bid"`
	Ask          *float64     `json:"ask"`
	Last         *float64     `json:"last"`
	BidSize      int          `json:"bidsize"`
	AskSize      int          `json:"asksize"`
	Volume       int64        `json:"volume"`
	OpenInterest int64        `json:"open_interest"`
	Greeks       *quoteGreeks `json:"greeks"`
}

type quotesResponse struct {
	Quotes struct {
		Quote *quotePayload `json:"quote"`
	} `json:"quotes"`
}

type clockResponse struct {
	Clock struct {
		State string `json:"state"`
	} `json:"clock"`
}

// GetQuote fetches the current quote for one option symbol. A payload
// without the symbol yields (nil, nil).
func (t *TradierClient) GetQuote(ctx context.Context, optionSymbol string) (*QuoteSnapshot, error) {
	params := url.Values{}
	params.Set("symbols", optionSymbol)
	params.Set("greeks", "true")

	var resp quotesResponse
	if err := t.makeRequest(ctx, t.baseURL+"/markets/quotes?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("quote for %s: %w", optionSymbol, err)
	}
	q := resp.Quotes.Quote
	if q == nil {
		return nil, nil
	}

	snap := &QuoteSnapshot{
		Symbol:       q.Symbol,
		Bid:          q.Bid,
		Ask:          q.Ask,
		Last:         q.Last,
		BidSize:      q.BidSize,
		AskSize:      q.AskSize,
		Volume:       q.Volume,
		OpenInterest: q.OpenInterest,
	}
	// The quotes endpoint carries no mark; derive it from the spread and
	// round to the penny.
	if q.Bid != nil && q.Ask != nil {
		mark := util.RoundToTick((*q.Bid+*q.Ask)/2, 0.01)
		snap.Mark = &mark
	}
	if g := q.Greeks; g != nil {
		snap.Delta = g.Delta
		snap.Gamma = g.Gamma
		snap.Theta = g.Theta
		snap.Vega = g.Vega
		snap.Rho = g.Rho
		snap.BidIV = g.BidIV
		snap.MidIV = g.MidIV
		snap.AskIV = g.AskIV
	}

	status, err := t.cachedMarketStatus(ctx)
	if err != nil {
		// A clock failure only costs the closed-market flag, not the quote.
		t.logger.WithError(err).Warn("market clock unavailable, leaving quote unflagged")
	} else {
		snap.MarketClosed = !status.Open
	}
	return snap, nil
}

// GetMarketStatus reports the current market session state.
func (t *TradierClient) GetMarketStatus(ctx context.Context) (*MarketStatus, error) {
	var resp clockResponse
	if err := t.makeRequest(ctx, t.baseURL+"/markets/clock", &resp); err != nil {
		return nil, fmt.Errorf("market clock: %w", err)
	}
	return &MarketStatus{
		State: resp.Clock.State,
		Open:  resp.Clock.State == "open",
	}, nil
}

// cachedMarketStatus serves the clock from cache, collapsing concurrent
// cold-cache callers onto one upstream fetch. The mutex only guards the
// cache fields; it is never held across the network call, so leg fan-out
// stays parallel.
func (t *TradierClient) cachedMarketStatus(ctx context.Context) (*MarketStatus, error) {
	t.clockMu.Lock()
	if t.clockStatus != nil && time.Since(t.clockFetched) < clockCacheTTL {
		status := t.clockStatus
		t.clockMu.Unlock()
		return status, nil
	}
	t.clockMu.Unlock()

	v, err, _ := t.clockFlight.Do("clock", func() (interface{}, error) {
		status, err := t.GetMarketStatus(ctx)
		if err != nil {
			return nil, err
		}
		t.clockMu.Lock()
		t.clockStatus = status
		t.clockFetched = time.Now()
		t.clockMu.Unlock()
		return status, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*MarketStatus), nil
}

func (t *TradierClient) makeRequest(ctx context.Context, endpoint string, response interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+t.apiKey)
	req.Header.Add("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			t.logger.WithError(cerr).Warn("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, rerr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if rerr != nil {
			return &APIError{Status: resp.StatusCode, Body: "failed to read error body"}
		}
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(response); err != nil && err != io.EOF {
		return err
	}
	return nil
}
