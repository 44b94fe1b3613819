package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// newTestClientWithServer creates a TradierClient pointed at a mock server.
// Caller must close the returned server.
func newTestClientWithServer(handler http.HandlerFunc) (*TradierClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewTradierClient("test-key", true, 0, testLogger()).WithBaseURL(server.URL)
	return client, server
}

func TestGetQuoteParsesFullPayload(t *testing.T) {
	client, server := newTestClientWithServer(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/markets/quotes"):
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("unexpected auth header %q", got)
			}
			if got := r.URL.Query().Get("greeks"); got != "true" {
				t.Errorf("greeks param = %q, want true", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"quotes":{"quote":{
				"symbol":"SPY240419P00410000",
				"bid":0.31,"ask":0.34,"last":0.32,
				"bidsize":12,"asksize":40,
				"volume":1543,"open_interest":8211,
				"greeks":{"delta":-0.08,"gamma":0.01,"theta":-0.02,"vega":0.05,"rho":-0.003,
					"bid_iv":0.21,"mid_iv":0.22,"ask_iv":0.23}
			}}}`))
		case strings.HasPrefix(r.URL.Path, "/markets/clock"):
			_, _ = w.Write([]byte(`{"clock":{"state":"open"}}`))
		default:
			http.NotFound(w, r)
		}
	})
	defer server.Close()

	snap, err := client.GetQuote(context.Background(), "SPY240419P00410000")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a quote, got nil")
	}
	if snap.Symbol != "SPY240419P00410000" {
		t.Errorf("symbol = %q", snap.Symbol)
	}
	if snap.Bid == nil || *snap.Bid != 0.31 {
		t.Errorf("bid = %v", snap.Bid)
	}
	if snap.Mark == nil || *snap.Mark != 0.33 {
		t.Errorf("mark = %v, want 0.33 rounded from spread midpoint", snap.Mark)
	}
	if snap.Delta == nil || *snap.Delta != -0.08 {
		t.Errorf("delta = %v", snap.Delta)
	}
	if snap.MidIV == nil || *snap.MidIV != 0.22 {
		t.Errorf("mid IV = %v", snap.MidIV)
	}
	if snap.MarketClosed {
		t.Error("market reported open, MarketClosed should be false")
	}
}

func TestGetQuoteNoDataReturnsNilNil(t *testing.T) {
	client, server := newTestClientWithServer(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/markets/quotes") {
			_, _ = w.Write([]byte(`{"quotes":{"quote":null}}`))
			return
		}
		_, _ = w.Write([]byte(`{"clock":{"state":"open"}}`))
	})
	defer server.Close()

	snap, err := client.GetQuote(context.Background(), "SPY240419P00999000")
	if err != nil {
		t.Fatalf("no-data quote should not error, got %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot for unknown symbol, got %+v", snap)
	}
}

func TestGetQuoteMarketClosedFlag(t *testing.T) {
	client, server := newTestClientWithServer(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/markets/quotes") {
			_, _ = w.Write([]byte(`{"quotes":{"quote":{"symbol":"SPY240419P00410000","bid":0.30,"ask":0.32}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"clock":{"state":"closed"}}`))
	})
	defer server.Close()

	snap, err := client.GetQuote(context.Background(), "SPY240419P00410000")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if !snap.MarketClosed {
		t.Error("clock reported closed, MarketClosed should be true")
	}
}

func TestGetQuoteClockFailureKeepsQuote(t *testing.T) {
	client, server := newTestClientWithServer(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/markets/quotes") {
			_, _ = w.Write([]byte(`{"quotes":{"quote":{"symbol":"SPY240419P00410000","last":0.32}}}`))
			return
		}
		http.Error(w, "clock down", http.StatusServiceUnavailable)
	})
	defer server.Close()

	snap, err := client.GetQuote(context.Background(), "SPY240419P00410000")
	if err != nil {
		t.Fatalf("clock failure must not fail the quote: %v", err)
	}
	if snap == nil || snap.Last == nil || *snap.Last != 0.32 {
		t.Errorf("quote lost on clock failure: %+v", snap)
	}
	if snap.MarketClosed {
		t.Error("MarketClosed should default false when the clock is unavailable")
	}
	if snap.Mark != nil {
		t.Errorf("mark should be nil without bid and ask, got %v", *snap.Mark)
	}
}

func TestGetQuoteClockCached(t *testing.T) {
	var clockCalls atomic.Int32
	client, server := newTestClientWithServer(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/markets/clock") {
			clockCalls.Add(1)
			_, _ = w.Write([]byte(`{"clock":{"state":"open"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"quotes":{"quote":{"symbol":"SPY240419P00410000","last":0.32}}}`))
	})
	defer server.Close()

	for i := 0; i < 4; i++ {
		if _, err := client.GetQuote(context.Background(), "SPY240419P00410000"); err != nil {
			t.Fatalf("GetQuote %d failed: %v", i, err)
		}
	}
	if got := clockCalls.Load(); got != 1 {
		t.Errorf("clock fetched %d times across 4 quotes, want 1", got)
	}
}

func TestGetQuoteClockFetchSharedAcrossConcurrentLegs(t *testing.T) {
	const legs = 4
	var clockCalls, quoteCalls atomic.Int32
	release := make(chan struct{})
	client, server := newTestClientWithServer(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/markets/clock") {
			clockCalls.Add(1)
			<-release
			http.Error(w, "clock down", http.StatusServiceUnavailable)
			return
		}
		quoteCalls.Add(1)
		_, _ = w.Write([]byte(`{"quotes":{"quote":{"symbol":"SPY240419P00410000","last":0.32}}}`))
	})
	defer server.Close()

	var wg sync.WaitGroup
	for i := 0; i < legs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.GetQuote(context.Background(), "SPY240419P00410000"); err != nil {
				t.Errorf("GetQuote failed: %v", err)
			}
		}()
	}

	// Hold the clock response until every leg has fetched its quote and
	// had a chance to join the in-flight clock lookup.
	for quoteCalls.Load() < legs {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// Even with the lookup failing, one cold cache costs one upstream
	// call, not one per leg.
	if got := clockCalls.Load(); got != 1 {
		t.Errorf("clock fetched %d times for one cold cache, want 1", got)
	}
}

func TestGetQuoteAPIError(t *testing.T) {
	client, server := newTestClientWithServer(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.GetQuote(context.Background(), "SPY240419P00410000")
	if err == nil {
		t.Fatal("expected error on HTTP 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestGetMarketStatus(t *testing.T) {
	client, server := newTestClientWithServer(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"clock":{"state":"premarket"}}`))
	})
	defer server.Close()

	status, err := client.GetMarketStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMarketStatus failed: %v", err)
	}
	if status.State != "premarket" {
		t.Errorf("state = %q", status.State)
	}
	if status.Open {
		t.Error("premarket should not report Open")
	}
}

func TestScanClientListAndRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scans":
			_, _ = w.Write([]byte(`{"scans":[{"id":7,"label":"weekly bull puts"}]}`))
		case "/scans/7/run":
			_, _ = w.Write([]byte(`{"items":[{
				"underlying":"SPY","name":"SPY Apr19 bull put",
				"stock_last":445.12,
				"expiration_date":["2024-04-19"],
				"strike":[410,415],
				"max_profit":1.25
			}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewScanClient("scan-token", server.URL, 0, testLogger())

	scans, err := client.ListScans(context.Background())
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if len(scans) != 1 || scans[0].ID != 7 || scans[0].Label != "weekly bull puts" {
		t.Errorf("unexpected scans: %+v", scans)
	}

	result, err := client.RunScan(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(result.Items))
	}
	item := result.Items[0]
	if item.Underlying != "SPY" || item.MaxProfit != 1.25 {
		t.Errorf("unexpected item: %+v", item)
	}
	if len(item.Strikes) != 2 || item.Strikes[0] != 410 || item.Strikes[1] != 415 {
		t.Errorf("unexpected strikes: %v", item.Strikes)
	}
}
