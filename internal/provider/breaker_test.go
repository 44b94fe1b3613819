package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubProvider is a scripted QuoteProvider for breaker tests.
type stubProvider struct {
	err   error
	quote *QuoteSnapshot
	calls int
}

func (s *stubProvider) GetQuote(_ context.Context, _ string) (*QuoteSnapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func (s *stubProvider) GetMarketStatus(_ context.Context) (*MarketStatus, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &MarketStatus{State: "open", Open: true}, nil
}

func TestBreakerPassesThrough(t *testing.T) {
	last := 0.32
	stub := &stubProvider{quote: &QuoteSnapshot{Symbol: "SPY240419P00410000", Last: &last}}
	cb := NewCircuitBreakerProvider(stub, testLogger())

	snap, err := cb.GetQuote(context.Background(), "SPY240419P00410000")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if snap == nil || snap.Symbol != "SPY240419P00410000" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	status, err := cb.GetMarketStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMarketStatus failed: %v", err)
	}
	if !status.Open {
		t.Error("expected open market from stub")
	}
}

func TestBreakerPreservesNoDataResult(t *testing.T) {
	stub := &stubProvider{}
	cb := NewCircuitBreakerProvider(stub, testLogger())

	snap, err := cb.GetQuote(context.Background(), "SPY240419P00999000")
	if err != nil {
		t.Fatalf("no-data quote should not error through the breaker: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %+v", snap)
	}
}

func TestBreakerTripsOpenAfterFailures(t *testing.T) {
	stub := &stubProvider{err: errors.New("provider down")}
	cb := NewCircuitBreakerProviderWithSettings(stub, testLogger(), BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	})

	for i := 0; i < 5; i++ {
		_, _ = cb.GetQuote(context.Background(), "SPY240419P00410000")
	}
	if stub.calls >= 5 {
		t.Errorf("breaker never opened, provider called %d times", stub.calls)
	}

	_, err := cb.GetQuote(context.Background(), "SPY240419P00410000")
	if err == nil {
		t.Fatal("expected open-circuit error")
	}
}
