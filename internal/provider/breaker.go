package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// CircuitBreakerProvider wraps a QuoteProvider so that a failing provider
// trips open instead of being hammered by every leg of every trade.
type CircuitBreakerProvider struct {
	provider QuoteProvider
	breaker  *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerProvider implements QuoteProvider at compile time.
var _ QuoteProvider = (*CircuitBreakerProvider)(nil)

// BreakerSettings configures circuit breaker behavior.
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerProvider wraps provider with sensible defaults.
func NewCircuitBreakerProvider(p QuoteProvider, logger logrus.FieldLogger) *CircuitBreakerProvider {
	return NewCircuitBreakerProviderWithSettings(p, logger, BreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	})
}

// NewCircuitBreakerProviderWithSettings wraps provider with custom settings.
func NewCircuitBreakerProviderWithSettings(p QuoteProvider, logger logrus.FieldLogger, settings BreakerSettings) *CircuitBreakerProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	gbSettings := gobreaker.Settings{
		Name:        "QuoteProviderCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}
	return &CircuitBreakerProvider{
		provider: p,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// execBreaker is a generic helper for circuit breaker wrapper methods.
func execBreaker[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// GetQuote wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) GetQuote(ctx context.Context, optionSymbol string) (*QuoteSnapshot, error) {
	return execBreaker(c.breaker, func() (*QuoteSnapshot, error) { return c.provider.GetQuote(ctx, optionSymbol) })
}

// GetMarketStatus wraps the underlying provider call with the circuit breaker.
func (c *CircuitBreakerProvider) GetMarketStatus(ctx context.Context) (*MarketStatus, error) {
	return execBreaker(c.breaker, func() (*MarketStatus, error) { return c.provider.GetMarketStatus(ctx) })
}
