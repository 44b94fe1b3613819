// Package retry wraps the quote provider with bounded retries and
// exponential backoff for transient failures.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"spreadtrack/internal/provider"
)

// Config tunes retry behavior.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig retries three times with backoff growing from one second.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// Client is a QuoteProvider that retries transient failures of the
// wrapped provider. Non-transient errors return immediately.
type Client struct {
	provider provider.QuoteProvider
	logger   logrus.FieldLogger
	config   Config
}

// Ensure Client implements QuoteProvider at compile time.
var _ provider.QuoteProvider = (*Client)(nil)

// NewClient wraps p with retry behavior.
func NewClient(p provider.QuoteProvider, logger logrus.FieldLogger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{provider: p, logger: logger, config: cfg}
}

// GetQuote retries the wrapped provider on transient failures.
func (c *Client) GetQuote(ctx context.Context, optionSymbol string) (*provider.QuoteSnapshot, error) {
	return doRetry(ctx, c, "quote "+optionSymbol, func() (*provider.QuoteSnapshot, error) {
		return c.provider.GetQuote(ctx, optionSymbol)
	})
}

// GetMarketStatus retries the wrapped provider on transient failures.
func (c *Client) GetMarketStatus(ctx context.Context) (*provider.MarketStatus, error) {
	return doRetry(ctx, c, "market clock", func() (*provider.MarketStatus, error) {
		return c.provider.GetMarketStatus(ctx)
	})
}

func doRetry[T any](ctx context.Context, c *Client, label string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("operation canceled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) || attempt == c.config.MaxRetries {
			break
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"operation": label,
			"attempt":   attempt + 1,
			"backoff":   backoff,
		}).Warn("transient provider failure, retrying")

		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-ctx.Done():
			return zero, fmt.Errorf("operation canceled during backoff: %w", ctx.Err())
		}
	}
	return zero, lastErr
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			c.logger.WithError(err).Warn("failed to generate backoff jitter")
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}
	return backoff
}

// IsTransient classifies an error as worth retrying: rate limits and
// server-side API errors by status code, plus common network failure
// strings.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"network",
		"dns",
		"tcp",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
