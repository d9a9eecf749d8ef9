package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// backoff retries calls with exponentially growing delays. When a limiter
// is set every attempt waits for it first.
type backoff struct {
	maxRetries   int
	initialDelay time.Duration
	factor       float64
	limiter      *rate.Limiter
}

// newBackoff fills zero values with 2s and factor 2. A positive rps
// installs a limiter with a burst of one.
func newBackoff(maxRetries int, initialDelay time.Duration, factor, rps float64) backoff {
	b := backoff{maxRetries: max(maxRetries, 0), initialDelay: initialDelay, factor: factor}
	if b.initialDelay <= 0 {
		b.initialDelay = 2 * time.Second
	}
	if b.factor <= 0 {
		b.factor = 2.0
	}
	if rps > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return b
}

func (b backoff) do(ctx context.Context, retryable func(error) bool, fn func() error) error {
	delay := b.initialDelay
	var lastErr error

	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}

		if attempt < b.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * b.factor)
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
