// Package retry implements bounded exponential backoff for transient
// failures at the external-service boundaries.
package retry

import (
	"context"
	"errors"
	"time"

	"zenith/internal/logger"
	"zenith/internal/pkg/errs"
)

// Do runs fn up to attempts times, doubling the delay between attempts
// starting at baseDelay and capping at maxDelay. A tripped breaker
// (errs.ErrCircuitOpen) is not retried; nothing will change within the
// backoff window.
func Do(ctx context.Context, attempts int, baseDelay, maxDelay time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	delay := baseDelay
	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn()
		if last == nil {
			return nil
		}
		if errors.Is(last, errs.ErrCircuitOpen) {
			return last
		}
		if i == attempts-1 {
			break
		}
		logger.Warnf("retry: attempt %d/%d failed: %v (next in %s)", i+1, attempts, last, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
	}
	return last
}
