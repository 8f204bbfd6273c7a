// Package retry provides a reusable retry policy for remote calls:
// bounded attempts, exponential backoff, and a predicate deciding which
// errors are worth retrying.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Policy holds the parameters for the retry strategy.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether an error is transient. A nil predicate
	// retries every error.
	Retryable func(error) bool
	Logger    *zap.Logger
}

// Do executes fn with exponential back-off, stopping early on success, on a
// non-retryable error, or when ctx is done. The last error is returned
// wrapped with the operation name and attempt count.
func (p Policy) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	delay := p.BaseDelay
	if delay == 0 {
		delay = time.Second
	}
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		if p.Logger != nil {
			p.Logger.Warn("Retrying operation",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
