package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps a single back-off wait. Zero means uncapped.
	MaxDelay time.Duration
	Logger   *Logger

	// Retryable decides whether a failed attempt is worth repeating.
	// Nil retries every error.
	Retryable func(error) bool
	// Sleep waits between attempts. Nil uses SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff returns the wait after the given failed attempt (1-based):
// BaseDelay doubled per attempt, capped at MaxDelay.
func (r *RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := r.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}

// Do executes fn with exponential back-off retry logic. Errors rejected by
// Retryable and context cancellation end the loop immediately.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func() error) error {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.Retryable != nil && !r.Retryable(lastErr) {
			return fmt.Errorf("%s failed: %w", operationName, lastErr)
		}

		if attempt < maxAttempts {
			delay := r.Backoff(attempt)
			r.warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, maxAttempts, lastErr, delay)
			if err := r.Pause(ctx, delay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

// Pause waits d using Sleep, or SleepContext when Sleep is nil.
func (r *RetryConfig) Pause(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (r *RetryConfig) warn(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Warn(format, args...)
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
