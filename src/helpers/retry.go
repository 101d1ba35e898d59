package helpers

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// BackoffFunc returns the pause after the failed attempt with the given 0-based index.
type BackoffFunc func(attempt int) time.Duration

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// -----------------------------------------------------------------------------

// LinearBackoff waits base, 2*base, 3*base, ... between attempts.
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if base <= 0 {
			return 0
		}
		return base * time.Duration(attempt+1)
	}
}

// -----------------------------------------------------------------------------

// SleepContext blocks for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

// RetryWithBackoff calls fn up to maxAttempts times (at least once). fn receives
// the 0-based attempt index. No pause follows the final attempt. It returns the
// number of attempts made and the last error, or nil on success. Cancellation
// of ctx during a pause stops the loop and returns ctx.Err().
func RetryWithBackoff(ctx context.Context, maxAttempts int, backoff BackoffFunc, sleep SleepFunc, fn func(attempt int) error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return attempt + 1, nil
		}

		if attempt == maxAttempts-1 {
			break
		}

		var delay time.Duration
		if backoff != nil {
			delay = backoff(attempt)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt + 1, err
		}
	}

	return maxAttempts, lastErr
}
