package common

import (
	"context"
	"fmt"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepCtx is the real-clock SleepFunc.
func SleepCtx(ctx context.Context, d time.Duration) error {
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

// LinearBackoff waits step*attempt after the attempt-th failure (1s, 2s, 3s for step=1s).
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return step * time.Duration(attempt) }
}

// ExponentialBackoff waits base, 2*base, 4*base ...
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return base << (attempt - 1) }
}

// Retrier runs an operation a bounded number of times.
type Retrier struct {
	Attempts  int
	Backoff   func(attempt int) time.Duration
	BackoffOn func(attempt int, err error) time.Duration // takes precedence over Backoff
	Sleep     SleepFunc
	Retryable func(error) bool // nil retries every error
}

// Do calls fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned unwrapped so callers can still match sentinels.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepCtx
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if r.Retryable != nil && !r.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		var wait time.Duration
		switch {
		case r.BackoffOn != nil:
			wait = r.BackoffOn(attempt, lastErr)
		case r.Backoff != nil:
			wait = r.Backoff(attempt)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry interrupted after attempt %d: %w", attempt, lastErr)
		}
	}
	return lastErr
}
