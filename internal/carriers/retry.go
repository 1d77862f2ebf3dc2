package carriers

import (
	"context"
	"time"
)

// BackoffFunc returns the delay to sleep after the given failed attempt
// (1-based).
type BackoffFunc func(attempt int) time.Duration

// FixedBackoff sleeps the same duration between every attempt.
func FixedBackoff(delay time.Duration) BackoffFunc {
	return func(int) time.Duration { return delay }
}

// LinearBackoff sleeps delay, 2*delay, 3*delay, ...
func LinearBackoff(delay time.Duration) BackoffFunc {
	return func(attempt int) time.Duration { return time.Duration(attempt) * delay }
}

// ExponentialBackoff doubles the delay each attempt, capped at max.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		delay := base << (attempt - 1)
		if delay > max {
			return max
		}
		return delay
	}
}

// RetryPolicy is a visible, testable retry budget. Retries are an explicit
// bounded loop, never recursion.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffFunc
}

// withRetry runs fn up to policy.MaxAttempts times, sleeping per the backoff
// between failures. It returns nil on the first success, the context error if
// cancelled mid-backoff, and otherwise the last attempt's error.
func withRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Backoff(attempt)):
		}
	}
	return err
}
