package llm

import (
	"context"
	"time"
)

// RetryPolicy is a two-phase retry budget: a few quick retries, then a few
// slower ones.
type RetryPolicy struct {
	ShortRetries int
	ShortDelay   time.Duration
	LongRetries  int
	LongDelay    time.Duration
}

// DefaultRetryPolicy returns 2 retries at 1s followed by 2 retries at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ShortRetries: 2,
		ShortDelay:   time.Second,
		LongRetries:  2,
		LongDelay:    5 * time.Second,
	}
}

// MaxAttempts is the total number of calls the policy allows.
func (p RetryPolicy) MaxAttempts() int {
	return 1 + p.ShortRetries + p.LongRetries
}

// delayBefore returns the wait before retry number n (1-based).
func (p RetryPolicy) delayBefore(n int) time.Duration {
	if n <= p.ShortRetries {
		return p.ShortDelay
	}
	return p.LongDelay
}

// WithRetry runs op, retrying only errors for which IsRetryable is true.
// A non-retryable error is returned immediately. When the budget is spent the
// last error is returned. Cancelling ctx aborts the wait between attempts.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts(); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(policy.delayBefore(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			case <-timer.C:
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
