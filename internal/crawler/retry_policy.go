package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy bounds how many times a fetch is attempted and how long to wait
// between attempts. The zero value means a single attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// SingleAttempt is the primary fetch mode.
func SingleAttempt() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// BestEffort mirrors the alternate fetch mode: two attempts one second apart.
func BestEffort() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Backoff: time.Second}
}

// Attempts returns the effective attempt budget (at least one).
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. Every attempt's error is retained and joined into
// the returned error. stop is consulted before each retry.
func (p RetryPolicy) Do(ctx context.Context, stop func() bool, op func(attempt int) error) error {
	var errs []error
	attempts := p.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(attempt)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
		if attempt == attempts || !Retryable(err) {
			break
		}
		if stop != nil && stop() {
			errs = append(errs, ErrCanceled)
			break
		}
		if err := sleep(ctx, p.Backoff); err != nil {
			errs = append(errs, err)
			break
		}
	}
	if len(errs) == 1 {
		return errors.Unwrap(errs[0])
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry backoff: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
