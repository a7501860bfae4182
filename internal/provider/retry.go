package provider

import (
	"context"
	"time"
)

// RetryPolicy bounds repeated tool invocations. The delay between attempts is
// fixed unless Backoff is set, in which case it computes the wait after the
// given 1-based attempt number.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     func(attempt int, base time.Duration) time.Duration
}

// DefaultRetryPolicy mirrors the provider defaults: two attempts, one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Delay: time.Second}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// wait suspends between attempts. It returns early with ctx.Err() when the
// context is cancelled, so a retry delay never outlives the caller.
func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	d := p.Delay
	if p.Backoff != nil {
		d = p.Backoff(attempt, p.Delay)
	}
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
