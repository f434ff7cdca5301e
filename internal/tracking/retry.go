package tracking

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy is the single backoff schedule applied to best-effort sends:
// delays double from BaseDelay, are capped at MaxDelay, and the operation is
// abandoned after MaxAttempts tries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
	}
}

// CheckoutRetryPolicy gives the checkout step more patience, since it fires
// while the page is still loading the pixel.
func CheckoutRetryPolicy(base RetryPolicy) RetryPolicy {
	base.MaxAttempts = 10
	return base.normalized()
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

func (p RetryPolicy) backoff() retry.Backoff {
	p = p.normalized()
	b := retry.NewExponential(p.BaseDelay)
	b = retry.WithCappedDuration(p.MaxDelay, b)
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Delays lists the waits between attempts, in order.
func (p RetryPolicy) Delays() []time.Duration {
	b := p.backoff()
	var delays []time.Duration
	for {
		d, stop := b.Next()
		if stop {
			return delays
		}
		delays = append(delays, d)
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or ctx is done.
// Every error from fn is treated as retryable.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
