// Package poller repeats a status check on a fixed interval until the status is terminal.
package poller

import (
	"context"
	"time"
)

const DefaultInterval = 5 * time.Second

type CheckFunc[S any] func(ctx context.Context) (S, error)

type options[S any] struct {
	onError  func(attempt int, err error)
	onStatus func(attempt int, status S)
}

type Option[S any] func(*options[S])

// OnError is called for every failed check; polling continues afterwards.
func OnError[S any](fn func(attempt int, err error)) Option[S] {
	return func(o *options[S]) { o.onError = fn }
}

// OnStatus is called for every successful check, terminal or not.
func OnStatus[S any](fn func(attempt int, status S)) Option[S] {
	return func(o *options[S]) { o.onStatus = fn }
}

// Until performs one immediate check, then one per interval, and returns the
// first status for which isTerminal is true. Check errors never stop the loop.
// It returns ctx.Err() once ctx is done. A check already running when ctx is
// cancelled is not interrupted by the poller itself.
func Until[S any](ctx context.Context, interval time.Duration, check CheckFunc[S], isTerminal func(S) bool, opts ...Option[S]) (S, error) {
	var o options[S]
	for _, opt := range opts {
		opt(&o)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	var zero S
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		status, err := check(ctx)
		switch {
		case err != nil:
			if o.onError != nil {
				o.onError(attempt, err)
			}
		default:
			if o.onStatus != nil {
				o.onStatus(attempt, status)
			}
			if isTerminal(status) {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}
