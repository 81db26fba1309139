package db

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultRetryBase   = 50 * time.Millisecond
	retryJitterPercent = 20
)

// Retrier re-runs a whole logical operation when it fails with
// RESOURCE_BUSY. Any other error is returned unchanged on the first attempt.
type Retrier struct {
	max     uint64
	base    time.Duration
	onRetry func(err error)
}

// NewRetrier builds a retrier with bounded exponential backoff. maxRetries of
// zero disables retrying.
func NewRetrier(maxRetries int, base time.Duration) Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if base <= 0 {
		base = defaultRetryBase
	}
	return Retrier{max: uint64(maxRetries), base: base}
}

// NoRetry runs operations exactly once. Services bound to an enclosing
// transaction use it.
func NoRetry() Retrier {
	return Retrier{}
}

// OnRetry registers a hook invoked before each retry attempt.
func (r Retrier) OnRetry(fn func(err error)) Retrier {
	r.onRetry = fn
	return r
}

// Do runs fn, retrying busy failures with backoff.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.max == 0 {
		return fn(ctx)
	}

	backoff := retry.NewExponential(r.base)
	backoff = retry.WithJitterPercent(retryJitterPercent, backoff)
	backoff = retry.WithMaxRetries(r.max, backoff)

	var lastErr error
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if lastErr != nil && r.onRetry != nil {
			r.onRetry(lastErr)
		}
		err := fn(ctx)
		lastErr = err
		if IsBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
