package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"ar-io-observer/logging"
)

type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// Retry runs op until it succeeds, the policy is exhausted or ctx is done.
// ErrNotFound is never retried.
func Retry[T any](ctx context.Context, policy RetryPolicy, subsystem logging.SubSystem, name string, op func() (T, error)) (T, error) {
	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := op()
		if err != nil && errors.Is(err, ErrNotFound) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy.backOff(ctx), func(err error, wait time.Duration) {
		logging.Warn("Request failed, retrying", subsystem, "operation", name, "wait", wait, "error", err)
	})
}
