package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xavierca1/leadforge/internal/entity"
)

// RetryPolicy bounds every adapter call: each attempt runs under Timeout and
// transient failures are retried up to MaxRetries times with exponential
// backoff. Permanent adapter errors stop immediately.
type RetryPolicy struct {
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
}

func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func() error {
		callCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err != nil && entity.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	exp.MaxElapsedTime = 0

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
	return backoff.Retry(attempt, b)
}
