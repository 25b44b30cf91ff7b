package task

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryRunner wraps another Runner with exponential-backoff retries. The
// pipeline executor itself never retries; resilience wraps the collaborator.
type RetryRunner struct {
	inner      Runner
	maxRetries uint64
	maxElapsed time.Duration
}

// RetryOption customizes a RetryRunner.
type RetryOption func(*RetryRunner)

// WithMaxRetries caps the number of retry attempts after the first failure.
func WithMaxRetries(n uint64) RetryOption {
	return func(r *RetryRunner) {
		r.maxRetries = n
	}
}

// WithMaxElapsed bounds the total time spent across attempts. Zero disables
// the bound.
func WithMaxElapsed(d time.Duration) RetryOption {
	return func(r *RetryRunner) {
		r.maxElapsed = d
	}
}

// NewRetryRunner decorates inner with retry semantics.
func NewRetryRunner(inner Runner, opts ...RetryOption) *RetryRunner {
	r := &RetryRunner{inner: inner, maxRetries: 3}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run invokes the wrapped runner, retrying transient failures. Schema
// violations are permanent: retrying cannot conjure a missing field, so they
// abort the retry loop immediately.
func (r *RetryRunner) Run(ctx context.Context, def Definition, input map[string]any) (Result, error) {
	var result Result
	operation := func() error {
		out, err := r.inner.Run(ctx, def, input)
		if err != nil {
			var violation *SchemaViolationError
			if errors.As(err, &violation) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = out
		return nil
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = r.maxElapsed
	b := backoff.WithMaxRetries(policy, r.maxRetries)
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return Result{}, err
	}
	return result, nil
}
