// Package retry consolidates the adapter's bounded retry logic. Every external
// call site (IPFS gateway, pinning service, jury endpoint) goes through Do so
// retry behavior and logging stay uniform.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialInterval seeds the exponential backoff between attempts.
	InitialInterval time.Duration
	// MaxInterval caps the backoff growth.
	MaxInterval time.Duration
}

// DefaultPolicy is a conservative three-attempt policy.
var DefaultPolicy = Policy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
}

// Do runs fn until it succeeds, the policy is exhausted, or the context is
// done. Failed attempts are logged with the operation name so retry storms
// are visible in the logs.
func Do(ctx context.Context, logger *zap.Logger, op string, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultPolicy.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultPolicy.MaxInterval
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0 // attempts are the bound, not wall time

	var policy backoff.BackOff = backoff.WithContext(exp, ctx)
	policy = backoff.WithMaxRetries(policy, uint64(p.MaxAttempts-1))

	attempt := 0
	notify := func(err error, wait time.Duration) {
		logger.Warn("operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	return backoff.RetryNotify(func() error {
		attempt++
		return fn(ctx)
	}, policy, notify)
}

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
