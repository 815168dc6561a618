package holdpoint

import (
	"context"
	"time"

	"github.com/holdpoint/holdpoint/internal/backoff"
)

// RetryPolicy controls how WithRetry re-invokes a step function.
// MaxAttempts includes the first attempt:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
type RetryPolicy struct {
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Zero retries
	// immediately.
	InitialBackoff time.Duration

	// BackoffMultiplier grows the delay each attempt; <= 0 defaults
	// to 2.
	BackoffMultiplier float64

	// MaxBackoff caps the delay; <= 0 means no cap.
	MaxBackoff time.Duration
}

// WithRetry wraps fn so that transient failures are retried inside the
// step, invisible to the engine's state machine. The engine itself never
// retries a failed step; this is the sanctioned way for a step to absorb
// a flaky external call.
func WithRetry(fn StepFunc, policy RetryPolicy) StepFunc {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	strategy := &backoff.Exponential{
		Initial:    policy.InitialBackoff,
		Multiplier: policy.BackoffMultiplier,
		Max:        policy.MaxBackoff,
	}

	return func(ctx context.Context, state State) (Result, error) {
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			res, err := fn(ctx, state)
			if err == nil {
				return res, nil
			}
			lastErr = err

			if attempt == maxAttempts {
				break
			}
			delay := strategy.Delay(attempt)
			if delay <= 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		return Result{}, lastErr
	}
}
