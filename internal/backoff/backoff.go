// Package backoff provides retry delay strategies. Strategies are
// stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential doubles (by Multiplier) the delay each attempt, capped at
// Max. Jitter, when in (0, 1], randomizes each delay downward by up to
// that fraction to avoid thundering herds.
type Exponential struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
	Jitter     float64
}

// NewExponential creates an exponential backoff strategy with the common
// defaults: multiplier 2, no jitter.
func NewExponential(initial, max time.Duration) *Exponential {
	return &Exponential{Initial: initial, Multiplier: 2, Max: max}
}

func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := e.Multiplier
	if mult <= 0 {
		mult = 2
	}

	d := float64(e.Initial) * math.Pow(mult, float64(attempt-1))
	if e.Max > 0 && d > float64(e.Max) {
		d = float64(e.Max)
	}
	if e.Jitter > 0 {
		frac := e.Jitter
		if frac > 1 {
			frac = 1
		}
		d -= d * frac * rand.Float64()
	}
	return time.Duration(d)
}
