// Package retry holds retry policy types and delay computation.
// This is pure logic - no I/O, no sleeping, no process execution.
package retry

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// =============================================================================
// Policy Types
// =============================================================================

// Strategy selects how inter-attempt delays grow.
type Strategy string

const (
	// StrategyExponential doubles the previous delay, capped at MaxDelay,
	// then applies a signed jitter.
	StrategyExponential Strategy = "exponential"
	// StrategyFullJitter draws the delay uniformly from [0, cap] where
	// cap = min(MaxDelay, BaseDelay * 2^attempt).
	StrategyFullJitter Strategy = "full-jitter"
)

// MinDelay is the floor applied to exponential delays so that negative
// jitter can never produce a non-positive sleep.
const MinDelay = 100 * time.Millisecond

// Policy describes how a command is retried. It is a value type and is
// never persisted.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay seeds the backoff sequence.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay before jitter is applied.
	MaxDelay time.Duration
	// JitterBound is the half-width of the signed jitter interval used by
	// the exponential strategy.
	JitterBound time.Duration
	// RetryableExitCodes restricts which nonzero exit codes are retried.
	// Empty means any nonzero exit code is retryable.
	RetryableExitCodes []int
	// Strategy selects the backoff curve. Defaults to exponential.
	Strategy Strategy
}

var (
	ErrInvalidAttempts = errors.New("max attempts must be at least 1")
	ErrInvalidDelay    = errors.New("delays must be non-negative")
)

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return ErrInvalidAttempts
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 || p.JitterBound < 0 {
		return ErrInvalidDelay
	}
	switch p.Strategy {
	case "", StrategyExponential, StrategyFullJitter:
	default:
		return fmt.Errorf("unknown retry strategy %q", p.Strategy)
	}
	return nil
}

// Retryable reports whether the given nonzero exit code should be retried
// under this policy. Exit code 0 is never retryable.
func (p Policy) Retryable(exitCode int) bool {
	if exitCode == 0 {
		return false
	}
	if len(p.RetryableExitCodes) == 0 {
		return true
	}
	for _, code := range p.RetryableExitCodes {
		if code == exitCode {
			return true
		}
	}
	return false
}

// =============================================================================
// Delay Computation
// =============================================================================

// NextDelay computes the sleep before the next attempt.
//
// prev is the delay used before the previous attempt (BaseDelay on the
// first failure); attempt is the 1-based number of the attempt that just
// failed. rng must be non-nil so tests can seed it.
func (p Policy) NextDelay(prev time.Duration, attempt int, rng *rand.Rand) time.Duration {
	switch p.Strategy {
	case StrategyFullJitter:
		return fullJitterDelay(p.BaseDelay, p.MaxDelay, attempt, rng)
	default:
		return exponentialDelay(prev, p.MaxDelay, p.JitterBound, rng)
	}
}

// exponentialDelay doubles prev, caps it at maxDelay, and shifts it by a
// uniform value in [-jitterBound, +jitterBound]. The result is floored so
// negative jitter cannot produce a non-positive sleep, but the floor never
// exceeds maxDelay: the computed delay always stays within
// [0, maxDelay+jitterBound].
func exponentialDelay(prev, maxDelay, jitterBound time.Duration, rng *rand.Rand) time.Duration {
	delay := prev * 2
	if delay > maxDelay {
		delay = maxDelay
	}
	if jitterBound > 0 {
		jitter := time.Duration(rng.Int63n(int64(2*jitterBound)+1)) - jitterBound
		delay += jitter
	}
	floor := MinDelay
	if maxDelay < floor {
		floor = maxDelay
	}
	if delay < floor {
		delay = floor
	}
	return delay
}

// fullJitterDelay draws uniformly from [0, cap] where cap doubles per
// attempt starting at base, never exceeding maxDelay. A zero base means a
// zero cap on every attempt, not an unbounded one.
func fullJitterDelay(base, maxDelay time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if base <= 0 || maxDelay <= 0 {
		return 0
	}
	cap := base
	for i := 0; i < attempt; i++ {
		doubled := cap * 2
		if doubled >= maxDelay || doubled < cap {
			// Capped, or the doubling overflowed.
			cap = maxDelay
			break
		}
		cap = doubled
	}
	if cap > maxDelay {
		cap = maxDelay
	}
	return time.Duration(rng.Int63n(int64(cap) + 1))
}
