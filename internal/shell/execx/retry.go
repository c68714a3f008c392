package execx

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/stackforge/stackctl/internal/core/retry"
)

// =============================================================================
// RetryEngine
// =============================================================================

// RetryEngine runs a command repeatedly until it succeeds, the policy
// rejects its exit code, or the attempt budget is exhausted. It has no
// cancellation of its own beyond the caller's context, which bounds the
// whole loop rather than a single attempt.
type RetryEngine struct {
	runner Runner
	logger *slog.Logger
	rng    *rand.Rand
	sleep  func(context.Context, time.Duration) error
}

// NewRetryEngine creates a RetryEngine executing through runner.
func NewRetryEngine(runner Runner, logger *slog.Logger) *RetryEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryEngine{
		runner: runner,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes cmd under the given policy. The returned result is that of
// the last attempt. An empty command is a caller programming error and
// fails before consuming an attempt.
func (e *RetryEngine) Run(ctx context.Context, policy retry.Policy, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, ErrEmptyCommand
	}
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}

	delay := policy.BaseDelay
	for attempt := 1; ; attempt++ {
		result, err := e.runner.Run(ctx, cmd)
		if err != nil {
			return result, err
		}
		if result.ExitCode == 0 {
			return result, nil
		}

		if !policy.Retryable(result.ExitCode) {
			e.logger.Warn("exit code not retryable, giving up",
				"command", cmd.String(),
				"exit_code", result.ExitCode,
				"attempt", attempt,
			)
			return result, nil
		}
		if attempt >= policy.MaxAttempts {
			e.logger.Warn("retry budget exhausted",
				"command", cmd.String(),
				"exit_code", result.ExitCode,
				"attempts", attempt,
			)
			return result, nil
		}

		delay = policy.NextDelay(delay, attempt, e.rng)
		e.logger.Warn("command failed, retrying",
			"command", cmd.String(),
			"exit_code", result.ExitCode,
			"attempt", attempt,
			"next_delay", delay,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return result, err
		}
	}
}
