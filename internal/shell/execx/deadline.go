package execx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ExitTimeout is the conventional exit code reported when a command is
// terminated for exceeding its deadline.
const ExitTimeout = 124

// =============================================================================
// DeadlineSpec
// =============================================================================

// DeadlineSpec bounds a command by wall-clock time.
type DeadlineSpec struct {
	// Timeout is the budget before termination starts.
	Timeout time.Duration
	// Grace is the pause between SIGTERM and SIGKILL.
	Grace time.Duration
}

var ErrInvalidDeadline = errors.New("timeout must be positive and grace non-negative")

// Validate rejects non-positive timeouts and negative grace periods.
func (s DeadlineSpec) Validate() error {
	if s.Timeout <= 0 || s.Grace < 0 {
		return ErrInvalidDeadline
	}
	return nil
}

// =============================================================================
// DeadlineRunner
// =============================================================================

// DeadlineRunner executes a command under a wall-clock budget. The command
// is launched as the leader of a new process group so that on expiry the
// escalating SIGTERM/SIGKILL sequence reaches its children too, rather
// than orphaning them. Exactly one watchdog runs per call and is always
// resolved before the call returns.
type DeadlineRunner struct {
	logger *slog.Logger
}

// NewDeadlineRunner creates a DeadlineRunner.
func NewDeadlineRunner(logger *slog.Logger) *DeadlineRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadlineRunner{logger: logger}
}

// boundRunner adapts a DeadlineRunner plus a fixed spec to the Runner
// interface so it can sit under a RetryEngine.
type boundRunner struct {
	runner *DeadlineRunner
	spec   DeadlineSpec
}

func (b boundRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	return b.runner.Run(ctx, b.spec, cmd)
}

// AsRunner binds spec to the runner, yielding a Runner whose every call
// carries the same deadline.
func (r *DeadlineRunner) AsRunner(spec DeadlineSpec) Runner {
	return boundRunner{runner: r, spec: spec}
}

// Run executes cmd, terminating its whole process group if the budget
// expires. A timed-out command yields Result{ExitCode: ExitTimeout,
// TimedOut: true} and a nil error; errors signal a failure to launch.
func (r *DeadlineRunner) Run(ctx context.Context, spec DeadlineSpec, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, ErrEmptyCommand
	}
	if err := spec.Validate(); err != nil {
		return Result{}, err
	}

	c := exec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Result{}, &ExecError{Op: "RunWithDeadline", Command: cmd.String(), Message: "binary not found", Err: ErrBinaryNotFound}
		}
		return Result{}, &ExecError{Op: "RunWithDeadline", Command: cmd.String(), Message: err.Error(), Err: err}
	}
	pgid := c.Process.Pid

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	timer := time.NewTimer(spec.Timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false

	select {
	case waitErr = <-done:
	case <-timer.C:
		timedOut = true
		waitErr = r.terminate(pgid, spec.Grace, cmd, done)
	case <-ctx.Done():
		timedOut = true
		waitErr = r.terminate(pgid, spec.Grace, cmd, done)
	}

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
	}
	result.ExitCode = mapExitStatus(waitErr, timedOut)
	return result, nil
}

// terminate sends SIGTERM to the process group, waits out the grace
// period, then SIGKILLs the group if it is still alive. It always joins
// the child before returning.
func (r *DeadlineRunner) terminate(pgid int, grace time.Duration, cmd Command, done <-chan error) error {
	r.logger.Warn("deadline exceeded, terminating process group",
		"command", cmd.String(),
		"pgid", pgid,
	)
	_ = unix.Kill(-pgid, unix.SIGTERM)

	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	select {
	case err := <-done:
		return err
	case <-graceTimer.C:
		r.logger.Warn("grace period expired, killing process group",
			"command", cmd.String(),
			"pgid", pgid,
		)
		_ = unix.Kill(-pgid, unix.SIGKILL)
		return <-done
	}
}

// mapExitStatus folds the literal signal-exit arithmetic into the timeout
// convention: a child we terminated reports ExitTimeout regardless of
// which signal actually ended it.
func mapExitStatus(waitErr error, timedOut bool) int {
	if timedOut {
		return ExitTimeout
	}
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			return ExitTimeout
		}
		return code
	}
	return 1
}
