// Package execx executes external commands with retry and deadline
// semantics. Every probe and verification in the resolution engine goes
// through this package.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrBinaryNotFound = errors.New("binary not found")
)

// ExecError wraps command execution failures with the command that failed.
type ExecError struct {
	Op      string
	Command string
	Message string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("%s %q: %s", e.Op, e.Command, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Command and Result
// =============================================================================

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	// Env is appended to the inherited environment.
	Env []string
	Dir string
}

// String renders the command for logs and diagnostics.
func (c Command) String() string {
	out := c.Name
	for _, a := range c.Args {
		out += " " + a
	}
	return out
}

// Result captures the outcome of one invocation.
type Result struct {
	ExitCode int
	TimedOut bool
	Stdout   string
	Stderr   string
}

// Runner executes a command once. Implementations must translate a
// nonzero exit into Result.ExitCode, not into an error; errors are
// reserved for failures to launch at all.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// =============================================================================
// ExecRunner
// =============================================================================

// ExecRunner runs commands via os/exec, capturing stdout and stderr.
type ExecRunner struct{}

// Run executes cmd and waits for it to finish. Cancellation of ctx kills
// the process.
func (ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Name == "" {
		return Result{}, ErrEmptyCommand
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode < 0 {
			// Killed by a signal (typically context cancellation).
			result.ExitCode = ExitTimeout
			result.TimedOut = ctx.Err() != nil
		}
		return result, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return result, &ExecError{Op: "Run", Command: cmd.String(), Message: "binary not found", Err: ErrBinaryNotFound}
	}
	return result, &ExecError{Op: "Run", Command: cmd.String(), Message: err.Error(), Err: err}
}
