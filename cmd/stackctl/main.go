// Package main is the entry point for the stackctl CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stackforge/stackctl/internal/shell/atomic"
	"github.com/stackforge/stackctl/internal/shell/composeres"
	"github.com/stackforge/stackctl/internal/shell/lock"
	"github.com/stackforge/stackctl/internal/shell/runtime"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess          = 0
	ExitConfigError      = 1
	ExitResolutionFailed = 2
	ExitLockBusy         = 3
	ExitCommandFailed    = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	// A signal mid-write must not leave staged temp files behind.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		atomic.CleanupPending()
		os.Exit(130)
	}()

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		return reportError(err)
	}
	return ExitSuccess
}

// reportError prints the failure and any operator-facing remediation
// hints, then maps the error to an exit code.
func reportError(err error) int {
	fmt.Fprintf(os.Stderr, "stackctl: %v\n", err)

	var detErr *runtime.DetectionError
	if errors.As(err, &detErr) {
		for _, hint := range detErr.Hints() {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
		return ExitResolutionFailed
	}

	var exhausted *composeres.ExhaustedError
	if errors.As(err, &exhausted) {
		for _, hint := range exhausted.Hints() {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
		return ExitResolutionFailed
	}

	if errors.Is(err, lock.ErrLockTimeout) {
		return ExitLockBusy
	}

	var cmdErr *commandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}

	return ExitConfigError
}

// commandError carries a nonzero exit from a driven compose command.
type commandError struct {
	Command  string
	ExitCode int
}

func (e *commandError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}
