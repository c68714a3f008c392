// Package composeres resolves a working compose implementation for a
// detected engine by walking a verified fallback cascade.
package composeres

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/stackforge/stackctl/internal/core/resolve"
	"github.com/stackforge/stackctl/internal/shell/execx"
)

// =============================================================================
// Provider Interface
// =============================================================================

// Provider is one compose candidate in the cascade.
type Provider interface {
	// Kind identifies the candidate.
	Kind() resolve.CandidateKind
	// Available reports whether the candidate's binary is installed.
	// Unavailable candidates are skipped without counting as failures.
	Available() bool
	// Invocation is the command line a caller would use if this
	// candidate wins.
	Invocation() resolve.Invocation
	// Verify exercises the candidate against the synthetic document at
	// docPath. An installed-but-broken candidate returns a
	// *VerificationError.
	Verify(ctx context.Context, docPath string) error
}

// VerificationError carries the exact command and output of a failed
// verification so it can be logged and reported verbatim.
type VerificationError struct {
	Command  string
	ExitCode int
	TimedOut bool
	Output   string
	Err      error
}

func (e *VerificationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("verification timed out: %s", e.Command)
	}
	if e.Err != nil {
		return fmt.Sprintf("verification failed: %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("verification failed (exit %d): %s", e.ExitCode, e.Command)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Exec-backed Provider
// =============================================================================

// execProvider verifies a candidate by invoking its config/dry-run form
// under a deadline.
type execProvider struct {
	kind       resolve.CandidateKind
	invocation resolve.Invocation
	deadline   *execx.DeadlineRunner
	spec       execx.DeadlineSpec
	lookPath   func(string) (string, error)
}

func (p *execProvider) Kind() resolve.CandidateKind { return p.kind }

func (p *execProvider) Invocation() resolve.Invocation { return p.invocation }

func (p *execProvider) Available() bool {
	_, err := p.lookPath(p.invocation.Binary)
	return err == nil
}

// Verify asks the candidate to render the synthetic document. The config
// invocation parses and validates without touching the engine's workload
// state.
func (p *execProvider) Verify(ctx context.Context, docPath string) error {
	args := append(append([]string(nil), p.invocation.Args...), "-f", docPath, "config")
	cmd := execx.Command{
		Name: p.invocation.Binary,
		Args: args,
		Env:  p.invocation.Env,
	}

	result, err := p.deadline.Run(ctx, p.spec, cmd)
	if err != nil {
		return &VerificationError{Command: cmd.String(), Err: err}
	}
	if result.TimedOut {
		return &VerificationError{Command: cmd.String(), ExitCode: result.ExitCode, TimedOut: true, Output: result.Stderr}
	}
	if result.ExitCode != 0 {
		return &VerificationError{Command: cmd.String(), ExitCode: result.ExitCode, Output: result.Stderr}
	}
	if err := validateConfigOutput(ctx, result.Stdout); err != nil {
		return &VerificationError{Command: cmd.String(), Output: result.Stdout, Err: err}
	}
	return nil
}

// =============================================================================
// Provider Construction
// =============================================================================

func invocationFor(kind resolve.CandidateKind) resolve.Invocation {
	switch kind {
	case resolve.CandidateDockerPlugin:
		return resolve.Invocation{Binary: "docker", Args: []string{"compose"}}
	case resolve.CandidateDockerStandalone:
		return resolve.Invocation{Binary: "docker-compose"}
	case resolve.CandidatePodmanPlugin:
		return resolve.Invocation{Binary: "podman", Args: []string{"compose"}}
	case resolve.CandidatePodmanCompose:
		return resolve.Invocation{Binary: "podman-compose"}
	default:
		return resolve.Invocation{}
	}
}

// newProvider builds an exec-backed provider for a candidate. socket, when
// non-empty, is injected as DOCKER_HOST so a cross-engine candidate talks
// to the detected engine's control socket.
func newProvider(kind resolve.CandidateKind, socket string, deadline *execx.DeadlineRunner, spec execx.DeadlineSpec) *execProvider {
	invocation := invocationFor(kind)
	if socket != "" {
		invocation.Env = []string{"DOCKER_HOST=" + socket}
	}
	return &execProvider{
		kind:       kind,
		invocation: invocation,
		deadline:   deadline,
		spec:       spec,
		lookPath:   exec.LookPath,
	}
}
