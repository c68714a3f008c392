package composeres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stackforge/stackctl/internal/core/resolve"
	"github.com/stackforge/stackctl/internal/shell/execx"
)

// =============================================================================
// Attempt Reporting
// =============================================================================

// Attempt records one cascade step for the operator-facing failure report.
type Attempt struct {
	Kind    resolve.CandidateKind
	Command string
	Outcome string
}

var remediationHints = map[resolve.CandidateKind]string{
	resolve.CandidateDockerPlugin:     "install the compose plugin: apt install docker-compose-plugin (or dnf install docker-compose-plugin)",
	resolve.CandidateDockerStandalone: "install standalone docker-compose from https://github.com/docker/compose/releases and place it on PATH",
	resolve.CandidatePodmanPlugin:     "install a compose provider for podman: dnf install podman-compose",
	resolve.CandidatePodmanCompose:    "install podman-compose: pip3 install podman-compose",
}

// ExhaustedError means every candidate in the cascade failed or was
// unavailable. The resolution engine never silently falls back to an
// unverified choice; this error is terminal.
type ExhaustedError struct {
	Engine   resolve.Engine
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no working compose implementation for %s", e.Engine)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %s", a.Kind, a.Outcome)
	}
	return b.String()
}

// Hints returns one remediation command per attempted candidate.
func (e *ExhaustedError) Hints() []string {
	hints := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		hints = append(hints, fmt.Sprintf("%s: %s", a.Kind, remediationHints[a.Kind]))
	}
	return hints
}

// =============================================================================
// Resolver
// =============================================================================

// Resolver walks the compose candidate cascade for an engine, verifying
// each candidate against a synthetic document before trusting it.
type Resolver struct {
	deadline    *execx.DeadlineRunner
	verifySpec  execx.DeadlineSpec
	scratchRoot string
	// socketFor returns the engine's control socket URL for cross-engine
	// candidates, or empty when unknown.
	socketFor func(ctx context.Context, engine resolve.Engine) string
	// installer is nil unless the operator opted in to remediation.
	installer *Installer
	// OnRemediate, when set, is invoked after a successful fallback
	// install with the installed binary path.
	OnRemediate func(ctx context.Context, path string)
	logger      *slog.Logger

	// providers is injectable so tests can script the cascade.
	providers func(engine resolve.Engine, crossSocket string) []Provider
}

// NewResolver builds the production resolver.
func NewResolver(deadline *execx.DeadlineRunner, verifySpec execx.DeadlineSpec, scratchRoot string, socketFor func(context.Context, resolve.Engine) string, installer *Installer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		deadline:    deadline,
		verifySpec:  verifySpec,
		scratchRoot: scratchRoot,
		socketFor:   socketFor,
		installer:   installer,
		logger:      logger,
	}
	r.providers = r.buildProviders
	return r
}

// buildProviders assembles the ordered cascade: native candidates first,
// then the cross-engine fallback pointed at the detected engine's socket.
func (r *Resolver) buildProviders(engine resolve.Engine, crossSocket string) []Provider {
	var providers []Provider
	for _, kind := range resolve.NativeCandidates(engine) {
		providers = append(providers, newProvider(kind, "", r.deadline, r.verifySpec))
	}
	providers = append(providers, newProvider(resolve.CrossEngineCandidate(engine), crossSocket, r.deadline, r.verifySpec))
	return providers
}

// Resolve returns the first candidate that verifies successfully, along
// with the capabilities implied by that candidate winning.
func (r *Resolver) Resolve(ctx context.Context, engine resolve.Engine) (resolve.Invocation, resolve.Capabilities, error) {
	var crossSocket string
	if r.socketFor != nil {
		crossSocket = r.socketFor(ctx, engine)
	}
	providers := r.providers(engine, crossSocket)

	docPath, err := writeSyntheticDocument(r.scratchRoot)
	if err != nil {
		return resolve.Invocation{}, resolve.Capabilities{}, err
	}
	defer os.RemoveAll(filepath.Dir(docPath))

	crossKind := resolve.CrossEngineCandidate(engine)
	var attempts []Attempt
	for _, provider := range providers {
		kind := provider.Kind()

		if !provider.Available() {
			// Only the standalone docker-compose fallback can be
			// installed on the fly (that is the artifact the installer
			// downloads), gated by the remediation opt-in.
			if kind == crossKind && kind == resolve.CandidateDockerStandalone && r.installer != nil {
				installed, err := r.remediate(ctx, provider, docPath)
				if err == nil {
					return installed.Invocation(), kind.Capabilities(), nil
				}
				attempts = append(attempts, Attempt{Kind: kind, Outcome: fmt.Sprintf("remediation failed: %v", err)})
				continue
			}
			r.logger.Debug("compose candidate not installed, skipping", "candidate", kind)
			attempts = append(attempts, Attempt{Kind: kind, Outcome: "not installed"})
			continue
		}

		if err := r.verify(ctx, provider, docPath); err != nil {
			attempts = append(attempts, Attempt{
				Kind:    kind,
				Command: provider.Invocation().String(),
				Outcome: err.Error(),
			})
			continue
		}

		r.logger.Info("compose implementation selected",
			"candidate", kind,
			"command", provider.Invocation().String(),
		)
		return provider.Invocation(), kind.Capabilities(), nil
	}

	return resolve.Invocation{}, resolve.Capabilities{}, &ExhaustedError{Engine: engine, Attempts: attempts}
}

// verify runs the candidate against the synthetic document and logs
// installed-but-broken candidates with the exact command and output.
func (r *Resolver) verify(ctx context.Context, provider Provider, docPath string) error {
	err := provider.Verify(ctx, docPath)
	if err == nil {
		return nil
	}
	var vErr *VerificationError
	if errors.As(err, &vErr) {
		r.logger.Warn("compose candidate failed verification",
			"candidate", provider.Kind(),
			"command", vErr.Command,
			"exit_code", vErr.ExitCode,
			"timed_out", vErr.TimedOut,
			"output", vErr.Output,
		)
	} else {
		r.logger.Warn("compose candidate failed verification",
			"candidate", provider.Kind(),
			"error", err,
		)
	}
	return err
}

// remediate installs the pinned fallback binary and re-verifies it using
// the freshly installed path.
func (r *Resolver) remediate(ctx context.Context, provider Provider, docPath string) (Provider, error) {
	path, err := r.installer.Install(ctx)
	if err != nil {
		return nil, err
	}

	invocation := provider.Invocation()
	invocation.Binary = path
	installed := &execProvider{
		kind:       provider.Kind(),
		invocation: invocation,
		deadline:   r.deadline,
		spec:       r.verifySpec,
		lookPath:   func(string) (string, error) { return path, nil },
	}
	if err := r.verify(ctx, installed, docPath); err != nil {
		return nil, err
	}
	if r.OnRemediate != nil {
		r.OnRemediate(ctx, path)
	}
	return installed, nil
}
