// Package runtime probes for a working container engine and decides which
// one a deployment should use.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/stackforge/stackctl/internal/core/platform"
	"github.com/stackforge/stackctl/internal/core/resolve"
)

// EnvRuntimeOverride is the environment variable holding an explicit
// pre-set engine choice, which takes precedence over auto-detection.
// EnvRuntime is the older spelling, still honored when the primary
// variable is unset.
const (
	EnvRuntimeOverride = "STACKCTL_RUNTIME"
	EnvRuntime         = "CONTAINER_RUNTIME"
)

// DefaultProbeTimeout bounds a single daemon reachability probe.
const DefaultProbeTimeout = 5 * time.Second

var installHints = map[resolve.Engine]string{
	resolve.EngineDocker: "install docker: https://docs.docker.com/engine/install/ (then start the daemon: systemctl enable --now docker)",
	resolve.EnginePodman: "install podman: dnf install podman / apt install podman (then enable the socket: systemctl enable --now podman.socket)",
}

// =============================================================================
// Errors
// =============================================================================

// DetectionError means no engine qualified. It carries operator-facing
// install hints for both engine families.
type DetectionError struct {
	Attempted []resolve.Engine
	Reasons   map[resolve.Engine]string
}

func (e *DetectionError) Error() string {
	var b strings.Builder
	b.WriteString("no working container engine found")
	for _, engine := range e.Attempted {
		fmt.Fprintf(&b, "; %s: %s", engine, e.Reasons[engine])
	}
	return b.String()
}

// Hints returns remediation text per engine family.
func (e *DetectionError) Hints() []string {
	hints := make([]string, 0, len(e.Attempted))
	for _, engine := range e.Attempted {
		hints = append(hints, installHints[engine])
	}
	return hints
}

// =============================================================================
// Detector
// =============================================================================

// Detector probes candidate engines in preference order: explicit env
// choice first, then the OS-driven pin, then docker before podman.
type Detector struct {
	pinger       Pinger
	platform     platform.Platform
	probeTimeout time.Duration
	logger       *slog.Logger

	// Injectable for tests.
	lookPath func(string) (string, error)
	getenv   func(string) string
}

// NewDetector builds a detector over the given pinger and host platform.
func NewDetector(pinger Pinger, plat platform.Platform, probeTimeout time.Duration, logger *slog.Logger) *Detector {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		pinger:       pinger,
		platform:     plat,
		probeTimeout: probeTimeout,
		logger:       logger,
		lookPath:     exec.LookPath,
		getenv:       os.Getenv,
	}
}

// Detect returns the first engine that has its binary installed and its
// daemon reachable. Neither qualifying is a terminal DetectionError.
func (d *Detector) Detect(ctx context.Context) (resolve.Engine, error) {
	source := EnvRuntimeOverride
	choice := d.getenv(EnvRuntimeOverride)
	if choice == "" {
		source = EnvRuntime
		choice = d.getenv(EnvRuntime)
	}
	if choice != "" {
		engine, err := resolve.ParseEngine(choice)
		if err != nil {
			return "", fmt.Errorf("invalid %s: %w", source, err)
		}
		d.logger.Info("engine pre-set by environment", "runtime", engine)
		if reason, ok := d.qualify(ctx, engine); !ok {
			return "", &DetectionError{
				Attempted: []resolve.Engine{engine},
				Reasons:   map[resolve.Engine]string{engine: reason},
			}
		}
		return engine, nil
	}

	order := d.probeOrder()
	reasons := map[resolve.Engine]string{}
	for _, engine := range order {
		reason, ok := d.qualify(ctx, engine)
		if ok {
			d.logger.Info("engine detected", "runtime", engine)
			return engine, nil
		}
		reasons[engine] = reason
		d.logger.Debug("engine candidate skipped", "runtime", engine, "reason", reason)
	}

	return "", &DetectionError{Attempted: order, Reasons: reasons}
}

// probeOrder applies the OS preference override. Families known to run an
// interpreter too old for the python compose implementations pin docker
// first; the pin is effective only when docker is actually installed.
func (d *Detector) probeOrder() []resolve.Engine {
	order := []resolve.Engine{resolve.EngineDocker, resolve.EnginePodman}
	pinned, ok := platform.PreferredEngine(d.platform)
	if !ok {
		return order
	}
	if _, err := d.lookPath(string(pinned)); err != nil {
		d.logger.Debug("os preference pin ignored, binary not installed", "runtime", pinned)
		return order
	}
	d.logger.Info("engine preference pinned by os policy",
		"runtime", pinned,
		"os_id", d.platform.ID,
		"os_version", d.platform.VersionID,
	)
	return []resolve.Engine{pinned, pinned.Other()}
}

// qualify runs the two-part candidate test: binary present, then service
// reachable within the probe deadline.
func (d *Detector) qualify(ctx context.Context, engine resolve.Engine) (reason string, ok bool) {
	if _, err := d.lookPath(string(engine)); err != nil {
		return "binary not installed", false
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()
	if err := d.pinger.Ping(probeCtx, engine); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "daemon did not respond within probe deadline", false
		}
		return fmt.Sprintf("daemon unreachable: %v", err), false
	}
	return "", true
}

// Rootless reports whether the selected engine runs without root. Podman
// is rootless for any non-root invoker; docker is treated as rootful.
func (d *Detector) Rootless(engine resolve.Engine) bool {
	return engine == resolve.EnginePodman && os.Geteuid() != 0
}

// EngineStatus is a live probe result, shown by "stackctl status" next to
// the cached record.
type EngineStatus struct {
	Engine    resolve.Engine
	Installed bool
	Reachable bool
	Reason    string
}

// Probe reports the live state of one engine without affecting the cache.
func (d *Detector) Probe(ctx context.Context, engine resolve.Engine) EngineStatus {
	status := EngineStatus{Engine: engine}
	if _, err := d.lookPath(string(engine)); err != nil {
		status.Reason = "binary not installed"
		return status
	}
	status.Installed = true
	if reason, ok := d.qualify(ctx, engine); !ok {
		status.Reason = reason
		return status
	}
	status.Reachable = true
	return status
}
