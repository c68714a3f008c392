package runtime

import (
	"context"
	"fmt"
	"os"

	"github.com/docker/docker/client"

	"github.com/stackforge/stackctl/internal/core/resolve"
)

// Pinger answers "is this engine's daemon/service reachable right now".
// The probe is deadline-bounded by ctx and deliberately not retried: a
// non-responsive daemon is a hard fail for that candidate engine.
type Pinger interface {
	Ping(ctx context.Context, engine resolve.Engine) error
}

// =============================================================================
// API Pinger
// =============================================================================

// APIPinger probes an engine over its API socket. Podman exposes a
// docker-compatible socket, so a single client implementation covers both
// engine families.
type APIPinger struct {
	// DockerHost overrides the docker connection; empty means the SDK's
	// environment-driven default.
	DockerHost string
	// PodmanSockets are the candidate podman socket URLs, tried in order.
	PodmanSockets []string
}

// NewAPIPinger builds a pinger with the standard socket candidates.
func NewAPIPinger(dockerHost string) *APIPinger {
	sockets := []string{"unix:///run/podman/podman.sock"}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		// Rootless podman socket takes precedence for non-root users.
		sockets = append([]string{"unix://" + dir + "/podman/podman.sock"}, sockets...)
	}
	return &APIPinger{DockerHost: dockerHost, PodmanSockets: sockets}
}

// Ping dials the engine's control socket and issues an API ping.
func (p *APIPinger) Ping(ctx context.Context, engine resolve.Engine) error {
	switch engine {
	case resolve.EngineDocker:
		return p.pingHost(ctx, p.DockerHost)
	case resolve.EnginePodman:
		var lastErr error
		for _, socket := range p.PodmanSockets {
			if lastErr = p.pingHost(ctx, socket); lastErr == nil {
				return nil
			}
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no podman socket candidates configured")
		}
		return lastErr
	default:
		return fmt.Errorf("%w: %q", resolve.ErrUnknownEngine, engine)
	}
}

// Socket returns the control socket URL that answered for the engine, for
// use as a cross-engine DOCKER_HOST value. Empty when unknown.
func (p *APIPinger) Socket(ctx context.Context, engine resolve.Engine) string {
	switch engine {
	case resolve.EngineDocker:
		// The fallback compose binary must target the same daemon the
		// probes used, so resolve the implicit default explicitly.
		if p.DockerHost != "" {
			return p.DockerHost
		}
		if host := os.Getenv(client.EnvOverrideHost); host != "" {
			return host
		}
		return client.DefaultDockerHost
	case resolve.EnginePodman:
		for _, socket := range p.PodmanSockets {
			if p.pingHost(ctx, socket) == nil {
				return socket
			}
		}
	}
	return ""
}

func (p *APIPinger) pingHost(ctx context.Context, host string) error {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return fmt.Errorf("create api client: %w", err)
	}
	defer cli.Close()

	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", host, err)
	}
	return nil
}
