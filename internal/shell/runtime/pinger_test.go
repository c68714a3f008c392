package runtime

import (
	"context"
	"testing"

	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"

	"github.com/stackforge/stackctl/internal/core/resolve"
)

// =============================================================================
// Socket Tests
// =============================================================================

func TestSocketDockerExplicitOverride(t *testing.T) {
	p := NewAPIPinger("unix:///custom/docker.sock")

	socket := p.Socket(context.Background(), resolve.EngineDocker)

	assert.Equal(t, "unix:///custom/docker.sock", socket)
}

func TestSocketDockerFallsBackToEnv(t *testing.T) {
	t.Setenv(client.EnvOverrideHost, "tcp://10.0.0.5:2376")
	p := NewAPIPinger("")

	socket := p.Socket(context.Background(), resolve.EngineDocker)

	assert.Equal(t, "tcp://10.0.0.5:2376", socket)
}

func TestSocketDockerDefaultsToStandardSocket(t *testing.T) {
	// The cross-engine DOCKER_HOST must never be empty for docker: the
	// fallback compose binary has to target the daemon the probes used.
	t.Setenv(client.EnvOverrideHost, "")
	p := NewAPIPinger("")

	socket := p.Socket(context.Background(), resolve.EngineDocker)

	assert.Equal(t, client.DefaultDockerHost, socket)
}
