package composeres

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackforge/stackctl/internal/core/resolve"
	"github.com/stackforge/stackctl/internal/shell/execx"
)

// fakeProvider scripts one cascade step.
type fakeProvider struct {
	kind      resolve.CandidateKind
	available bool
	verifyErr error
	verified  int
}

func (f *fakeProvider) Kind() resolve.CandidateKind { return f.kind }
func (f *fakeProvider) Available() bool             { return f.available }
func (f *fakeProvider) Invocation() resolve.Invocation {
	return invocationFor(f.kind)
}
func (f *fakeProvider) Verify(context.Context, string) error {
	f.verified++
	return f.verifyErr
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

func newFakeResolver(t *testing.T, providers []Provider) *Resolver {
	t.Helper()
	r := NewResolver(
		execx.NewDeadlineRunner(testLogger()),
		execx.DeadlineSpec{Timeout: 5 * time.Second, Grace: time.Second},
		t.TempDir(),
		nil,
		nil,
		testLogger(),
	)
	r.providers = func(resolve.Engine, string) []Provider { return providers }
	return r
}

func TestResolveSelectsFirstVerifiedCandidate(t *testing.T) {
	first := &fakeProvider{kind: resolve.CandidateDockerPlugin, available: true}
	second := &fakeProvider{kind: resolve.CandidateDockerStandalone, available: true}
	r := newFakeResolver(t, []Provider{first, second})

	invocation, caps, err := r.Resolve(context.Background(), resolve.EngineDocker)

	require.NoError(t, err)
	assert.Equal(t, "docker compose", invocation.String())
	assert.Equal(t, resolve.CandidateDockerPlugin.Capabilities(), caps)
	assert.Equal(t, 1, first.verified)
	assert.Zero(t, second.verified)
}

func TestResolveCascadePrecedence(t *testing.T) {
	// Only the second-priority candidate verifies: the resolver selects
	// exactly that one, with its capabilities, and the first candidate's
	// failure does not propagate.
	first := &fakeProvider{
		kind:      resolve.CandidateDockerPlugin,
		available: true,
		verifyErr: &VerificationError{Command: "docker compose -f x config", ExitCode: 1, Output: "unknown command"},
	}
	second := &fakeProvider{kind: resolve.CandidateDockerStandalone, available: true}
	r := newFakeResolver(t, []Provider{first, second})

	invocation, caps, err := r.Resolve(context.Background(), resolve.EngineDocker)

	require.NoError(t, err)
	assert.Equal(t, "docker-compose", invocation.String())
	assert.Equal(t, resolve.CandidateDockerStandalone.Capabilities(), caps)
	assert.False(t, caps.BuildEngine)
	assert.Equal(t, 1, first.verified)
	assert.Equal(t, 1, second.verified)
}

func TestResolveSkipsUnavailableCandidates(t *testing.T) {
	first := &fakeProvider{kind: resolve.CandidatePodmanPlugin, available: false}
	second := &fakeProvider{kind: resolve.CandidatePodmanCompose, available: true}
	r := newFakeResolver(t, []Provider{first, second})

	invocation, _, err := r.Resolve(context.Background(), resolve.EnginePodman)

	require.NoError(t, err)
	assert.Equal(t, "podman-compose", invocation.String())
	assert.Zero(t, first.verified)
}

func TestResolveExhaustedNamesEveryCandidate(t *testing.T) {
	providers := []Provider{
		&fakeProvider{kind: resolve.CandidatePodmanPlugin, available: false},
		&fakeProvider{
			kind:      resolve.CandidatePodmanCompose,
			available: true,
			verifyErr: &VerificationError{Command: "podman-compose -f x config", ExitCode: 125, Output: "boom"},
		},
		&fakeProvider{kind: resolve.CandidateDockerStandalone, available: false},
	}
	r := newFakeResolver(t, providers)

	_, _, err := r.Resolve(context.Background(), resolve.EnginePodman)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 3)
	assert.Equal(t, resolve.CandidatePodmanPlugin, exhausted.Attempts[0].Kind)
	assert.Equal(t, "not installed", exhausted.Attempts[0].Outcome)
	assert.Contains(t, exhausted.Attempts[1].Outcome, "exit 125")
	assert.Len(t, exhausted.Hints(), 3)
	for _, kind := range []string{"podman-compose-plugin", "podman-compose", "docker-compose-standalone"} {
		assert.Contains(t, exhausted.Error(), kind)
	}
}

func TestResolveNeverRemediatesPodmanCompose(t *testing.T) {
	// The installer only ships docker-compose, so on the docker branch
	// the cross-engine podman-compose candidate must not trigger a
	// download; the cascade exhausts instead.
	var downloads int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		downloads++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	providers := []Provider{
		&fakeProvider{kind: resolve.CandidateDockerPlugin, available: false},
		&fakeProvider{kind: resolve.CandidateDockerStandalone, available: false},
		&fakeProvider{kind: resolve.CandidatePodmanCompose, available: false},
	}
	r := newFakeResolver(t, providers)
	r.installer = NewInstaller(InstallerConfig{
		BaseURL: server.URL,
		Version: "2.29.7",
		Dir:     t.TempDir(),
	}, testLogger())

	_, _, err := r.Resolve(context.Background(), resolve.EngineDocker)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 3)
	assert.Equal(t, resolve.CandidatePodmanCompose, exhausted.Attempts[2].Kind)
	assert.Equal(t, "not installed", exhausted.Attempts[2].Outcome)
	assert.Zero(t, downloads)
}

func TestResolvePassesCrossSocketToProviders(t *testing.T) {
	var gotSocket string
	r := newFakeResolver(t, nil)
	r.socketFor = func(context.Context, resolve.Engine) string {
		return "unix:///run/podman/podman.sock"
	}
	r.providers = func(_ resolve.Engine, crossSocket string) []Provider {
		gotSocket = crossSocket
		return []Provider{&fakeProvider{kind: resolve.CandidatePodmanPlugin, available: true}}
	}

	_, _, err := r.Resolve(context.Background(), resolve.EnginePodman)

	require.NoError(t, err)
	assert.Equal(t, "unix:///run/podman/podman.sock", gotSocket)
}

func TestBuildProvidersOrder(t *testing.T) {
	r := NewResolver(
		execx.NewDeadlineRunner(testLogger()),
		execx.DeadlineSpec{Timeout: time.Second, Grace: time.Second},
		t.TempDir(), nil, nil, testLogger(),
	)

	providers := r.buildProviders(resolve.EnginePodman, "unix:///run/podman/podman.sock")

	require.Len(t, providers, 3)
	assert.Equal(t, resolve.CandidatePodmanPlugin, providers[0].Kind())
	assert.Equal(t, resolve.CandidatePodmanCompose, providers[1].Kind())
	assert.Equal(t, resolve.CandidateDockerStandalone, providers[2].Kind())
	assert.Equal(t, []string{"DOCKER_HOST=unix:///run/podman/podman.sock"}, providers[2].Invocation().Env)
	assert.Empty(t, providers[0].Invocation().Env)
}
