package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackforge/stackctl/internal/core/resolve"
	"github.com/stackforge/stackctl/internal/shell/cache"
	"github.com/stackforge/stackctl/internal/shell/journal"
	"github.com/stackforge/stackctl/internal/shell/runtime"
)

// fakeDetector scripts detection results and counts probes.
type fakeDetector struct {
	engine   resolve.Engine
	err      error
	rootless bool
	detects  int
	probes   int
}

func (f *fakeDetector) Detect(context.Context) (resolve.Engine, error) {
	f.detects++
	return f.engine, f.err
}

func (f *fakeDetector) Rootless(resolve.Engine) bool { return f.rootless }

func (f *fakeDetector) Probe(_ context.Context, engine resolve.Engine) runtime.EngineStatus {
	f.probes++
	return runtime.EngineStatus{Engine: engine, Installed: true, Reachable: engine == f.engine}
}

// fakeComposeResolver scripts the cascade result and counts runs.
type fakeComposeResolver struct {
	invocation resolve.Invocation
	caps       resolve.Capabilities
	err        error
	resolves   int
}

func (f *fakeComposeResolver) Resolve(context.Context, resolve.Engine) (resolve.Invocation, resolve.Capabilities, error) {
	f.resolves++
	return f.invocation, f.caps, f.err
}

// memoryRecorder captures journal events without sqlite.
type memoryRecorder struct {
	kinds []journal.EventKind
}

func (m *memoryRecorder) Append(_ context.Context, kind journal.EventKind, _, _ string) error {
	m.kinds = append(m.kinds, kind)
	return nil
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestEngine(t *testing.T, detector *fakeDetector, resolver *fakeComposeResolver, recorder Recorder) *Engine {
	t.Helper()
	c := cache.New(filepath.Join(t.TempDir(), "runtime.lock"), nil)
	return New(c, detector, resolver, recorder, slog.New(slog.NewTextHandler(nopWriter{}, nil)))
}

func dockerComposeResolver() *fakeComposeResolver {
	return &fakeComposeResolver{
		invocation: resolve.Invocation{Binary: "docker", Args: []string{"compose"}},
		caps:       resolve.CandidateDockerPlugin.Capabilities(),
	}
}

func TestResolveColdCachePersistsRecord(t *testing.T) {
	detector := &fakeDetector{engine: resolve.EngineDocker}
	resolver := dockerComposeResolver()
	recorder := &memoryRecorder{}
	e := newTestEngine(t, detector, resolver, recorder)

	record, err := e.Resolve(context.Background(), ResolveOptions{})
	require.NoError(t, err)

	assert.Equal(t, resolve.EngineDocker, record.Engine)
	assert.Equal(t, "docker compose", record.Compose.String())
	assert.Equal(t, 1, detector.detects)
	assert.Equal(t, 1, resolver.resolves)
	assert.Contains(t, recorder.kinds, journal.EventDetected)
	assert.Contains(t, recorder.kinds, journal.EventResolved)
}

func TestResolveWarmCacheIsIdempotent(t *testing.T) {
	detector := &fakeDetector{engine: resolve.EngineDocker}
	resolver := dockerComposeResolver()
	e := newTestEngine(t, detector, resolver, nil)

	first, err := e.Resolve(context.Background(), ResolveOptions{})
	require.NoError(t, err)

	// Second call: identical record, zero engine or compose probes.
	second, err := e.Resolve(context.Background(), ResolveOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, detector.detects)
	assert.Equal(t, 1, resolver.resolves)
}

func TestResolveForceBypassesCache(t *testing.T) {
	detector := &fakeDetector{engine: resolve.EngineDocker}
	resolver := dockerComposeResolver()
	e := newTestEngine(t, detector, resolver, nil)

	_, err := e.Resolve(context.Background(), ResolveOptions{})
	require.NoError(t, err)
	_, err = e.Resolve(context.Background(), ResolveOptions{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 2, detector.detects)
	assert.Equal(t, 2, resolver.resolves)
}

func TestResolveDetectionFailure(t *testing.T) {
	detErr := errors.New("no engine")
	detector := &fakeDetector{err: detErr}
	recorder := &memoryRecorder{}
	e := newTestEngine(t, detector, dockerComposeResolver(), recorder)

	_, err := e.Resolve(context.Background(), ResolveOptions{})

	assert.ErrorIs(t, err, detErr)
	assert.Contains(t, recorder.kinds, journal.EventFailed)
}

func TestResolveCascadeFailureDoesNotPersist(t *testing.T) {
	detector := &fakeDetector{engine: resolve.EnginePodman}
	resolver := &fakeComposeResolver{err: errors.New("cascade exhausted")}
	e := newTestEngine(t, detector, resolver, nil)

	_, err := e.Resolve(context.Background(), ResolveOptions{})
	require.Error(t, err)

	// A failed resolution must not leave a lockfile behind.
	status := e.Status(context.Background())
	assert.Nil(t, status.Cached)
}

func TestResolveRecordsRootless(t *testing.T) {
	detector := &fakeDetector{engine: resolve.EnginePodman, rootless: true}
	resolver := &fakeComposeResolver{
		invocation: resolve.Invocation{Binary: "podman", Args: []string{"compose"}},
		caps:       resolve.CandidatePodmanPlugin.Capabilities(),
	}
	e := newTestEngine(t, detector, resolver, nil)

	record, err := e.Resolve(context.Background(), ResolveOptions{})
	require.NoError(t, err)
	assert.True(t, record.Capabilities.Rootless)
}

func TestClearInvalidatesCache(t *testing.T) {
	detector := &fakeDetector{engine: resolve.EngineDocker}
	resolver := dockerComposeResolver()
	recorder := &memoryRecorder{}
	e := newTestEngine(t, detector, resolver, recorder)

	_, err := e.Resolve(context.Background(), ResolveOptions{})
	require.NoError(t, err)

	require.NoError(t, e.Clear(context.Background()))

	_, err = e.Resolve(context.Background(), ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, detector.detects)
	assert.Contains(t, recorder.kinds, journal.EventCleared)
}

func TestStatusProbesBothEngines(t *testing.T) {
	detector := &fakeDetector{engine: resolve.EngineDocker}
	e := newTestEngine(t, detector, dockerComposeResolver(), nil)

	status := e.Status(context.Background())

	assert.Nil(t, status.Cached)
	require.Len(t, status.Live, 2)
	assert.Equal(t, resolve.EngineDocker, status.Live[0].Engine)
	assert.Equal(t, resolve.EnginePodman, status.Live[1].Engine)
	assert.Equal(t, 2, detector.probes)
}
