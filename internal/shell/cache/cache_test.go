package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackforge/stackctl/internal/core/resolve"
)

func testRecord() *resolve.Record {
	return &resolve.Record{
		SchemaVersion: resolve.SchemaVersion,
		Engine:        resolve.EngineDocker,
		Compose:       resolve.Invocation{Binary: "docker", Args: []string{"compose"}},
		Capabilities: resolve.Capabilities{
			Secrets:     resolve.SupportFull,
			Healthcheck: true,
			Profiles:    resolve.SupportFull,
			BuildEngine: true,
		},
	}
}

func TestStoreThenLoad(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "runtime.lock"), nil)

	require.NoError(t, c.Store(testRecord()))

	loaded := c.Load()
	require.NotNil(t, loaded)
	assert.Equal(t, testRecord(), loaded)
}

func TestLoadMissingFile(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "absent.lock"), nil)
	assert.Nil(t, c.Load())
}

func TestLoadCorruptFileDegradesToCold(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", "RUNTI"},
		{"empty", ""},
		{"no runtime key", "COMPOSE=docker compose\n"},
		{"binary garbage", "\x00\xff\xfe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "runtime.lock")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			c := New(path, nil)
			assert.Nil(t, c.Load())
		})
	}
}

func TestClear(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "runtime.lock"), nil)
	require.NoError(t, c.Store(testRecord()))

	require.NoError(t, c.Clear())
	assert.Nil(t, c.Load())

	// Clearing an already-absent lockfile is fine.
	assert.NoError(t, c.Clear())
}

func TestStoreOverwrites(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "runtime.lock"), nil)
	require.NoError(t, c.Store(testRecord()))

	updated := testRecord()
	updated.Engine = resolve.EnginePodman
	updated.Compose = resolve.Invocation{Binary: "podman", Args: []string{"compose"}}
	updated.Capabilities = resolve.Capabilities{
		Secrets:  resolve.SupportLimited,
		Profiles: resolve.SupportLimited, Healthcheck: true,
	}
	require.NoError(t, c.Store(updated))

	loaded := c.Load()
	require.NotNil(t, loaded)
	assert.Equal(t, resolve.EnginePodman, loaded.Engine)
}
