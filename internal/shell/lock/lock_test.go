package lock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.lock")

	l, err := Acquire(path, 0)
	require.NoError(t, err)
	require.NoError(t, l.Release())

	// Releasing twice is safe.
	assert.NoError(t, l.Release())
}

func TestAcquireCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "deploy.lock")

	l, err := Acquire(path, 0)
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestReacquireAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.lock")

	first, err := Acquire(path, 0)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := Acquire(path, 0)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestNilLockReleaseIsSafe(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}

func TestAcquireBoundedWait(t *testing.T) {
	// flock is per-open-descriptor, so a second Acquire in the same
	// process with its own descriptor contends like a second process.
	path := filepath.Join(t.TempDir(), "deploy.lock")

	held, err := Acquire(path, 0)
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = Acquire(path, 400*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Less(t, elapsed, 5*time.Second)
}
