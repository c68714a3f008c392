package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, EventDetected, "docker", "daemon reachable"))
	require.NoError(t, j.Append(ctx, EventResolved, "docker", "docker compose"))
	require.NoError(t, j.Append(ctx, EventCacheHit, "docker", ""))

	events, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first.
	assert.Equal(t, EventCacheHit, events[0].Kind)
	assert.Equal(t, EventResolved, events[1].Kind)
	assert.Equal(t, EventDetected, events[2].Kind)
	assert.Equal(t, "docker", events[0].Runtime)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestRecentHonorsLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(ctx, EventDetected, "podman", ""))
	}

	events, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRecentEmptyJournal(t *testing.T) {
	j := openTestJournal(t)

	events, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(context.Background(), EventDetected, "docker", ""))
	require.NoError(t, first.Close())

	// Re-opening runs migrations again without error and keeps data.
	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	events, err := second.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
