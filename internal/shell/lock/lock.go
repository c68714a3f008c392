// Package lock provides the coarse advisory file lock taken around a full
// orchestration run, so two deployments cannot overlap. The resolution
// engine itself is not guarded by it - cold probing is idempotent and the
// last atomic lockfile write wins.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockTimeout is returned when the lock cannot be acquired within the
// bounded wait.
var ErrLockTimeout = errors.New("timed out waiting for orchestration lock")

const pollInterval = 250 * time.Millisecond

// Lock is a held advisory lock. Release it on every exit path.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive flock on path, polling until wait elapses.
// A zero wait means a single non-blocking attempt.
func Acquire(path string, wait time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	deadline := time.Now().Add(wait)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{path: path, file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}
		time.Sleep(pollInterval)
	}
}

// Release drops the lock. Safe to call once on any exit path.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return closeErr
}
