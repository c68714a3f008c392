// Package steps records in-progress markers for multi-step procedures so
// a later invocation can tell that a previous run was interrupted.
package steps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Marker
// =============================================================================

// Marker is one in-progress step. Its presence at process start is
// evidence of a prior incomplete run.
type Marker struct {
	Name      string
	StartedAt time.Time
}

var (
	ErrInvalidStepName = errors.New("step name must be a plain file name")
	ErrStepInProgress  = errors.New("step already in progress")
)

// =============================================================================
// Tracker
// =============================================================================

// Tracker keeps marker files in a private state directory. A marker is
// created by Begin and removed only by Complete: a crash deliberately
// leaves it in place, which is exactly the resumability signal callers
// look for afterward.
type Tracker struct {
	dir string
}

// NewTracker creates the state directory if needed.
func NewTracker(dir string) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create step directory %s: %w", dir, err)
	}
	return &Tracker{dir: dir}, nil
}

func (t *Tracker) markerPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidStepName, name)
	}
	return filepath.Join(t.dir, name), nil
}

// Begin creates the marker for a step. Beginning a step that is already
// in progress is an error so overlapping runs are caught early.
func (t *Tracker) Begin(name string) error {
	path, err := t.markerPath(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrStepInProgress, name)
		}
		return fmt.Errorf("create step marker %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(time.Now().UTC().Format(time.RFC3339) + "\n"); err != nil {
		return fmt.Errorf("write step marker %s: %w", path, err)
	}
	return nil
}

// Complete removes the marker. Completing a step that was never begun is
// not an error.
func (t *Tracker) Complete(name string) error {
	path, err := t.markerPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove step marker %s: %w", path, err)
	}
	return nil
}

// IsIncomplete reports whether a previous run left the step unfinished.
func (t *Tracker) IsIncomplete(name string) (bool, error) {
	path, err := t.markerPath(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListIncomplete returns every unfinished step, oldest first.
func (t *Tracker) ListIncomplete() ([]Marker, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("read step directory %s: %w", t.dir, err)
	}

	var markers []Marker
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		m := Marker{Name: entry.Name()}
		if data, err := os.ReadFile(filepath.Join(t.dir, entry.Name())); err == nil {
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data))); err == nil {
				m.StartedAt = ts
			}
		}
		if m.StartedAt.IsZero() {
			if info, err := entry.Info(); err == nil {
				m.StartedAt = info.ModTime()
			}
		}
		markers = append(markers, m)
	}

	sort.Slice(markers, func(i, j int) bool { return markers[i].StartedAt.Before(markers[j].StartedAt) })
	return markers, nil
}
