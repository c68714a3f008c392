// Package atomic writes files so that readers never observe partial
// content: new bytes are staged in a temp file next to the destination
// and renamed into place only on full success.
package atomic

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// =============================================================================
// Pending Temp File Registry
// =============================================================================

// pending tracks temp files that have been created but not yet renamed,
// so an aborting process can sweep them up.
var pending = struct {
	sync.Mutex
	paths map[string]struct{}
}{paths: map[string]struct{}{}}

func register(path string) {
	pending.Lock()
	pending.paths[path] = struct{}{}
	pending.Unlock()
}

func unregister(path string) {
	pending.Lock()
	delete(pending.paths, path)
	pending.Unlock()
}

// CleanupPending removes any staged temp files that were never renamed.
// The CLI calls this from its signal handler; removal is best-effort.
func CleanupPending() {
	pending.Lock()
	defer pending.Unlock()
	for path := range pending.paths {
		_ = os.Remove(path)
		delete(pending.paths, path)
	}
}

// =============================================================================
// Atomic Writes
// =============================================================================

// WriteFile writes data to path atomically. The temp file is created in
// the destination's own directory so the final rename never crosses a
// filesystem boundary. A zero mode defaults to 0644.
func WriteFile(path string, data []byte, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	register(tmpPath)

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
		unregister(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, path, err)
	}
	committed = true
	return nil
}

// WriteFromPath atomically copies the bytes of src to dst, preserving
// src's permission bits and timestamps where possible. Used when the
// content was produced by another tool rather than held in memory.
func WriteFromPath(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source %s: %w", src, err)
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read source %s: %w", src, err)
	}

	if err := WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return err
	}

	// Timestamp preservation is best-effort.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}
