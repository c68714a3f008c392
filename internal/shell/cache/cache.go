// Package cache persists the resolution lockfile. A corrupted or missing
// lockfile is never an error here - it degrades to a cold start.
package cache

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/stackforge/stackctl/internal/core/resolve"
	"github.com/stackforge/stackctl/internal/shell/atomic"
)

// Cache reads and writes the ResolutionRecord lockfile.
type Cache struct {
	path   string
	logger *slog.Logger
}

// New creates a cache over the given lockfile path.
func New(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{path: path, logger: logger}
}

// Path returns the lockfile location.
func (c *Cache) Path() string {
	return c.path
}

// Load returns the cached record, or nil when there is no usable cache.
// Malformed content is logged and treated as absent so a corrupted cache
// can never block the caller.
func (c *Cache) Load() *resolve.Record {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("lockfile unreadable, treating as cold cache",
				"path", c.path,
				"error", err,
			)
		}
		return nil
	}

	record, err := resolve.Decode(data)
	if err != nil {
		c.logger.Warn("lockfile malformed, treating as cold cache",
			"path", c.path,
			"error", err,
		)
		return nil
	}
	return record
}

// Store writes the record atomically.
func (c *Cache) Store(record *resolve.Record) error {
	if err := atomic.WriteFile(c.path, record.Encode(), 0o644); err != nil {
		return fmt.Errorf("store lockfile: %w", err)
	}
	c.logger.Info("resolution cached",
		"path", c.path,
		"runtime", record.Engine,
		"compose", record.Compose.String(),
	)
	return nil
}

// Clear removes the lockfile. A missing lockfile is not an error.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear lockfile: %w", err)
	}
	return nil
}
