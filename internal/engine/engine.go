// Package engine is the resolution engine facade: cache first, then
// runtime detection, then the compose cascade, with the outcome persisted
// atomically for subsequent processes.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stackforge/stackctl/internal/core/resolve"
	"github.com/stackforge/stackctl/internal/shell/cache"
	"github.com/stackforge/stackctl/internal/shell/journal"
	"github.com/stackforge/stackctl/internal/shell/runtime"
)

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// Detector is the runtime detection surface the engine needs.
type Detector interface {
	Detect(ctx context.Context) (resolve.Engine, error)
	Rootless(engine resolve.Engine) bool
	Probe(ctx context.Context, engine resolve.Engine) runtime.EngineStatus
}

// ComposeResolver walks the compose candidate cascade.
type ComposeResolver interface {
	Resolve(ctx context.Context, engine resolve.Engine) (resolve.Invocation, resolve.Capabilities, error)
}

// Recorder appends audit events. It is optional; a nil Recorder disables
// journaling.
type Recorder interface {
	Append(ctx context.Context, kind journal.EventKind, runtime, detail string) error
}

// =============================================================================
// Engine
// =============================================================================

// Engine ties the resolution pipeline together.
type Engine struct {
	cache    *cache.Cache
	detector Detector
	resolver ComposeResolver
	recorder Recorder
	logger   *slog.Logger
}

// New creates the engine. recorder may be nil.
func New(c *cache.Cache, detector Detector, resolver ComposeResolver, recorder Recorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cache:    c,
		detector: detector,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
	}
}

// ResolveOptions controls one resolution call.
type ResolveOptions struct {
	// Force bypasses the cache check and overwrites the lockfile with a
	// fresh resolution.
	Force bool
}

// Resolve returns a ready-to-use resolution record. A warm cache answers
// without probing anything; a cold or forced resolution runs detection,
// the compose cascade, and persists the result.
func (e *Engine) Resolve(ctx context.Context, opts ResolveOptions) (*resolve.Record, error) {
	if !opts.Force {
		if record := e.cache.Load(); record != nil {
			e.logger.Debug("resolution served from cache",
				"runtime", record.Engine,
				"compose", record.Compose.String(),
			)
			e.record(ctx, journal.EventCacheHit, string(record.Engine), record.Compose.String())
			return record, nil
		}
	}

	engine, err := e.detector.Detect(ctx)
	if err != nil {
		e.record(ctx, journal.EventFailed, "", err.Error())
		return nil, err
	}
	e.record(ctx, journal.EventDetected, string(engine), "")

	invocation, capabilities, err := e.resolver.Resolve(ctx, engine)
	if err != nil {
		e.record(ctx, journal.EventFailed, string(engine), err.Error())
		return nil, err
	}
	capabilities.Rootless = e.detector.Rootless(engine)

	record := &resolve.Record{
		SchemaVersion: resolve.SchemaVersion,
		Engine:        engine,
		Compose:       invocation,
		Capabilities:  capabilities,
	}
	if err := e.cache.Store(record); err != nil {
		return nil, fmt.Errorf("persist resolution: %w", err)
	}
	e.record(ctx, journal.EventResolved, string(engine), invocation.String())
	return record, nil
}

// Clear invalidates the cache so the next resolution cold-starts.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.cache.Clear(); err != nil {
		return err
	}
	e.record(ctx, journal.EventCleared, "", "")
	return nil
}

// CachePath exposes the lockfile location for diagnostics.
func (e *Engine) CachePath() string {
	return e.cache.Path()
}

// =============================================================================
// Status
// =============================================================================

// Status pairs the cached record with live probe results.
type Status struct {
	Cached *resolve.Record
	Live   []runtime.EngineStatus
}

// Status reports the cached record (if any) alongside a live probe of
// both engine families. It never mutates the cache.
func (e *Engine) Status(ctx context.Context) *Status {
	status := &Status{Cached: e.cache.Load()}
	for _, engine := range []resolve.Engine{resolve.EngineDocker, resolve.EnginePodman} {
		status.Live = append(status.Live, e.detector.Probe(ctx, engine))
	}
	return status
}

func (e *Engine) record(ctx context.Context, kind journal.EventKind, runtime, detail string) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Append(ctx, kind, runtime, detail); err != nil {
		e.logger.Warn("journal append failed", "kind", kind, "error", err)
	}
}
