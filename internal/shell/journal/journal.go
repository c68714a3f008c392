// Package journal keeps an append-only sqlite history of detection and
// resolution events, surfaced by "stackctl status --history".
package journal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Event Types
// =============================================================================

// EventKind classifies a journal entry.
type EventKind string

const (
	EventDetected    EventKind = "engine-detected"
	EventResolved    EventKind = "compose-resolved"
	EventCacheHit    EventKind = "cache-hit"
	EventCleared     EventKind = "cache-cleared"
	EventRemediation EventKind = "remediation-install"
	EventFailed      EventKind = "resolution-failed"
)

// Event is one resolution-engine occurrence. IDs are ULIDs so rows sort
// chronologically by primary key.
type Event struct {
	ID        string    `db:"id"`
	Kind      EventKind `db:"kind"`
	Runtime   string    `db:"runtime"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

// =============================================================================
// Journal
// =============================================================================

// Journal is the sqlite-backed event store.
type Journal struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the journal database and runs its
// migrations.
func Open(dsn string) (*Journal, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal database: %w", err)
	}
	return &Journal{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append records an event. ID and timestamp are assigned here.
func (j *Journal) Append(ctx context.Context, kind EventKind, runtime, detail string) error {
	event := Event{
		ID:        ulid.Make().String(),
		Kind:      kind,
		Runtime:   runtime,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	_, err := j.db.NamedExecContext(ctx,
		`INSERT INTO events (id, kind, runtime, detail, created_at)
		 VALUES (:id, :kind, :runtime, :detail, :created_at)`,
		event)
	if err != nil {
		return fmt.Errorf("append journal event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	var events []Event
	err := j.db.SelectContext(ctx, &events,
		`SELECT id, kind, runtime, detail, created_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal events: %w", err)
	}
	return events, nil
}
