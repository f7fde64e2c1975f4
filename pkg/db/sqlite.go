package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mklimuk/notepilot/pkg/logger/slogx"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 3

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps the sql.DB connection
type DB struct {
	*sql.DB
}

// NewDB creates a new SQLite database connection, retrying the initial ping
// up to attempts times.
func NewDB(ctx context.Context, dbPath string, attempts uint) (*DB, error) {
	if attempts == 0 {
		attempts = 1
	}

	dsn := dbPath
	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
		dsn = "file:" + dbPath + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == MemoryPath {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := retry.Do(
		func() error { return db.PingContext(ctx) },
		retry.Context(ctx),
		retry.Delay(300*time.Millisecond),
		retry.Attempts(attempts),
		retry.OnRetry(func(attempt uint, err error) {
			slogx.Warn(ctx, "failed ping to database",
				slogx.Err(err),
				slog.Uint64("attempt", uint64(attempt)),
			)
		}),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.DB.Close()
}

// InitSchema applies schema migrations based on the user_version pragma.
func (d *DB) InitSchema() error {
	version, err := d.UserVersion()
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS notes (
			id            TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			title         TEXT NOT NULL CHECK (length(trim(title)) > 0),
			content       TEXT NOT NULL CHECK (length(trim(content)) > 0),
			tags_json     TEXT NOT NULL DEFAULT '[]',
			category_main TEXT NOT NULL,
			category_sub  TEXT NOT NULL DEFAULT '',
			is_pinned     INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL,
			CHECK (updated_at >= created_at)
		);

		CREATE INDEX IF NOT EXISTS idx_notes_owner_pinned_updated
		ON notes(owner_id, is_pinned DESC, updated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_notes_owner_category
		ON notes(owner_id, category_main);
		`
		if _, err := d.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := d.SetUserVersion(1); err != nil {
			return err
		}
	}

	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS calendar_settings (
			owner_id            TEXT PRIMARY KEY,
			integration_enabled INTEGER NOT NULL DEFAULT 0,
			auto_create_events  INTEGER NOT NULL DEFAULT 0,
			timezone            TEXT NOT NULL DEFAULT 'UTC',
			calendar_id         TEXT NOT NULL DEFAULT '',
			updated_at          INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS calendar_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id   TEXT NOT NULL,
			event_id   TEXT NOT NULL,
			html_link  TEXT NOT NULL DEFAULT '',
			summary    TEXT NOT NULL DEFAULT '',
			starts_at  INTEGER,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_calendar_events_owner
		ON calendar_events(owner_id, created_at DESC);
		`
		if _, err := d.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := d.SetUserVersion(2); err != nil {
			return err
		}
	}

	if version < 3 {
		schema := `
		CREATE TABLE IF NOT EXISTS drive_files (
			local_path     TEXT PRIMARY KEY,
			drive_file_id  TEXT NOT NULL,
			last_synced_at INTEGER NOT NULL
		);
		`
		if _, err := d.Exec(schema); err != nil {
			return fmt.Errorf("migration 3 failed: %w", err)
		}
		if err := d.SetUserVersion(3); err != nil {
			return err
		}
	}

	return nil
}

// UserVersion returns the current schema version.
func (d *DB) UserVersion() (int, error) {
	var version int
	if err := d.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version.
func (d *DB) SetUserVersion(version int) error {
	if _, err := d.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
