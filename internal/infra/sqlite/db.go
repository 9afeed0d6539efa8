// Package sqlite provides SQLite-based persistent storage for EcoLearn
// progress and the activity feed.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// One row per user/track
		`CREATE TABLE IF NOT EXISTS progress (
			key        TEXT PRIMARY KEY,
			points     INTEGER NOT NULL DEFAULT 0,
			streak     INTEGER NOT NULL DEFAULT 0,
			last_day   TEXT NOT NULL DEFAULT '',
			level      INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS attendance (
			key   TEXT NOT NULL REFERENCES progress(key) ON DELETE CASCADE,
			day   TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (key, day)
		)`,

		`CREATE TABLE IF NOT EXISTS progress_badges (
			key         TEXT NOT NULL REFERENCES progress(key) ON DELETE CASCADE,
			badge       TEXT NOT NULL,
			unlocked_at INTEGER NOT NULL,
			PRIMARY KEY (key, badge)
		)`,

		// Idempotence guard shared by missions, quizzes and challenges
		`CREATE TABLE IF NOT EXISTS completed_missions (
			key          TEXT NOT NULL REFERENCES progress(key) ON DELETE CASCADE,
			ref          TEXT NOT NULL,
			completed_at INTEGER NOT NULL,
			PRIMARY KEY (key, ref)
		)`,

		// Recent-activity feed
		`CREATE TABLE IF NOT EXISTS activity (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			key        TEXT NOT NULL,
			kind       TEXT NOT NULL,
			ref        TEXT NOT NULL DEFAULT '',
			points     INTEGER NOT NULL,
			badges     TEXT NOT NULL DEFAULT '[]',
			level      INTEGER NOT NULL,
			leveled_up BOOLEAN DEFAULT 0,
			at         INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_key_at ON activity(key, at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
