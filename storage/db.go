package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schemaVersion is the schema version this build writes and expects.
// The on-disk version is tracked in PRAGMA user_version; migrations are
// forward-only. A database written by a newer build refuses to open.
const schemaVersion = 1

// migrations[i] upgrades the schema from version i to version i+1.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 3 CHECK (priority BETWEEN 1 AND 5),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_notes_priority ON notes(priority);`,
}

type DB struct {
	conn *sql.DB
}

// Open opens the database in dir and applies any pending migrations.
func Open(dir string) (*DB, error) {
	return OpenFile(filepath.Join(dir, "snappad.db"))
}

// OpenFile opens the database at the given path.
func OpenFile(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Writers queue up instead of failing with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate brings the on-disk schema up to schemaVersion.
func (db *DB) migrate() error {
	var version int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d; refusing to open", version, schemaVersion)
	}

	for v := version; v < schemaVersion; v++ {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration to version %d: %w", v+1, err)
		}

		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration to version %d failed: %w", v+1, err)
		}

		// PRAGMA doesn't take placeholders.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", v+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration to version %d: %w", v+1, err)
		}
	}

	return nil
}
