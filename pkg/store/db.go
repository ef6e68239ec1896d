// Package store is the SQLite-backed rule store: tier 1 of the resolver's
// lookup chain, and the source of advisory soft-rule guidance for the
// review API. It is read-only from the rest of this system; nothing here
// writes rule rows at runtime — that's the out-of-scope extraction
// pipeline's job.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB wraps the SQL handle for easier swapping in tests.
type DB struct {
	conn *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path and applies
// the schema.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1) // SQLite prefers a single writer.
	conn.SetConnMaxLifetime(time.Hour)

	d := &DB{conn: conn}
	if err := d.applySchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying DB handle.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
