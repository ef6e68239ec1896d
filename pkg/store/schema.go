package store

import (
	"database/sql"
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS firms (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS program_aliases (
    firm_id INTEGER NOT NULL,
    alias TEXT NOT NULL,
    program_id TEXT NOT NULL,
    PRIMARY KEY (firm_id, alias),
    FOREIGN KEY (firm_id) REFERENCES firms(id)
);

CREATE TABLE IF NOT EXISTS rule_rows (
    firm_id INTEGER NOT NULL,
    program_id TEXT NOT NULL,
    rules_json TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (firm_id, program_id),
    FOREIGN KEY (firm_id) REFERENCES firms(id)
);

CREATE TABLE IF NOT EXISTS soft_rule_rows (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    firm_id INTEGER NOT NULL,
    program_id TEXT NOT NULL DEFAULT '',
    advisory TEXT NOT NULL,
    FOREIGN KEY (firm_id) REFERENCES firms(id)
);
`

func (d *DB) applySchema() error {
	if _, err := d.conn.Exec(schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	// Lightweight, idempotent migration for DB files created before
	// soft_rule_rows carried a timestamp.
	if err := ensureColumn(d.conn, "soft_rule_rows", "created_at", "DATETIME DEFAULT CURRENT_TIMESTAMP"); err != nil {
		return err
	}
	return nil
}

// ensureColumn adds a column if it does not already exist, so applySchema can
// run against an existing DB file any number of times.
func ensureColumn(conn *sql.DB, table, column, definition string) error {
	exists, err := columnExists(conn, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := conn.Exec(alter); err != nil {
		return fmt.Errorf("store: alter table %s add column %s: %w", table, column, err)
	}
	return nil
}

func columnExists(conn *sql.DB, table, column string) (bool, error) {
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, fmt.Errorf("store: pragma table_info(%s): %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
