package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS preferences (
	name  TEXT NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (name, key)
);

CREATE TABLE IF NOT EXISTS entries (
	name TEXT PRIMARY KEY
);
`

// SQLite implements Provider on a SQLite database.
//
// Tables:
//
//	preferences(name, key, value)  PRIMARY KEY (name, key)
//	entries(name)                  marks entries that exist, even when empty
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, fmt.Errorf("prefs: mkdir: %w", err)
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("prefs: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prefs: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prefs: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Get returns the named entry, or nil when it was never set.
func (s *SQLite) Get(ctx context.Context, name string) (map[string]string, error) {
	var exists int
	err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM entries WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("prefs: lookup entry: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT key, value FROM preferences WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("prefs: query: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Set replaces every key of the entry within one transaction.
func (s *SQLite) Set(ctx context.Context, name string, values map[string]string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("prefs: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO entries (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("prefs: mark entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE name = ?`, name); err != nil {
		return fmt.Errorf("prefs: clear entry: %w", err)
	}
	if len(values) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO preferences (name, key, value) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prefs: prepare insert: %w", err)
		}
		defer stmt.Close()
		for k, v := range values {
			if _, err := stmt.ExecContext(ctx, name, k, v); err != nil {
				return fmt.Errorf("prefs: insert %q: %w", k, err)
			}
		}
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
