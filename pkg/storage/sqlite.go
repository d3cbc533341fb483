// Package storage opens the shared SQLite database and applies the schema.
// The hosts and cache tables are owned by their respective stores; nothing
// outside pkg/hosts and pkg/cache writes them.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS github_hosts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner TEXT NOT NULL,
	name TEXT NOT NULL,
	full_name TEXT UNIQUE NOT NULL,
	description TEXT,
	url TEXT,
	clone_url TEXT,
	ssh_url TEXT,
	language TEXT,
	stars INTEGER DEFAULT 0,
	forks INTEGER DEFAULT 0,
	created_at TEXT,
	updated_at TEXT,
	pushed_at TEXT,
	cached_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS api_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	signature TEXT UNIQUE NOT NULL,
	endpoint TEXT NOT NULL,
	params_json TEXT,
	response_json TEXT NOT NULL,
	cached_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hosts_full_name ON github_hosts(full_name);
CREATE INDEX IF NOT EXISTS idx_hosts_language ON github_hosts(language);
CREATE INDEX IF NOT EXISTS idx_cache_signature ON api_cache(signature);
`

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema. Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; WAL keeps readers unblocked.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}
