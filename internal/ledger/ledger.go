// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a local SQLite record of replicated items and past
// runs. It is a best-effort convenience: losing the ledger only means a
// record may be replicated again, which the library service tolerates.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/refsync/pkg/types"
)

const defaultPath = "refsync.db"

// Ledger wraps the SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database and its schema.
func Open(cfg types.LedgerConfig) (*Ledger, error) {
	path := cfg.Path
	if path == "" {
		path = defaultPath
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS items (
	identifier    TEXT PRIMARY KEY,
	item_key      TEXT NOT NULL,
	title         TEXT,
	replicated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
`
	_, err := l.db.Exec(schema)
	return err
}

// Known reports whether the identifier was already replicated.
func (l *Ledger) Known(identifier string) (bool, error) {
	var n int
	err := l.db.QueryRow(`SELECT COUNT(*) FROM items WHERE identifier = ?`, identifier).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return n > 0, nil
}

// FilterKnown partitions records into those not yet replicated and the
// count of skipped, already-known ones. Records without an identifier are
// always kept.
func (l *Ledger) FilterKnown(records []types.Record) ([]types.Record, int, error) {
	var fresh []types.Record
	skipped := 0
	for _, r := range records {
		id := r.Identifier()
		if id == "" {
			fresh = append(fresh, r)
			continue
		}
		known, err := l.Known(id)
		if err != nil {
			return nil, 0, err
		}
		if known {
			skipped++
			continue
		}
		fresh = append(fresh, r)
	}
	return fresh, skipped, nil
}

// RecordItem notes a successfully replicated record. Re-recording the same
// identifier overwrites the previous row.
func (l *Ledger) RecordItem(identifier, itemKey, title string) error {
	_, err := l.db.Exec(
		`INSERT OR REPLACE INTO items (identifier, item_key, title, replicated_at) VALUES (?, ?, ?, ?)`,
		identifier, itemKey, title, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording item: %w", err)
	}
	return nil
}

// RecordRun appends one run summary row.
func (l *Ledger) RecordRun(started, finished time.Time, succeeded, failed int) error {
	_, err := l.db.Exec(
		`INSERT INTO runs (started_at, finished_at, succeeded, failed) VALUES (?, ?, ?, ?)`,
		started.UTC(), finished.UTC(), succeeded, failed,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}
