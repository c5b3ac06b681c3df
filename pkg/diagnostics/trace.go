// Package diagnostics provides a write-only SQLite trace journal for
// rejected ingestion lines and client connection lifecycle events. It is
// never read back into the live in-memory PGN store: n2kd's actual
// application state stays pure in-memory and is lost on restart, by design.
// Only the separate n2kctl diag subcommand reads this journal.
package diagnostics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// EventKind distinguishes the two classes of trace record.
type EventKind string

const (
	// EventReject records a line the ingester dropped.
	EventReject EventKind = "reject"
	// EventConnection records a client accept or close.
	EventConnection EventKind = "connection"
)

// Trace owns the write-only SQLite journal.
type Trace struct {
	db   *sql.DB
	path string
}

// Path returns the underlying SQLite file path.
func (t *Trace) Path() string {
	return t.path
}

// Open initializes a SQLite database at path, applying pragmas tuned for an
// append-only write workload, and ensures the schema exists.
func Open(path string) (*Trace, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	tr := &Trace{db: db, path: path}
	if err := tr.init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return tr, nil
}

// Close releases database resources.
func (t *Trace) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

func (t *Trace) init(ctx context.Context) error {
	if t == nil || t.db == nil {
		return errors.New("nil trace")
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	ddl := `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL,
		line TEXT
	);`
	if _, err := t.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RecordReject appends a rejected-line event. at is the ingester's current
// epoch-seconds clock, reason is the short rejection code from pkg/ingest.
func (t *Trace) RecordReject(at int64, reason string, line string) error {
	if t == nil || t.db == nil {
		return nil
	}
	_, err := t.db.Exec(`INSERT INTO events(at, kind, detail, line) VALUES(?,?,?,?)`,
		at, string(EventReject), reason, line)
	return err
}

// RecordConnection appends a connection lifecycle event, e.g. "accept" or
// "close", with a free-form detail string (peer address, client kind, slot
// index) useful for later operator inspection.
func (t *Trace) RecordConnection(at int64, detail string) error {
	if t == nil || t.db == nil {
		return nil
	}
	_, err := t.db.Exec(`INSERT INTO events(at, kind, detail, line) VALUES(?,?,?,NULL)`,
		at, string(EventConnection), detail)
	return err
}

// Event is one row of the trace journal, returned by Recent.
type Event struct {
	At     int64
	Kind   EventKind
	Detail string
	Line   string
}

// Recent returns up to limit most recent events, newest first. This is the
// only read path into the trace journal, used by n2kctl diag; it is never
// consulted by the running daemon.
func Recent(path string, limit int) ([]Event, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT at, kind, detail, COALESCE(line, '') FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(&e.At, &kind, &e.Detail, &e.Line); err != nil {
			return nil, err
		}
		e.Kind = EventKind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}
