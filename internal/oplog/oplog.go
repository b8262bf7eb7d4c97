// Package oplog provides a SQLite-backed operation log recording remote
// store failures and deal-won transitions for later inspection. It is
// append-only diagnostics, not an outbox: nothing is ever replayed from it.
package oplog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	kind       TEXT NOT NULL,
	collection TEXT NOT NULL DEFAULT '',
	op         TEXT NOT NULL DEFAULT '',
	record_id  INTEGER NOT NULL DEFAULT 0,
	message    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
`

// Event kinds.
const (
	KindRemoteFailure = "remote_failure"
	KindDealWon       = "deal_won"
)

// Event is one logged occurrence.
type Event struct {
	ID         int64     `json:"id"`
	At         time.Time `json:"at"`
	Kind       string    `json:"kind"`
	Collection string    `json:"collection,omitempty"`
	Op         string    `json:"op,omitempty"`
	RecordID   int64     `json:"record_id,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Log wraps the SQLite connection holding the event table.
type Log struct {
	conn *sql.DB
}

// Open opens (or creates) the database and applies the schema.
func Open(dsn string) (*Log, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("oplog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("oplog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("oplog: apply schema: %w", err)
	}
	return &Log{conn: conn}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.conn.Close()
}

// RemoteFailure records a failed remote store call. Implements crm.EventSink.
// Write errors are swallowed: the log must never fail an operation it
// observes.
func (l *Log) RemoteFailure(collection, op, message string) {
	_, _ = l.conn.Exec(
		`INSERT INTO events (kind, collection, op, message) VALUES (?, ?, ?, ?)`,
		KindRemoteFailure, collection, op, message)
}

// DealWon records a deal status transition landing on won.
func (l *Log) DealWon(id int64, name string) {
	_, _ = l.conn.Exec(
		`INSERT INTO events (kind, collection, op, record_id, message) VALUES (?, 'deal_c', 'update', ?, ?)`,
		KindDealWon, id, name)
}

// Recent returns the newest events, most recent first.
func (l *Log) Recent(limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := l.conn.Query(
		`SELECT id, at, kind, collection, op, record_id, message
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("oplog: recent: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.At, &e.Kind, &e.Collection, &e.Op, &e.RecordID, &e.Message); err != nil {
			return nil, fmt.Errorf("oplog: scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
