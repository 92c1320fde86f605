package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"sentinel/internal/logging"
)

// SQLiteStore persists events in a SQLite database. Append order is the
// autoincrement rowid, so Events returns records in exactly the order they
// were appended regardless of timestamp resolution.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// events table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		ts TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure events schema: %w", err)
	}

	logging.Trace("sqlite trace store ready at %s", path)
	return &SQLiteStore{db: db}, nil
}

// Append inserts one event row.
func (s *SQLiteStore) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("append event: store closed")
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO events (type, ts, payload) VALUES (?, ?, ?)`,
		string(ev.Type), ev.Timestamp.UTC().Format(time.RFC3339Nano), string(payload),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Events returns all events ordered by insertion sequence.
func (s *SQLiteStore) Events() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, fmt.Errorf("read events: store closed")
	}
	rows, err := s.db.Query(`SELECT type, ts, payload FROM events ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var typ, ts, payload string
		if err := rows.Scan(&typ, &ts, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev := Event{Type: Type(typ)}
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			logging.Trace("skipping event with bad timestamp %q", ts)
			continue
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			logging.Trace("skipping event with bad payload: %v", err)
			continue
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database connection. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
