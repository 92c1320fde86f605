package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sentinel/internal/logging"
)

// JSONLStore persists events as line-delimited JSON, one object per line.
// The file is append-only; readers tolerate a trailing partial line left by
// a crashed writer by skipping anything that does not parse.
type JSONLStore struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewJSONLStore creates a store at path, creating parent directories as
// needed. The file itself is created lazily on first append.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}
	return &JSONLStore{path: path}, nil
}

// Path returns the backing file path.
func (s *JSONLStore) Path() string {
	return s.path
}

// Append writes one event as a JSON line and flushes it to disk.
func (s *JSONLStore) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		s.f = f
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := s.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync trace file: %w", err)
	}
	return nil
}

// Events re-reads the file and returns all parseable events in append order.
// Blank and malformed lines are skipped.
func (s *JSONLStore) Events() ([]Event, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()

	var events []Event
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace file: %w", err)
	}
	if skipped > 0 {
		logging.Trace("skipped %d malformed trace lines in %s", skipped, s.path)
	}
	return events, nil
}

// Close closes the underlying file. Idempotent.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// LoadEvents reads a finished run's trace for replay and reporting.
func LoadEvents(path string) ([]Event, error) {
	store, err := NewJSONLStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Events()
}
