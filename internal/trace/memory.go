package trace

import "sync"

// MemoryStore keeps events in memory. Used for replaying recorded traces
// without mutating the original file, and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

// NewMemoryStore creates a store seeded with the given events.
func NewMemoryStore(seed []Event) *MemoryStore {
	s := &MemoryStore{}
	s.events = append(s.events, seed...)
	return s
}

func (s *MemoryStore) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStore) Events() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
