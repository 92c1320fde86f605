package trace

import "errors"

// ErrStoreClosed reports an append after Close.
var ErrStoreClosed = errors.New("trace store closed")

// Store is the capability contract for run-scoped event storage. Any backend
// implementing these three operations can be supervised against; sentinel
// ships a JSONL store and a SQLite store.
//
// The core calls a Store synchronously from a single logical thread. Backends
// shared across processes must provide their own serialization.
type Store interface {
	// Append adds an event to the store. It fails only on unrecoverable I/O,
	// which is propagated to the caller rather than retried here.
	Append(ev Event) error

	// Events returns all events appended so far, in append order. Each call
	// re-reads the backend, so iteration is restartable and bounded by the
	// events present at call time.
	Events() ([]Event, error)

	// Close releases resources. Idempotent.
	Close() error
}
