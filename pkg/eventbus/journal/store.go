// Package journal records the outcome of handler invocations.
//
// A journal is an audit trail. It is written after a handler returns and is
// never read back by the bus: nothing recorded here is redelivered.
//
// Two implementations are provided:
//   - MemoryStore for tests and short-lived processes
//   - SQLiteStore for a file-backed log that survives restarts
package journal

import (
	"context"
	"errors"
	"time"
)

// Outcome classifies a handler invocation.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
	OutcomePanic Outcome = "panic"
)

// Entry is one journaled handler invocation.
type Entry struct {
	Seq        int64         `json:"seq"`
	EnvelopeID string        `json:"envelope_id"`
	EventName  string        `json:"event_name"`
	HandlerID  string        `json:"handler_id"`
	Outcome    Outcome       `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	EventName string
	HandlerID string
	Outcome   Outcome
	// Limit caps the number of entries returned; 0 means no limit.
	Limit int
}

func (f Filter) matches(e Entry) bool {
	if f.EventName != "" && f.EventName != e.EventName {
		return false
	}
	if f.HandlerID != "" && f.HandlerID != e.HandlerID {
		return false
	}
	if f.Outcome != "" && f.Outcome != e.Outcome {
		return false
	}
	return true
}

// Store persists journal entries.
type Store interface {
	// Record appends an entry. Seq is assigned by the store.
	Record(ctx context.Context, e Entry) error

	// List returns matching entries ordered by Seq ascending.
	List(ctx context.Context, f Filter) ([]Entry, error)

	// Prune deletes entries recorded before the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int, error)

	// Close releases resources. Further calls return ErrStoreClosed.
	Close() error
}

// ErrStoreClosed is returned when operating on a closed store.
var ErrStoreClosed = errors.New("journal store closed")

// MemoryPath selects the in-memory store in Open.
const MemoryPath = ":memory:"

// Open returns a MemoryStore for MemoryPath and a SQLiteStore otherwise.
func Open(path string) (Store, error) {
	if path == MemoryPath {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(path)
}
