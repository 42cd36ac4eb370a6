// Package checkpoint provides persistent, thread-keyed snapshots of graph runs.
//
// Each thread owns an append-only history of checkpoints. Get returns the most
// recent one, List returns the whole history oldest first. Three backends are
// provided: MemoryStore for tests, SQLiteStore for single-process use and
// RedisStore for sharing threads between processes. Open builds one of them
// from a config section.
package checkpoint

import (
	"context"
	"errors"
)

// Store persists checkpoints per thread.
// Implementations must be safe for concurrent use and serialize appends
// to the same thread.
type Store interface {
	// Put appends cp to the thread's history. Existing checkpoints are
	// never overwritten. The store assigns ThreadID and Sequence.
	Put(ctx context.Context, cfg ThreadConfig, cp Checkpoint) error

	// Get returns the most recent checkpoint for the thread.
	// ok is false (with a nil error) when the thread has none.
	Get(ctx context.Context, cfg ThreadConfig) (cp Checkpoint, ok bool, err error)

	// List returns every checkpoint for the thread, oldest first.
	// Returns an empty slice (not an error) if the thread has none.
	List(ctx context.Context, cfg ThreadConfig) ([]Checkpoint, error)

	// DeleteThread removes the thread's history.
	// Returns nil if the thread has no checkpoints.
	DeleteThread(ctx context.Context, cfg ThreadConfig) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for checkpoint operations.
var (
	// ErrThreadIDRequired indicates a ThreadConfig with an empty ThreadID.
	ErrThreadIDRequired = errors.New("checkpoint: thread id required")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrUnknownBackend indicates Open was asked for a backend it does not know.
	ErrUnknownBackend = errors.New("checkpoint: unknown backend")
)
