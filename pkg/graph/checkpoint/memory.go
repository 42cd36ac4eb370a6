package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory checkpoint store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]Checkpoint // threadID -> history, oldest first
	closed  bool
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string][]Checkpoint),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, cfg ThreadConfig, cp Checkpoint) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	history := m.threads[cfg.ThreadID]
	m.threads[cfg.ThreadID] = append(history, cp.stamp(cfg, len(history)+1))
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, cfg ThreadConfig) (Checkpoint, bool, error) {
	if err := cfg.validate(); err != nil {
		return Checkpoint{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Checkpoint{}, false, ErrStoreClosed
	}

	history := m.threads[cfg.ThreadID]
	if len(history) == 0 {
		return Checkpoint{}, false, nil
	}
	return history[len(history)-1].clone(), true, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, cfg ThreadConfig) ([]Checkpoint, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.threads[cfg.ThreadID]
	result := make([]Checkpoint, len(history))
	for i, cp := range history {
		result[i] = cp.clone()
	}
	return result, nil
}

// DeleteThread implements Store.
func (m *MemoryStore) DeleteThread(_ context.Context, cfg ThreadConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.threads, cfg.ThreadID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.threads = nil
	return nil
}

// Len returns the total number of checkpoints across all threads.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, history := range m.threads {
		count += len(history)
	}
	return count
}
