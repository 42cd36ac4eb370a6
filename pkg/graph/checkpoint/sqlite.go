package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists checkpoints to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite checkpoint store.
// The path should be a file path (e.g., "./checkpoints.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			version INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			next_node TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			state BLOB NOT NULL,
			metadata TEXT,
			PRIMARY KEY (thread_id, sequence)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, cfg ThreadConfig, cp Checkpoint) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	cp = cp.stamp(cfg, 0)
	metadata, err := encodeMetadata(cp.Metadata)
	if err != nil {
		return err
	}
	state := []byte(cp.State)
	if state == nil {
		state = []byte("null")
	}

	// Sequence is max + 1 for this thread, computed in the same statement.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, sequence, version, node_id, next_node, timestamp, state, metadata)
		VALUES (
			?,
			COALESCE((SELECT MAX(sequence) FROM checkpoints WHERE thread_id = ?), 0) + 1,
			?, ?, ?, ?, ?, ?
		)
	`, cfg.ThreadID, cfg.ThreadID, cp.Version, cp.NodeID, cp.NextNode,
		cp.Timestamp.Format(time.RFC3339Nano), state, metadata)
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, cfg ThreadConfig) (Checkpoint, bool, error) {
	if err := cfg.validate(); err != nil {
		return Checkpoint{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Checkpoint{}, false, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT sequence, version, node_id, next_node, timestamp, state, metadata
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY sequence DESC
		LIMIT 1
	`, cfg.ThreadID)

	cp, err := scanCheckpoint(row, cfg.ThreadID)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, true, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, cfg ThreadConfig) ([]Checkpoint, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, version, node_id, next_node, timestamp, state, metadata
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY sequence
	`, cfg.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	result := []Checkpoint{}
	for rows.Next() {
		cp, err := scanCheckpoint(rows, cfg.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		result = append(result, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return result, nil
}

// DeleteThread implements Store.
func (s *SQLiteStore) DeleteThread(ctx context.Context, cfg ThreadConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, cfg.ThreadID); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner, threadID string) (Checkpoint, error) {
	var (
		cp        Checkpoint
		timestamp string
		state     []byte
		metadata  sql.NullString
	)
	if err := row.Scan(&cp.Sequence, &cp.Version, &cp.NodeID, &cp.NextNode, &timestamp, &state, &metadata); err != nil {
		return Checkpoint{}, err
	}

	cp.ThreadID = threadID
	cp.State = json.RawMessage(state)
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("decode timestamp: %w", err)
	}
	cp.Timestamp = ts

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &cp.Metadata); err != nil {
			return Checkpoint{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return cp, nil
}

func encodeMetadata(md map[string]string) (sql.NullString, error) {
	if len(md) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
