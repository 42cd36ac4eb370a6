package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dnw3/synaptic-sub002/pkg/graph/checkpoint"
	"github.com/dnw3/synaptic-sub002/pkg/graph/observability"
)

// Checkpoint metadata keys written by the runtime.
const (
	MetadataRunID = "run_id"
	MetadataStep  = "step"
)

// Snapshot stores state and the node to continue at as one checkpoint in the
// thread. Use it to seed a thread or to checkpoint outside a run. An empty
// next (or END) marks the thread as finished.
func Snapshot[S any](ctx context.Context, store checkpoint.Store, thread checkpoint.ThreadConfig, state S, next string) error {
	if store == nil {
		return ErrNilStore
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializeState, err)
	}
	if next == END {
		next = ""
	}

	return store.Put(ctx, thread, checkpoint.New("", data, next))
}

// saveCheckpoint persists the state after a step.
func (cg *CompiledGraph[S]) saveCheckpoint(ctx Context, cfg *runConfig, nodeID string, step int, state S, next string) error {
	data, err := json.Marshal(state)
	if err != nil {
		return checkpointFailure(ctx, cfg, nodeID, "serialize", fmt.Errorf("%w: %v", ErrSerializeState, err))
	}

	if next == END {
		next = ""
	}
	cp := checkpoint.New(nodeID, data, next).
		WithMetadata(MetadataRunID, ctx.RunID()).
		WithMetadata(MetadataStep, strconv.Itoa(step))

	if err := cfg.store.Put(ctx, cfg.thread, cp); err != nil {
		return checkpointFailure(ctx, cfg, nodeID, "put", err)
	}

	observability.LogCheckpoint(cfg.logger, nodeID, len(data))
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(len(data)))
	return nil
}

// checkpointFailure returns a *CheckpointError, or logs and returns nil when
// checkpoint failures are non-fatal.
func checkpointFailure(ctx Context, cfg *runConfig, nodeID, op string, err error) error {
	if cfg.checkpointFailureFatal {
		return &CheckpointError{NodeID: nodeID, Op: op, Err: err}
	}
	observability.LogCheckpointError(ctx.Logger(), nodeID, op, err)
	return nil
}

// loadLatest fetches and decodes the thread's most recent checkpoint.
// ok is false when the thread has none.
func (cg *CompiledGraph[S]) loadLatest(ctx context.Context, store checkpoint.Store, thread checkpoint.ThreadConfig) (state S, next string, ok bool, err error) {
	if store == nil {
		return state, "", false, ErrNilStore
	}

	cp, ok, err := store.Get(ctx, thread)
	if err != nil {
		return state, "", false, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return state, "", false, nil
	}

	if cp.Version != checkpoint.Version {
		return state, "", false, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	if err := json.Unmarshal(cp.State, &state); err != nil {
		return state, "", false, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	return state, cp.NextNode, true, nil
}

// Resume continues a thread from its latest checkpoint.
//
// The checkpointed state is decoded and the run re-enters at the
// checkpoint's next node. A finished thread (no next node) returns the
// stored state without running anything. Unless opts say otherwise, the
// resumed run keeps checkpointing into the same store and thread.
//
// Example:
//
//	// Previous run crashed after node B
//	// Resume continues from node C with state from B's checkpoint
//	result, err := compiled.Resume(ctx, store, checkpoint.ThreadConfig{ThreadID: "t-1"})
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, thread checkpoint.ThreadConfig, opts ...RunOption) (S, error) {
	var zero S
	if ctx == nil {
		return zero, ErrNilContext
	}

	state, next, ok, err := cg.loadLatest(ctx, store, thread)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, thread.ThreadID)
	}

	if next == "" || next == END {
		return state, nil
	}
	if !cg.HasNode(next) {
		return state, fmt.Errorf("%w: %s", ErrInvalidResumeNode, next)
	}

	cfg := newRunConfig(append([]RunOption{WithCheckpointer(store, thread)}, opts...))
	return cg.execute(ctx, state, next, &cfg, nil)
}

// Continue adds input to a thread and runs the graph.
//
// The thread's latest state is merged with input (stored state first). A
// thread interrupted mid-run continues at its next node; a finished or empty
// thread starts again at the entry point. The run checkpoints into the same
// thread, so repeated calls build a conversation.
//
// Example:
//
//	thread := checkpoint.ThreadConfig{ThreadID: "user-42"}
//	state, err := agent.Continue(ctx, store, thread, message.NewState(message.Human("hi")))
func (cg *CompiledGraph[S]) Continue(ctx Context, store checkpoint.Store, thread checkpoint.ThreadConfig, input S, opts ...RunOption) (S, error) {
	if ctx == nil {
		return input, ErrNilContext
	}

	stored, next, ok, err := cg.loadLatest(ctx, store, thread)
	if err != nil {
		return input, err
	}

	state, start := input, cg.entryPoint
	if ok {
		state = stored.Merge(input)
		if next != "" && next != END {
			if !cg.HasNode(next) {
				return state, fmt.Errorf("%w: %s", ErrInvalidResumeNode, next)
			}
			start = next
		}
	}

	cfg := newRunConfig(append([]RunOption{WithCheckpointer(store, thread)}, opts...))
	return cg.execute(ctx, state, start, &cfg, nil)
}
