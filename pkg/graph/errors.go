package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntryPoint() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrNodeNotFound indicates a reference to a node that is not registered.
	ErrNodeNotFound = errors.New("node not found")

	// ErrReservedName indicates START or END was used as a node name or entry point.
	ErrReservedName = errors.New("reserved node name")

	// ErrDuplicateNode indicates a node name was registered twice.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrEmptyName indicates a node was registered with an empty name.
	ErrEmptyName = errors.New("node name cannot be empty")

	// ErrNilNode indicates a nil node was registered.
	ErrNilNode = errors.New("node cannot be nil")

	// ErrNilRouter indicates a conditional edge was added with a nil router.
	ErrNilRouter = errors.New("router cannot be nil")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates a run was started with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNoOutgoingEdge indicates a non-terminal node has no outgoing edge.
	ErrNoOutgoingEdge = errors.New("no outgoing edge")

	// ErrPathMapKey indicates a router returned a key missing from its path map.
	ErrPathMapKey = errors.New("router key not in path map")

	// ErrInvalidRouterResult indicates a router function returned an empty string.
	ErrInvalidRouterResult = errors.New("router returned empty string")

	// ErrMaxSteps indicates the run exceeded the bound set by WithMaxSteps.
	ErrMaxSteps = errors.New("exceeded maximum steps")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrSerializeState indicates state serialization failed.
	ErrSerializeState = errors.New("failed to serialize state")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrNoCheckpoints indicates no checkpoints exist for the thread.
	ErrNoCheckpoints = errors.New("no checkpoints found for thread")

	// ErrInvalidResumeNode indicates the checkpoint's next node doesn't exist in the graph.
	ErrInvalidResumeNode = errors.New("invalid resume node")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")

	// ErrNilStore indicates a checkpoint operation was given a nil store.
	ErrNilStore = errors.New("checkpoint store is nil")
)

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// NodeID is the node after which checkpointing failed.
	NodeID string
	// Op is the operation that failed ("serialize", "put").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
// Unwrap yields the node's own error unchanged.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("execute", "lookup").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError captures the state when execution was cancelled.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// State is the state at cancellation (can type-assert to the actual type).
	State any
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError wraps errors from edge resolution.
type RouterError struct {
	// FromNode is the node whose outgoing edge failed.
	FromNode string
	// Returned is the value the router returned, if any.
	Returned string
	// Err is ErrNoOutgoingEdge, ErrPathMapKey or ErrInvalidRouterResult.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	if e.Err == ErrNoOutgoingEdge {
		return fmt.Sprintf("node %s: %v", e.FromNode, e.Err)
	}
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxStepsError reports a run stopped by WithMaxSteps.
// It includes the state at termination for inspection.
type MaxStepsError struct {
	// Max is the configured step bound.
	Max int
	// NodeID is the node that would have executed next.
	NodeID string
	// State is the state at termination (can type-assert to the actual type).
	State any
}

// Error implements the error interface.
func (e *MaxStepsError) Error() string {
	return fmt.Sprintf("exceeded maximum steps (%d) at node %s", e.Max, e.NodeID)
}

// Unwrap returns ErrMaxSteps for errors.Is support.
func (e *MaxStepsError) Unwrap() error {
	return ErrMaxSteps
}
