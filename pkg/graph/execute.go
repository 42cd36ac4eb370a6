package graph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dnw3/synaptic-sub002/pkg/graph/callback"
	"github.com/dnw3/synaptic-sub002/pkg/graph/checkpoint"
	"github.com/dnw3/synaptic-sub002/pkg/graph/observability"
)

// errStopped ends a run whose stream consumer stopped iterating.
var errStopped = errors.New("stream stopped")

// stepFunc observes a completed step. Returning false stops the run.
type stepFunc[S any] func(step int, node string, prev, next S) bool

func newRunConfig(opts []RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Invoke executes the graph from its entry point with the given initial state.
// Returns the state after the last step.
//
// On error, returns the state at the point of failure (useful for debugging).
//
// Each step:
//  1. Check for cancellation
//  2. Run the current node
//  3. Take a pending Goto or End issued by the node, if any
//  4. Otherwise resolve the node's outgoing edge
//  5. Checkpoint if WithCheckpointer was given
//  6. Repeat until END is reached or an error occurs
//
// Example:
//
//	ctx := graph.NewContext(context.Background())
//	result, err := compiled.Invoke(ctx, initialState)
//	if err != nil {
//	    // result contains state at point of failure
//	}
func (cg *CompiledGraph[S]) Invoke(ctx Context, initial S, opts ...RunOption) (S, error) {
	if ctx == nil {
		return initial, ErrNilContext
	}
	cfg := newRunConfig(opts)
	return cg.execute(ctx, initial, cg.entryPoint, &cfg, nil)
}

// InvokeFrom runs the graph starting at node instead of the entry point.
// Starting at END returns state unchanged.
func (cg *CompiledGraph[S]) InvokeFrom(ctx Context, state S, node string, opts ...RunOption) (S, error) {
	if ctx == nil {
		return state, ErrNilContext
	}
	cfg := newRunConfig(opts)
	return cg.execute(ctx, state, node, &cfg, nil)
}

// execute wraps the step loop with run-level logging, metrics, tracing and
// callbacks.
func (cg *CompiledGraph[S]) execute(ctx Context, state S, start string, cfg *runConfig, onStep stepFunc[S]) (result S, runErr error) {
	if cfg.store != nil && cfg.thread.ThreadID == "" {
		return state, checkpoint.ErrThreadIDRequired
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}
	threadID := cfg.thread.ThreadID
	if threadID == "" {
		threadID = ctx.ThreadID()
	}

	handlers := cfg.callbacks
	if parent := ctx.Callbacks(); parent != nil {
		if _, noop := parent.(callback.Noop); !noop {
			handlers = append([]callback.Handler{parent}, handlers...)
		}
	}

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, runID, start)

	var std context.Context = ctx
	if cfg.tracingEnabled {
		var runSpan trace.Span
		std, runSpan = cfg.spans.StartRunSpan(ctx, start, runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	base := runContext(ctx, std, runID, threadID, NewControl(), callback.Multi(handlers...))
	base.Emit(callback.Event{Kind: callback.RunStart, NodeID: start})

	var steps int
	result, steps, runErr = cg.runLoop(base, state, start, cfg, onStep)
	if runErr == errStopped {
		runErr = nil
	}

	duration := time.Since(startTime)
	cfg.metrics.RecordGraphRun(std, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, runID, runErr, float64(duration.Microseconds())/1000, lastNode(runErr))
		base.Emit(callback.Event{Kind: callback.RunError, Step: steps, Duration: duration, Err: runErr})
	} else {
		observability.LogRunComplete(cfg.logger, runID, float64(duration.Microseconds())/1000, steps)
		base.Emit(callback.Event{Kind: callback.RunEnd, Step: steps, Duration: duration})
	}

	return result, runErr
}

// runLoop is the step loop shared by Invoke, InvokeFrom, Stream and Resume.
// Returns the final state, the number of steps run and any error.
func (cg *CompiledGraph[S]) runLoop(base *executionContext, state S, start string, cfg *runConfig, onStep stepFunc[S]) (S, int, error) {
	current := start
	steps := 0

	for current != END {
		if err := base.Err(); err != nil {
			return state, steps, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  err,
			}
		}

		if cfg.maxSteps > 0 && steps >= cfg.maxSteps {
			return state, steps, &MaxStepsError{
				Max:    cfg.maxSteps,
				NodeID: current,
				State:  state,
			}
		}

		node, ok := cg.nodes[current]
		if !ok {
			return state, steps, &NodeError{
				NodeID: current,
				Op:     "lookup",
				Err:    fmt.Errorf("%w: %s", ErrNodeNotFound, current),
			}
		}

		steps++
		observability.LogNodeStart(cfg.logger, current, steps)

		nodeStd := base.Context
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeStd, nodeSpan = cfg.spans.StartNodeSpan(base.Context, current, steps)
		}
		nodeCtx := base.withNode(nodeStd, current, steps)

		nodeStart := time.Now()
		next, err := cg.executeNode(nodeCtx, node, current, state)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeStd, current, nodeDuration, err)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, err)
		}

		if err != nil {
			observability.LogNodeError(cfg.logger, current, err)
			return state, steps, err
		}
		observability.LogNodeComplete(cfg.logger, current, float64(nodeDuration.Microseconds())/1000)

		prev := state
		state = next

		to, err := cg.resolveNext(nodeCtx, cfg, current, state)
		if err != nil {
			return state, steps, err
		}

		if cfg.store != nil {
			if err := cg.saveCheckpoint(nodeCtx, cfg, current, steps, state, to); err != nil {
				return state, steps, err
			}
		}

		nodeCtx.Emit(callback.Event{Kind: callback.StepEnd, Duration: nodeDuration})

		if onStep != nil && !onStep(steps, current, prev, state) {
			return state, steps, errStopped
		}

		current = to
	}

	return state, steps, nil
}

// executeNode executes a single node with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (cg *CompiledGraph[S]) executeNode(ctx *executionContext, node Node[S], nodeID string, state S) (result S, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = node.Process(ctx, state)
	if err != nil {
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}
	return result, nil
}

// resolveNext picks the next node: a pending control override wins over the
// edge table.
func (cg *CompiledGraph[S]) resolveNext(ctx *executionContext, cfg *runConfig, current string, state S) (string, error) {
	if cmd, ok := ctx.control.TakeCommand(); ok {
		observability.LogCommand(cfg.logger, current, cmd.Kind.String(), cmd.Target)
		if cmd.Kind == CommandEnd {
			return END, nil
		}
		return cmd.Target, nil
	}
	return cg.route(ctx.forRouter(), current, state)
}

// route resolves the node's outgoing edge.
func (cg *CompiledGraph[S]) route(ctx Context, current string, state S) (next string, err error) {
	e, ok := cg.edges[current]
	if !ok {
		return "", &RouterError{FromNode: current, Err: ErrNoOutgoingEdge}
	}

	if e.kind == EdgeDirect {
		return e.target, nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				NodeID: current,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	key := e.router(ctx, state)
	if key == "" {
		return "", &RouterError{FromNode: current, Returned: key, Err: ErrInvalidRouterResult}
	}

	if e.pathMap == nil {
		return key, nil
	}

	dest, ok := e.pathMap[key]
	if !ok {
		return "", &RouterError{FromNode: current, Returned: key, Err: ErrPathMapKey}
	}
	return dest, nil
}

// lastNode extracts the failing node from a run error for logging.
func lastNode(err error) string {
	var (
		nodeErr   *NodeError
		panicErr  *PanicError
		routerErr *RouterError
		maxErr    *MaxStepsError
		cancelErr *CancellationError
		cpErr     *CheckpointError
	)
	switch {
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &routerErr):
		return routerErr.FromNode
	case errors.As(err, &maxErr):
		return maxErr.NodeID
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	case errors.As(err, &cpErr):
		return cpErr.NodeID
	}
	return ""
}
