package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dnw3/synaptic-sub002/pkg/graph/callback"
)

// Context provides execution context to nodes and routers.
// It extends context.Context with run metadata, a logger, the control
// override channel and the callback sink.
//
// The runtime derives a fresh Context for every step, so values such as
// NodeID and Step describe the node currently running.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run, node and
	// thread context during a run. Never returns nil.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// ThreadID returns the checkpoint thread of the run, or "".
	ThreadID() string

	// NodeID returns the node being executed.
	// Empty string outside a run.
	NodeID() string

	// Step returns the 1-based index of the current step, or 0 outside a run.
	Step() int

	// Goto overrides the edge table: after this step the run continues at
	// node. The last call within a step wins. Calls from a router or outside
	// a run are logged and ignored.
	Goto(node string)

	// End stops the run after this step, returning the step's state.
	End()

	// Callbacks returns the run's callback sink. Never returns nil.
	Callbacks() callback.Handler

	// Emit sends ev to the callback sink, filling in run, thread, node,
	// step and time.
	Emit(ev callback.Event)
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger    *slog.Logger
	runID     string
	threadID  string
	nodeID    string
	step      int
	control   *Control
	callbacks callback.Handler
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) RunID() string        { return c.runID }
func (c *executionContext) ThreadID() string     { return c.threadID }
func (c *executionContext) NodeID() string       { return c.nodeID }
func (c *executionContext) Step() int            { return c.step }

// Callbacks returns the callback sink.
func (c *executionContext) Callbacks() callback.Handler {
	return c.callbacks
}

// Goto implements Context.
func (c *executionContext) Goto(node string) {
	if c.control == nil {
		c.logger.Warn("goto ignored outside a node", slog.String("target", node))
		return
	}
	c.control.Goto(node)
}

// End implements Context.
func (c *executionContext) End() {
	if c.control == nil {
		c.logger.Warn("end ignored outside a node")
		return
	}
	c.control.End()
}

// Emit implements Context.
func (c *executionContext) Emit(ev callback.Event) {
	ev.RunID = c.runID
	ev.ThreadID = c.threadID
	if ev.NodeID == "" {
		ev.NodeID = c.nodeID
	}
	if ev.Step == 0 {
		ev.Step = c.step
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	c.callbacks.Handle(c, ev)
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id, node_id and thread_id during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// WithThreadID sets the thread identifier reported by the context.
// WithCheckpointer sets it implicitly.
func WithThreadID(id string) ContextOption {
	return func(c *executionContext) {
		c.threadID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := graph.NewContext(context.Background(),
//	    graph.WithLogger(myLogger),
//	    graph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context:   ctx,
		logger:    slog.Default(),
		runID:     uuid.New().String(),
		callbacks: callback.Noop{},
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// runContext builds the per-run base context. parent may be any Context
// implementation; std carries the tracing span.
func runContext(parent Context, std context.Context, runID, threadID string, control *Control, callbacks callback.Handler) *executionContext {
	logger := parent.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return &executionContext{
		Context:   std,
		logger:    logger,
		runID:     runID,
		threadID:  threadID,
		control:   control,
		callbacks: callbacks,
	}
}

// forRouter returns a copy without the control slot. Routers run after the
// step's command has been taken, so an override set there would leak into
// the following step.
func (c *executionContext) forRouter() *executionContext {
	rc := *c
	rc.control = nil
	return &rc
}

// withNode returns a copy scoped to one step.
func (c *executionContext) withNode(std context.Context, nodeID string, step int) *executionContext {
	attrs := []any{
		slog.String("run_id", c.runID),
		slog.String("node_id", nodeID),
		slog.Int("step", step),
	}
	if c.threadID != "" {
		attrs = append(attrs, slog.String("thread_id", c.threadID))
	}
	return &executionContext{
		Context:   std,
		logger:    c.logger.With(attrs...),
		runID:     c.runID,
		threadID:  c.threadID,
		nodeID:    nodeID,
		step:      step,
		control:   c.control,
		callbacks: c.callbacks,
	}
}
