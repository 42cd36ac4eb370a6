package graph

import (
	"log/slog"

	"github.com/dnw3/synaptic-sub002/pkg/graph/callback"
	"github.com/dnw3/synaptic-sub002/pkg/graph/checkpoint"
	"github.com/dnw3/synaptic-sub002/pkg/graph/observability"
)

// StreamMode selects what Stream events carry.
type StreamMode int

const (
	// StreamValues emits the full state after every step.
	StreamValues StreamMode = iota
	// StreamUpdates emits what the step changed, when the state implements
	// Differ. Otherwise it behaves like StreamValues.
	StreamUpdates
)

// String returns "values" or "updates".
func (m StreamMode) String() string {
	if m == StreamUpdates {
		return "updates"
	}
	return "values"
}

// runConfig holds configuration for graph execution.
type runConfig struct {
	// maxSteps bounds the number of node executions. Zero means unbounded.
	maxSteps int
	runID    string

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	callbacks      []callback.Handler

	streamMode StreamMode

	store                  checkpoint.Store
	thread                 checkpoint.ThreadConfig
	checkpointFailureFatal bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		metrics:                observability.NoopMetrics{},
		spans:                  observability.NoopSpanManager{},
		checkpointFailureFatal: true,
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxSteps bounds the number of node executions in a run.
// Default: unbounded. A graph that cycles forever runs until its context is
// cancelled unless a bound is set. Exceeding the bound returns a
// *MaxStepsError.
//
// Panics if n is negative. Zero removes the bound.
//
// Example:
//
//	result, err := compiled.Invoke(ctx, state, graph.WithMaxSteps(25))
func WithMaxSteps(n int) RunOption {
	if n < 0 {
		panic("graph: max steps must be >= 0")
	}
	return func(c *runConfig) {
		c.maxSteps = n
	}
}

// WithRunID sets the run identifier, overriding the Context's.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithObservabilityLogger enables run and node lifecycle logging.
// Pass nil to disable (the default).
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans through the global tracer provider.
// Node contexts carry the node span, so model and tool calls made inside a
// node are traced as its children.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithCallbacks registers handlers for run lifecycle events.
// Repeated use appends.
func WithCallbacks(handlers ...callback.Handler) RunOption {
	return func(c *runConfig) {
		c.callbacks = append(c.callbacks, handlers...)
	}
}

// WithStreamMode selects what Stream events carry. Default: StreamValues.
func WithStreamMode(mode StreamMode) RunOption {
	return func(c *runConfig) {
		c.streamMode = mode
	}
}

// WithCheckpointer snapshots the state and next node into store after every
// successful step. Checkpointing is off unless this option is given.
//
// A failing snapshot aborts the run with a *CheckpointError. Use
// WithCheckpointFailureNonFatal to log and continue instead.
func WithCheckpointer(store checkpoint.Store, thread checkpoint.ThreadConfig) RunOption {
	return func(c *runConfig) {
		c.store = store
		c.thread = thread
	}
}

// WithCheckpointFailureNonFatal logs checkpoint failures instead of aborting.
func WithCheckpointFailureNonFatal() RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = false
	}
}
