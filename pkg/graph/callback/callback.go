// Package callback defines the run lifecycle event sink.
//
// Handlers are purely observational: they receive events as a run progresses
// and cannot influence routing or state. The graph runtime emits run and step
// events; the tool node and the prebuilt agent emit tool and model events.
package callback

import (
	"context"
	"sync"
	"time"
)

// Kind identifies the lifecycle point an Event describes.
type Kind int

const (
	RunStart Kind = iota
	StepEnd
	ModelStart
	ModelEnd
	ToolStart
	ToolEnd
	RunEnd
	RunError
)

// String returns the snake_case name used in logs.
func (k Kind) String() string {
	switch k {
	case RunStart:
		return "run_start"
	case StepEnd:
		return "step_end"
	case ModelStart:
		return "model_start"
	case ModelEnd:
		return "model_end"
	case ToolStart:
		return "tool_start"
	case ToolEnd:
		return "tool_end"
	case RunEnd:
		return "run_end"
	case RunError:
		return "run_error"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle point. Fields that do not apply to a Kind
// are left zero.
type Event struct {
	Kind     Kind
	Time     time.Time
	RunID    string
	ThreadID string
	NodeID   string
	Step     int

	// Tool events.
	ToolName   string
	ToolCallID string

	// Model events. Messages is the number of messages sent to the model.
	Messages int

	// Duration is set on end events.
	Duration time.Duration
	Err      error
}

// Handler receives lifecycle events. Implementations must be safe for
// concurrent use; parallel tool calls emit from several goroutines.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Noop discards every event.
type Noop struct{}

// Handle does nothing.
func (Noop) Handle(context.Context, Event) {}

type multi []Handler

func (m multi) Handle(ctx context.Context, ev Event) {
	for _, h := range m {
		h.Handle(ctx, ev)
	}
}

// Multi fans an event out to every non-nil handler in order.
func Multi(handlers ...Handler) Handler {
	var hs multi
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	switch len(hs) {
	case 0:
		return Noop{}
	case 1:
		return hs[0]
	}
	return hs
}

// Recorder keeps every event it receives. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle implements Handler.
func (r *Recorder) Handle(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in arrival order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
