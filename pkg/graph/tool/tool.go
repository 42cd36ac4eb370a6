// Package tool provides tools callable by a model and the graph node that
// executes the tool calls found in an agent's last message.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	gerrors "github.com/dnw3/synaptic-sub002/pkg/graph/errors"
)

// ErrToolNotFound indicates a call to a tool that is not registered.
var ErrToolNotFound = errors.New("tool not found")

// Definition is the model-facing description of a tool.
// Parameters is a JSON Schema object.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool is a callable capability. Call returns a string (used verbatim as
// the tool result) or any JSON-encodable value.
type Tool interface {
	Definition() Definition
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// Executor runs a tool by name.
type Executor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, name string, args json.RawMessage) (any, error)

// Execute calls f(ctx, name, args).
func (f ExecutorFunc) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	return f(ctx, name, args)
}

// Registry is an Executor backed by a set of named tools.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns a registry holding tools.
// A later tool with the same name replaces an earlier one.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Definition().Name] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tools))
}

// Definitions returns the definitions of every tool, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, name := range slices.Sorted(maps.Keys(r.tools)) {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute implements Executor.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t.Call(ctx, args)
}

// Function is a Tool backed by a Go function.
type Function struct {
	def Definition
	fn  func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewFunction returns a tool named name. params is the JSON Schema of the
// arguments object; nil means the tool takes no arguments.
//
// Example:
//
//	add := tool.NewFunction("add", "Add two integers", map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	        "a": map[string]any{"type": "integer"},
//	        "b": map[string]any{"type": "integer"},
//	    },
//	    "required": []string{"a", "b"},
//	}, func(ctx context.Context, args json.RawMessage) (any, error) {
//	    var in struct{ A, B int }
//	    if err := json.Unmarshal(args, &in); err != nil {
//	        return nil, err
//	    }
//	    return in.A + in.B, nil
//	})
func NewFunction(name, description string, params map[string]any, fn func(ctx context.Context, args json.RawMessage) (any, error)) *Function {
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &Function{
		def: Definition{Name: name, Description: description, Parameters: params},
		fn:  fn,
	}
}

// Definition implements Tool.
func (f *Function) Definition() Definition {
	return f.def
}

// Call implements Tool.
func (f *Function) Call(ctx context.Context, args json.RawMessage) (any, error) {
	return f.fn(ctx, args)
}

// Typed wraps a function taking a decoded argument struct. Arguments are
// decoded with encoding/json; an empty argument payload decodes as {}.
func Typed[In any](fn func(ctx context.Context, in In) (any, error)) func(ctx context.Context, args json.RawMessage) (any, error) {
	return func(ctx context.Context, args json.RawMessage) (any, error) {
		var in In
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, &gerrors.DecodeError{What: "tool arguments", Input: string(args), Err: err}
		}
		return fn(ctx, in)
	}
}
