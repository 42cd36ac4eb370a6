package graph

// Reserved node names.
const (
	// START names the virtual node before the entry point. It cannot be
	// registered, used as an entry point or used as an edge source.
	START = "__start__"

	// END is the terminal node identifier.
	// Use this as an edge target to indicate the graph should terminate.
	END = "__end__"
)

// State is the contract a graph's state type must satisfy.
//
// Clone returns an independent copy. Merge folds other into the receiver
// and returns the result without modifying either input.
type State[S any] interface {
	Clone() S
	Merge(other S) S
}

// Differ is implemented by state types that can describe what changed
// since an earlier value. StreamUpdates uses it to emit deltas.
type Differ[S any] interface {
	Diff(prev S) S
}

// Node is a unit of work in a graph. Process receives the current state and
// returns the next one.
//
// A compiled graph shares its nodes between concurrent runs, so
// implementations must not keep per-run data in their own fields.
type Node[S any] interface {
	Process(ctx Context, state S) (S, error)
}

// NodeFunc adapts an ordinary function to Node.
//
// Example:
//
//	func increment(ctx graph.Context, s Counter) (Counter, error) {
//	    s.Value++
//	    return s, nil
//	}
//
//	g.AddNode("inc", graph.NodeFunc[Counter](increment))
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// Process calls f(ctx, state).
func (f NodeFunc[S]) Process(ctx Context, state S) (S, error) {
	return f(ctx, state)
}

// Router picks the next hop for a conditional edge.
//
// Without a path map the returned key is the destination node name (or END).
// With a path map the key is looked up in the map.
//
// Example:
//
//	func route(ctx graph.Context, s State) string {
//	    if s.Done {
//	        return graph.END
//	    }
//	    return "process"
//	}
type Router[S any] func(ctx Context, state S) string
