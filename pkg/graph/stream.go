package graph

import "iter"

// Event is emitted by Stream after every step.
type Event[S any] struct {
	// Step is the 1-based index of the step within the run.
	Step int
	// Node is the node that just ran.
	Node string
	// State is the full state (StreamValues) or the step's delta (StreamUpdates).
	State S
	// Mode is the stream mode that produced the event.
	Mode StreamMode
}

// Stream runs the graph and yields one Event per step.
//
// Every iteration over the returned sequence is a fresh run. Breaking out of
// the loop stops the run before another node is scheduled; no goroutines are
// left behind. A run error is yielded once with a zero Event and ends the
// sequence.
//
// Example:
//
//	for ev, err := range compiled.Stream(ctx, initial, graph.WithStreamMode(graph.StreamUpdates)) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(ev.Node, ev.State)
//	}
func (cg *CompiledGraph[S]) Stream(ctx Context, initial S, opts ...RunOption) iter.Seq2[Event[S], error] {
	return func(yield func(Event[S], error) bool) {
		if ctx == nil {
			yield(Event[S]{}, ErrNilContext)
			return
		}

		cfg := newRunConfig(opts)
		onStep := func(step int, node string, prev, next S) bool {
			ev := Event[S]{Step: step, Node: node, Mode: cfg.streamMode}
			if d, ok := any(next).(Differ[S]); ok && cfg.streamMode == StreamUpdates {
				ev.State = d.Diff(prev)
			} else {
				ev.State = next.Clone()
			}
			return yield(ev, nil)
		}

		if _, err := cg.execute(ctx, initial, cg.entryPoint, &cfg, onStep); err != nil {
			yield(Event[S]{}, err)
		}
	}
}
