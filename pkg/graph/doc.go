/*
Package graph provides a stateful graph engine for agent workflows.

# Overview

A caller registers named nodes over one shared state type, connects them
with direct or conditional edges, compiles the result and runs it until a
node routes to END. Cycles are allowed, which is what makes the agent loop
possible: a model node and a tools node hand control back and forth until
the model stops asking for tools. The prebuilt package assembles exactly
that graph.

# Basic Usage

The state type must implement State (Clone and Merge):

	type Counter struct{ Value int }

	func (c Counter) Clone() Counter              { return c }
	func (c Counter) Merge(o Counter) Counter     { return Counter{Value: c.Value + o.Value} }

	g := graph.NewGraph[Counter]().
	    AddNodeFunc("inc", func(ctx graph.Context, c Counter) (Counter, error) {
	        c.Value++
	        return c, nil
	    }).
	    AddEdge("inc", graph.END).
	    SetEntryPoint("inc")

	compiled, err := g.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	result, err := compiled.Invoke(graph.NewContext(context.Background()), Counter{})

# Conditional Routing

A router inspects the state after its node runs:

	g.AddConditionalEdges("review", func(ctx graph.Context, s Doc) string {
	    if s.Approved {
	        return "publish"
	    }
	    return "revise"
	})

With a path map the router returns a key that is translated to a node:

	g.AddConditionalEdgesWithPathMap("agent", shouldContinue, map[string]string{
	    "tools":   "tools",
	    graph.END: graph.END,
	})

A key missing from the map fails the run with ErrPathMapKey.

# Control Overrides

A node can bypass the edge table for the step it is running:

	func triage(ctx graph.Context, s Ticket) (Ticket, error) {
	    if s.Urgent {
	        ctx.Goto("escalate")
	    }
	    if s.Spam {
	        ctx.End()
	    }
	    return s, nil
	}

The last call wins. The override applies only to the step that issued it.

# Streaming

Stream yields an Event after every step and stops the run as soon as the
consumer stops iterating. StreamUpdates emits deltas when the state
implements Differ.

# Checkpointing

Checkpointing is opt-in. WithCheckpointer appends a snapshot of the state and
the next node to a checkpoint.Store after every step. Resume continues an
interrupted thread, Continue merges new input into a thread and runs again,
and Snapshot writes a checkpoint directly.

# Loops and Bounds

There is no implicit step limit. Use WithMaxSteps to bound a run, or cancel
its context.

# Error Handling

Compile returns every validation problem joined with errors.Join. Run errors
are typed: *NodeError wraps a node's error (errors.Is and errors.As see the
original), *PanicError carries a recovered panic, *RouterError reports an
edge that could not be resolved, *CancellationError and *MaxStepsError stop a
run early and *CheckpointError reports a failed snapshot.

# Observability

WithObservabilityLogger, WithMetrics and WithTracing enable slog logging,
OpenTelemetry metrics and OpenTelemetry spans. WithCallbacks registers
callback.Handler values that receive run, step, model and tool events.
*/
package graph
