package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInvoke_LinearFlow tests basic linear execution.
func TestInvoke_LinearFlow(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNodeFunc("inc1", increment).
		AddNodeFunc("inc2", increment).
		AddNodeFunc("inc3", increment).
		AddEdge("inc1", "inc2").
		AddEdge("inc2", "inc3").
		AddEdge("inc3", END).
		SetEntryPoint("inc1").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), Counter{Value: 0})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Value)
}

// TestInvoke_Composition checks that A -> B -> END computes B(A(s)).
func TestInvoke_Composition(t *testing.T) {
	double := func(ctx Context, c Counter) (Counter, error) { return Counter{Value: c.Value * 2}, nil }
	addTen := func(ctx Context, c Counter) (Counter, error) { return Counter{Value: c.Value + 10}, nil }

	compiled, err := NewGraph[Counter]().
		AddNodeFunc("A", double).
		AddNodeFunc("B", addTen).
		AddEdge("A", "B").
		AddEdge("B", END).
		SetEntryPoint("A").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), Counter{Value: 5})

	require.NoError(t, err)
	assert.Equal(t, 20, result.Value)
}

// TestInvoke_StatePassedBetweenNodes tests state flows correctly.
func TestInvoke_StatePassedBetweenNodes(t *testing.T) {
	var nodeAState, nodeBState testState

	nodeA := func(ctx Context, s testState) (testState, error) {
		nodeAState = s
		s.Step = 1
		return s, nil
	}
	nodeB := func(ctx Context, s testState) (testState, error) {
		nodeBState = s
		s.Step = 2
		return s, nil
	}

	compiled, err := NewGraph[testState]().
		AddNodeFunc("a", nodeA).
		AddNodeFunc("b", nodeB).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), testState{Initial: "test"})

	require.NoError(t, err)
	assert.Equal(t, "test", nodeAState.Initial)
	assert.Equal(t, 1, nodeBState.Step)
	assert.Equal(t, 2, result.Step)
}

func TestInvoke_ConditionalEdge(t *testing.T) {
	router := func(ctx Context, s testState) string {
		if s.GoLeft {
			return "left"
		}
		return "right"
	}

	tests := []struct {
		name   string
		goLeft bool
		want   []string
	}{
		{"left", true, []string{"start", "left"}},
		{"right", false, []string{"start", "right"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var executed []string
			compiled, err := NewGraph[testState]().
				AddNode("start", makeTrackingNode("start", &executed)).
				AddNode("left", makeTrackingNode("left", &executed)).
				AddNode("right", makeTrackingNode("right", &executed)).
				AddConditionalEdges("start", router).
				AddEdge("left", END).
				AddEdge("right", END).
				SetEntryPoint("start").
				Compile()
			require.NoError(t, err)

			_, err = compiled.Invoke(testCtx(), testState{GoLeft: tt.goLeft})

			require.NoError(t, err)
			assert.Equal(t, tt.want, executed)
		})
	}
}

// TestInvoke_ConditionalEdge_ToEND tests conditional routing directly to END.
func TestInvoke_ConditionalEdge_ToEND(t *testing.T) {
	var executed []string
	router := func(ctx Context, s testState) string {
		if s.Done {
			return END
		}
		return "continue"
	}

	compiled, err := NewGraph[testState]().
		AddNode("check", makeTrackingNode("check", &executed)).
		AddNode("continue", makeTrackingNode("continue", &executed)).
		AddConditionalEdges("check", router).
		AddEdge("continue", END).
		SetEntryPoint("check").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), testState{Done: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"check"}, executed)
}

func TestInvoke_PathMap(t *testing.T) {
	router := func(ctx Context, s testState) string {
		if s.GoLeft {
			return "go_left"
		}
		return "finish"
	}
	build := func(t *testing.T) *CompiledGraph[testState] {
		compiled, err := NewGraph[testState]().
			AddNode("start", makeProgressNode("start")).
			AddNode("left", makeProgressNode("left")).
			AddConditionalEdgesWithPathMap("start", router, map[string]string{
				"go_left": "left",
				"finish":  END,
			}).
			AddEdge("left", END).
			SetEntryPoint("start").
			Compile()
		require.NoError(t, err)
		return compiled
	}

	result, err := build(t).Invoke(testCtx(), testState{GoLeft: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "left"}, result.Progress)

	result, err = build(t).Invoke(testCtx(), testState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, result.Progress)
}

func TestInvoke_PathMapMissingKey(t *testing.T) {
	router := func(ctx Context, s testState) string { return "nowhere" }

	compiled, err := NewGraph[testState]().
		AddNode("start", makeProgressNode("start")).
		AddConditionalEdgesWithPathMap("start", router, map[string]string{"finish": END}).
		SetEntryPoint("start").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), testState{})

	assert.ErrorIs(t, err, ErrPathMapKey)
	var routerErr *RouterError
	require.ErrorAs(t, err, &routerErr)
	assert.Equal(t, "start", routerErr.FromNode)
	assert.Equal(t, "nowhere", routerErr.Returned)
	assert.Equal(t, []string{"start"}, result.Progress, "state after the last completed node is returned")
}

func TestInvoke_RouterReturnsEmpty(t *testing.T) {
	router := func(ctx Context, s testState) string { return "" }

	compiled, err := NewGraph[testState]().
		AddNodeFunc("start", passthrough[testState]).
		AddConditionalEdges("start", router).
		SetEntryPoint("start").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), testState{})

	assert.ErrorIs(t, err, ErrInvalidRouterResult)
}

func TestInvoke_RouterPanics(t *testing.T) {
	router := func(ctx Context, s testState) string { panic("router exploded") }

	compiled, err := NewGraph[testState]().
		AddNodeFunc("start", passthrough[testState]).
		AddConditionalEdges("start", router).
		SetEntryPoint("start").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), testState{})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "start", panicErr.NodeID)
	assert.Equal(t, "router exploded", panicErr.Value)
}

func TestInvoke_NoOutgoingEdge(t *testing.T) {
	compiled, err := NewGraph[testState]().
		AddNode("only", makeProgressNode("only")).
		SetEntryPoint("only").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), testState{})

	assert.ErrorIs(t, err, ErrNoOutgoingEdge)
	assert.ErrorContains(t, err, "node only")
}

// TestInvoke_Loop tests looping behavior with conditional exit.
func TestInvoke_Loop(t *testing.T) {
	var iterations int
	loopNode := func(ctx Context, s testState) (testState, error) {
		iterations++
		s.Count++
		return s, nil
	}
	router := func(ctx Context, s testState) string {
		if s.Count >= 3 {
			return END
		}
		return "loop"
	}

	compiled, err := NewGraph[testState]().
		AddNodeFunc("loop", loopNode).
		AddConditionalEdges("loop", router).
		SetEntryPoint("loop").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), testState{})

	require.NoError(t, err)
	assert.Equal(t, 3, iterations)
	assert.Equal(t, 3, result.Count)
}

func TestInvoke_NodeError(t *testing.T) {
	errBoom := errors.New("boom")

	compiled, err := NewGraph[testState]().
		AddNode("ok", makeProgressNode("ok")).
		AddNode("fail", makeFailingNode(errBoom)).
		AddEdge("ok", "fail").
		AddEdge("fail", END).
		SetEntryPoint("ok").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), testState{})

	assert.ErrorIs(t, err, errBoom)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "fail", nodeErr.NodeID)
	assert.Equal(t, "execute", nodeErr.Op)
	assert.Equal(t, []string{"ok"}, result.Progress)
}

func TestInvoke_NodePanic(t *testing.T) {
	compiled, err := NewGraph[testState]().
		AddNode("ok", makeProgressNode("ok")).
		AddNode("panic", makePanicNode("something went wrong")).
		AddEdge("ok", "panic").
		AddEdge("panic", END).
		SetEntryPoint("ok").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), testState{})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "panic", panicErr.NodeID)
	assert.Equal(t, "something went wrong", panicErr.Value)
	assert.Contains(t, panicErr.Stack, "runtime/debug.Stack")
	assert.Equal(t, []string{"ok"}, result.Progress)
}

func TestInvoke_NilContext(t *testing.T) {
	compiled := linearGraph()

	_, err := compiled.Invoke(nil, testState{})

	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInvoke_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := linearGraph().Invoke(NewContext(ctx), testState{Initial: "x"})

	assert.ErrorIs(t, err, context.Canceled)
	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "a", cancelErr.NodeID)
	assert.Equal(t, testState{Initial: "x"}, cancelErr.State)
	assert.Empty(t, result.Progress)
}

func TestInvoke_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelling := func(c Context, s testState) (testState, error) {
		cancel()
		s.Progress = append(s.Progress, "b")
		return s, nil
	}

	compiled, err := NewGraph[testState]().
		AddNode("a", makeProgressNode("a")).
		AddNodeFunc("b", cancelling).
		AddNode("c", makeProgressNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(NewContext(ctx), testState{})

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "c", cancelErr.NodeID)
	assert.Equal(t, []string{"a", "b"}, result.Progress)
}

func TestInvoke_Deadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	slow := func(c Context, s Counter) (Counter, error) {
		<-c.Done()
		return s, nil
	}
	compiled, err := NewGraph[Counter]().
		AddNodeFunc("slow", slow).
		AddEdge("slow", "slow").
		SetEntryPoint("slow").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(NewContext(ctx), Counter{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvoke_MaxSteps(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNodeFunc("loop", increment).
		AddEdge("loop", "loop").
		SetEntryPoint("loop").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), Counter{}, WithMaxSteps(5))

	assert.ErrorIs(t, err, ErrMaxSteps)
	var maxErr *MaxStepsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 5, maxErr.Max)
	assert.Equal(t, "loop", maxErr.NodeID)
	assert.Equal(t, Counter{Value: 5}, maxErr.State)
	assert.Equal(t, 5, result.Value)
}

func TestInvoke_MaxStepsNotReached(t *testing.T) {
	result, err := linearGraph().Invoke(testCtx(), testState{}, WithMaxSteps(3))

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.Progress)
}

func TestInvoke_Goto(t *testing.T) {
	var executed []string
	jumper := func(ctx Context, s testState) (testState, error) {
		executed = append(executed, "a")
		ctx.Goto("c")
		return s, nil
	}

	compiled, err := NewGraph[testState]().
		AddNodeFunc("a", jumper).
		AddNode("b", makeTrackingNode("b", &executed)).
		AddNode("c", makeTrackingNode("c", &executed)).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), testState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, executed, "Goto overrides the edge to b")
}

func TestInvoke_GotoLastWriteWins(t *testing.T) {
	var executed []string
	jumper := func(ctx Context, s testState) (testState, error) {
		ctx.Goto("b")
		ctx.Goto("c")
		return s, nil
	}

	compiled, err := NewGraph[testState]().
		AddNodeFunc("a", jumper).
		AddNode("b", makeTrackingNode("b", &executed)).
		AddNode("c", makeTrackingNode("c", &executed)).
		AddEdge("a", END).
		AddEdge("b", END).
		AddEdge("c", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), testState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, executed)
}

func TestInvoke_GotoOverridesRouter(t *testing.T) {
	routerCalled := false
	router := func(ctx Context, s testState) string {
		routerCalled = true
		return END
	}
	jumper := func(ctx Context, s testState) (testState, error) {
		s.Progress = append(s.Progress, "a")
		if len(s.Progress) < 3 {
			ctx.Goto("a")
		}
		return s, nil
	}

	compiled, err := NewGraph[testState]().
		AddNodeFunc("a", jumper).
		AddConditionalEdges("a", router).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), testState{})

	require.NoError(t, err)
	assert.Len(t, result.Progress, 3)
	assert.True(t, routerCalled, "router decides once no Goto is pending")
}

func TestInvoke_GotoFromRouterIgnored(t *testing.T) {
	logs, logger := newLogCapture()
	router := func(ctx Context, s testState) string {
		ctx.Goto("c")
		ctx.End()
		return "b"
	}

	compiled, err := NewGraph[testState]().
		AddNode("a", makeProgressNode("a")).
		AddNode("b", makeProgressNode("b")).
		AddNode("c", makeProgressNode("c")).
		AddConditionalEdges("a", router).
		AddEdge("b", END).
		AddEdge("c", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(NewContext(context.Background(), WithLogger(logger)), testState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.Progress, "router overrides must not leak into the next step")
	assert.Len(t, logs.withMsg("goto ignored outside a node"), 1)
	assert.Len(t, logs.withMsg("end ignored outside a node"), 1)
}

func TestInvoke_GotoUnknownNode(t *testing.T) {
	jumper := func(ctx Context, s testState) (testState, error) {
		ctx.Goto("ghost")
		return s, nil
	}

	compiled, err := NewGraph[testState]().
		AddNodeFunc("a", jumper).
		AddEdge("a", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), testState{})

	assert.ErrorIs(t, err, ErrNodeNotFound)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "ghost", nodeErr.NodeID)
	assert.Equal(t, "lookup", nodeErr.Op)
}

func TestInvoke_End(t *testing.T) {
	var executed []string
	stopper := func(ctx Context, s testState) (testState, error) {
		executed = append(executed, "a")
		s.Output = "stopped"
		ctx.End()
		return s, nil
	}

	compiled, err := NewGraph[testState]().
		AddNodeFunc("a", stopper).
		AddNode("b", makeTrackingNode("b", &executed)).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), testState{})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, executed)
	assert.Equal(t, "stopped", result.Output, "End returns the step's state")
}

func TestInvoke_EndOnNodeWithoutEdge(t *testing.T) {
	stopper := func(ctx Context, s Counter) (Counter, error) {
		ctx.End()
		return increment(ctx, s)
	}

	compiled, err := NewGraph[Counter]().
		AddNodeFunc("only", stopper).
		SetEntryPoint("only").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), Counter{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Value)
}

func TestInvoke_ControlIsPerRun(t *testing.T) {
	var once sync.Once
	node := func(ctx Context, s Counter) (Counter, error) {
		once.Do(ctx.End)
		return increment(ctx, s)
	}

	compiled, err := NewGraph[Counter]().
		AddNodeFunc("a", node).
		AddNodeFunc("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntryPoint("a").
		Compile()
	require.NoError(t, err)

	first, err := compiled.Invoke(testCtx(), Counter{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Value)

	second, err := compiled.Invoke(testCtx(), Counter{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Value, "an End from an earlier run does not leak")
}

func TestInvoke_ContextMetadata(t *testing.T) {
	type seen struct {
		node string
		step int
		run  string
	}
	var got []seen
	record := func(ctx Context, s Counter) (Counter, error) {
		got = append(got, seen{ctx.NodeID(), ctx.Step(), ctx.RunID()})
		return s, nil
	}

	compiled, err := NewGraph[Counter]().
		AddNodeFunc("first", record).
		AddNodeFunc("second", record).
		AddEdge("first", "second").
		AddEdge("second", END).
		SetEntryPoint("first").
		Compile()
	require.NoError(t, err)

	ctx := NewContext(context.Background(), WithContextRunID("ctx-run"))

	_, err = compiled.Invoke(ctx, Counter{})
	require.NoError(t, err)
	assert.Equal(t, []seen{{"first", 1, "ctx-run"}, {"second", 2, "ctx-run"}}, got)

	got = nil
	_, err = compiled.Invoke(ctx, Counter{}, WithRunID("override"))
	require.NoError(t, err)
	assert.Equal(t, "override", got[0].run)
}

func TestInvoke_ConcurrentRuns(t *testing.T) {
	compiled := linearGraph()

	var wg sync.WaitGroup
	errs := make([]error, 20)
	results := make([]testState, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = compiled.Invoke(testCtx(), testState{Initial: fmt.Sprint(i)})
		}()
	}
	wg.Wait()

	for i := range 20 {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprint(i), results[i].Initial)
		assert.Equal(t, []string{"a", "b", "c"}, results[i].Progress)
	}
}

func TestInvokeFrom(t *testing.T) {
	result, err := linearGraph().InvokeFrom(testCtx(), testState{Progress: []string{"seed"}}, "b")

	require.NoError(t, err)
	assert.Equal(t, []string{"seed", "b", "c"}, result.Progress)
}

func TestInvokeFrom_END(t *testing.T) {
	state := testState{Output: "unchanged"}

	result, err := linearGraph().InvokeFrom(testCtx(), state, END)

	require.NoError(t, err)
	assert.Equal(t, state, result)
}

func TestInvokeFrom_UnknownNode(t *testing.T) {
	_, err := linearGraph().InvokeFrom(testCtx(), testState{}, "ghost")

	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestInvoke_NodeStruct(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("add", adder{by: 5}).
		AddEdge("add", END).
		SetEntryPoint("add").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Invoke(testCtx(), Counter{Value: 1})

	require.NoError(t, err)
	assert.Equal(t, 6, result.Value)
}

type adder struct{ by int }

func (a adder) Process(ctx Context, c Counter) (Counter, error) {
	return Counter{Value: c.Value + a.by}, nil
}

func TestContext_OutsideRun(t *testing.T) {
	logs, logger := newLogCapture()
	ctx := NewContext(context.Background(), WithLogger(logger), WithThreadID("t-1"))

	assert.Equal(t, "t-1", ctx.ThreadID())
	assert.Empty(t, ctx.NodeID())
	assert.Zero(t, ctx.Step())
	assert.NotEmpty(t, ctx.RunID())
	assert.NotNil(t, ctx.Callbacks())

	ctx.Goto("x")
	ctx.End()
	assert.Len(t, logs.records(), 2, "control calls outside a run are logged and ignored")
}

func TestContext_NodeLoggerEnriched(t *testing.T) {
	logs, logger := newLogCapture()
	node := func(ctx Context, s Counter) (Counter, error) {
		ctx.Logger().Info("inside node")
		return s, nil
	}

	compiled, err := NewGraph[Counter]().
		AddNodeFunc("n", node).
		AddEdge("n", END).
		SetEntryPoint("n").
		Compile()
	require.NoError(t, err)

	ctx := NewContext(context.Background(), WithLogger(logger), WithContextRunID("r-1"))
	_, err = compiled.Invoke(ctx, Counter{})
	require.NoError(t, err)

	recs := logs.withMsg("inside node")
	require.Len(t, recs, 1)
	assert.Equal(t, "r-1", recs[0]["run_id"])
	assert.Equal(t, "n", recs[0]["node_id"])
	assert.EqualValues(t, 1, recs[0]["step"])
}
