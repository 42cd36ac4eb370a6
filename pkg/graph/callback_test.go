package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnw3/synaptic-sub002/pkg/graph/callback"
)

func TestCallbacks_RunLifecycle(t *testing.T) {
	rec := &callback.Recorder{}
	ctx := NewContext(context.Background(), WithContextRunID("run-cb"))

	_, err := linearGraph().Invoke(ctx, testState{}, WithCallbacks(rec))
	require.NoError(t, err)

	assert.Equal(t, []callback.Kind{
		callback.RunStart,
		callback.StepEnd, callback.StepEnd, callback.StepEnd,
		callback.RunEnd,
	}, rec.Kinds())

	events := rec.Events()
	assert.Equal(t, "a", events[0].NodeID, "RunStart names the start node")
	for i, node := range []string{"a", "b", "c"} {
		ev := events[i+1]
		assert.Equal(t, node, ev.NodeID)
		assert.Equal(t, i+1, ev.Step)
		assert.Equal(t, "run-cb", ev.RunID)
		assert.False(t, ev.Time.IsZero())
	}
	assert.Equal(t, 3, events[4].Step)
}

func TestCallbacks_RunError(t *testing.T) {
	errBoom := errors.New("boom")
	rec := &callback.Recorder{}

	compiled, err := NewGraph[testState]().
		AddNode("fail", makeFailingNode(errBoom)).
		AddEdge("fail", END).
		SetEntryPoint("fail").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), testState{}, WithCallbacks(rec))
	require.Error(t, err)

	kinds := rec.Kinds()
	require.Equal(t, []callback.Kind{callback.RunStart, callback.RunError}, kinds)
	assert.ErrorIs(t, rec.Events()[1].Err, errBoom)
}

func TestCallbacks_NodeEmit(t *testing.T) {
	rec := &callback.Recorder{}
	node := func(ctx Context, s Counter) (Counter, error) {
		ctx.Emit(callback.Event{Kind: callback.ToolStart, ToolName: "search"})
		return s, nil
	}

	compiled, err := NewGraph[Counter]().
		AddNodeFunc("n", node).
		AddEdge("n", END).
		SetEntryPoint("n").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Invoke(testCtx(), Counter{}, WithCallbacks(rec))
	require.NoError(t, err)

	var tool callback.Event
	for _, ev := range rec.Events() {
		if ev.Kind == callback.ToolStart {
			tool = ev
		}
	}
	assert.Equal(t, "search", tool.ToolName)
	assert.Equal(t, "n", tool.NodeID)
	assert.Equal(t, 1, tool.Step)
}

func TestCallbacks_MultipleHandlers(t *testing.T) {
	first, second := &callback.Recorder{}, &callback.Recorder{}

	_, err := linearGraph().Invoke(testCtx(), testState{}, WithCallbacks(first), WithCallbacks(second))
	require.NoError(t, err)

	assert.Len(t, first.Events(), 5)
	assert.Equal(t, first.Kinds(), second.Kinds())
}

func TestCallbacks_NestedRunInheritsParentHandlers(t *testing.T) {
	inner := linearGraph()
	outerRec := &callback.Recorder{}

	outerNode := func(ctx Context, s testState) (testState, error) {
		return inner.Invoke(ctx, s)
	}
	outer, err := NewGraph[testState]().
		AddNodeFunc("outer", outerNode).
		AddEdge("outer", END).
		SetEntryPoint("outer").
		Compile()
	require.NoError(t, err)

	result, err := outer.Invoke(testCtx(), testState{}, WithCallbacks(outerRec))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.Progress)

	var steps int
	for _, ev := range outerRec.Events() {
		if ev.Kind == callback.StepEnd {
			steps++
		}
	}
	assert.Equal(t, 4, steps, "three inner steps plus the outer one")
}
