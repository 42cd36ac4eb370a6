package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dnw3/synaptic-sub002/pkg/graph"
	"github.com/dnw3/synaptic-sub002/pkg/graph/message"
)

var errBoom = errors.New("boom")

func testCtx() graph.Context {
	return graph.NewContext(context.Background())
}

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func addTool() *Function {
	return NewFunction("add", "Add two integers", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "integer"},
			"b": map[string]any{"type": "integer"},
		},
		"required": []string{"a", "b"},
	}, Typed(func(ctx context.Context, in addArgs) (any, error) {
		return in.A + in.B, nil
	}))
}

func echoTool() *Function {
	return NewFunction("echo", "Echo the text", nil,
		Typed(func(ctx context.Context, in struct{ Text string }) (any, error) {
			return in.Text, nil
		}))
}

func failingTool() *Function {
	return NewFunction("fail", "Always fails", nil, func(context.Context, json.RawMessage) (any, error) {
		return nil, errBoom
	})
}

// slowTool sleeps for d and tracks peak concurrency.
func slowTool(name string, d time.Duration, active, peak *atomic.Int32) *Function {
	return NewFunction(name, "slow", nil, func(ctx context.Context, _ json.RawMessage) (any, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		select {
		case <-time.After(d):
			return name, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func call(id, name, args string) message.ToolCall {
	return message.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func withCalls(calls ...message.ToolCall) message.State {
	return message.NewState(message.Human("go"), message.AIWithToolCalls("", calls...))
}
