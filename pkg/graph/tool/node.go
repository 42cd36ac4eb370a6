package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dnw3/synaptic-sub002/pkg/graph"
	"github.com/dnw3/synaptic-sub002/pkg/graph/callback"
	"github.com/dnw3/synaptic-sub002/pkg/graph/message"
)

// ErrNoMessages indicates the tool node ran on an empty state.
var ErrNoMessages = errors.New("tool node: state has no messages")

// Node runs the tool calls requested by the last message of a
// message.State and appends one tool-result message per call, in request
// order.
type Node struct {
	executor      Executor
	parallel      bool
	errorMessages bool
}

var _ graph.Node[message.State] = (*Node)(nil)

// NodeOption configures a Node.
type NodeOption func(*Node)

// WithParallelCalls runs the calls of one message concurrently. Results are
// still appended in request order. The first failure cancels the rest.
func WithParallelCalls() NodeOption {
	return func(n *Node) {
		n.parallel = true
	}
}

// WithErrorMessages reports tool failures to the model as tool-result
// messages ("error: ...") instead of failing the node.
func WithErrorMessages() NodeOption {
	return func(n *Node) {
		n.errorMessages = true
	}
}

// NewNode returns a tool-execution node backed by executor.
func NewNode(executor Executor, opts ...NodeOption) *Node {
	n := &Node{executor: executor}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Process implements graph.Node.
func (n *Node) Process(ctx graph.Context, state message.State) (message.State, error) {
	last, ok := state.Last()
	if !ok {
		return state, ErrNoMessages
	}
	if !last.HasToolCalls() {
		return state, nil
	}

	results := make([]message.Message, len(last.ToolCalls))

	if n.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, call := range last.ToolCalls {
			g.Go(func() error {
				msg, err := n.run(ctx, gctx, call)
				if err != nil {
					return err
				}
				results[i] = msg
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return state, err
		}
		return state.Append(results...), nil
	}

	for i, call := range last.ToolCalls {
		msg, err := n.run(ctx, ctx, call)
		if err != nil {
			return state, err
		}
		results[i] = msg
	}
	return state.Append(results...), nil
}

// run executes one call. gctx is the context passed to the executor; it
// differs from ctx when calls run in parallel.
func (n *Node) run(ctx graph.Context, gctx context.Context, call message.ToolCall) (message.Message, error) {
	ctx.Emit(callback.Event{Kind: callback.ToolStart, ToolName: call.Name, ToolCallID: call.ID})

	start := time.Now()
	out, err := n.executor.Execute(gctx, call.Name, call.Arguments)
	var content string
	if err == nil {
		content, err = encodeResult(out)
	}

	ctx.Emit(callback.Event{
		Kind:       callback.ToolEnd,
		ToolName:   call.Name,
		ToolCallID: call.ID,
		Duration:   time.Since(start),
		Err:        err,
	})

	if err != nil {
		if n.errorMessages {
			ctx.Logger().Warn("tool failed, reporting to model",
				"tool", call.Name, "tool_call_id", call.ID, "error", err.Error())
			return message.ToolResult(call.ID, call.Name, "error: "+err.Error()), nil
		}
		return message.Message{}, fmt.Errorf("tool %s (call %s): %w", call.Name, call.ID, err)
	}

	return message.ToolResult(call.ID, call.Name, content), nil
}

// encodeResult renders a tool's return value as message content. Strings are
// used verbatim; everything else is JSON-encoded.
func encodeResult(out any) (string, error) {
	switch v := out.(type) {
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(data), nil
}
