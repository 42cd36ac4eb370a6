// Package prebuilt assembles ready-made graphs from the graph, model and tool
// packages.
package prebuilt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dnw3/synaptic-sub002/pkg/graph"
	"github.com/dnw3/synaptic-sub002/pkg/graph/callback"
	gerrors "github.com/dnw3/synaptic-sub002/pkg/graph/errors"
	"github.com/dnw3/synaptic-sub002/pkg/graph/message"
	"github.com/dnw3/synaptic-sub002/pkg/graph/model"
	"github.com/dnw3/synaptic-sub002/pkg/graph/tool"
)

// ErrNilModel is returned by NewAgent when no model is given.
var ErrNilModel = errors.New("prebuilt: nil model")

// Node names used by NewAgent.
const (
	AgentNode = "agent"
	ToolsNode = "tools"
)

type agentConfig struct {
	systemPrompt  string
	retry         *gerrors.RetryConfig
	parallelTools bool
	toolErrors    bool
	compileLogger *slog.Logger
}

// AgentOption configures NewAgent.
type AgentOption func(*agentConfig)

// WithSystemPrompt prefixes every model request with a system message.
// The prompt is not stored in the graph state.
func WithSystemPrompt(prompt string) AgentOption {
	return func(c *agentConfig) { c.systemPrompt = prompt }
}

// WithModelRetry retries model calls that fail with a transient error, as
// classified by errors.Categorize.
func WithModelRetry(cfg gerrors.RetryConfig) AgentOption {
	return func(c *agentConfig) { c.retry = &cfg }
}

// WithParallelToolCalls runs the tool calls of one model reply concurrently.
func WithParallelToolCalls() AgentOption {
	return func(c *agentConfig) { c.parallelTools = true }
}

// WithToolErrorMessages reports tool failures back to the model instead of
// failing the run.
func WithToolErrorMessages() AgentOption {
	return func(c *agentConfig) { c.toolErrors = true }
}

// WithCompileLogger sets the logger passed to graph.WithCompileLogger.
func WithCompileLogger(logger *slog.Logger) AgentOption {
	return func(c *agentConfig) { c.compileLogger = logger }
}

// NewAgent builds the two-node tool-calling agent:
//
//	agent --(last message has tool calls)--> tools --> agent
//	agent --(otherwise)--> END
//
// The agent node sends the conversation and the tool definitions to chat and
// appends the reply. The tools node runs the requested calls and appends the
// results.
//
// Example:
//
//	agent, err := prebuilt.NewAgent(chat, []tool.Tool{weather},
//	    prebuilt.WithSystemPrompt("You are a weather assistant."))
//	ctx := graph.NewContext(context.Background())
//	state, err := agent.Invoke(ctx, message.NewState(message.Human("Weather in Oslo?")))
func NewAgent(chat model.ChatModel, tools []tool.Tool, opts ...AgentOption) (*graph.CompiledGraph[message.State], error) {
	if chat == nil {
		return nil, ErrNilModel
	}

	var cfg agentConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	registry := tool.NewRegistry(tools...)

	var nodeOpts []tool.NodeOption
	if cfg.parallelTools {
		nodeOpts = append(nodeOpts, tool.WithParallelCalls())
	}
	if cfg.toolErrors {
		nodeOpts = append(nodeOpts, tool.WithErrorMessages())
	}

	agent := &agentNode{
		chat:         chat,
		tools:        registry.Definitions(),
		systemPrompt: cfg.systemPrompt,
		retry:        cfg.retry,
	}

	var compileOpts []graph.CompileOption
	if cfg.compileLogger != nil {
		compileOpts = append(compileOpts, graph.WithCompileLogger(cfg.compileLogger))
	}

	return graph.NewGraph[message.State]().
		AddNode(AgentNode, agent).
		AddNode(ToolsNode, tool.NewNode(registry, nodeOpts...)).
		AddConditionalEdgesWithPathMap(AgentNode, ShouldContinue, map[string]string{
			ToolsNode: ToolsNode,
			graph.END: graph.END,
		}).
		AddEdge(ToolsNode, AgentNode).
		SetEntryPoint(AgentNode).
		Compile(compileOpts...)
}

// ShouldContinue routes to the tools node when the last message requests at
// least one tool call, and to END otherwise.
func ShouldContinue(_ graph.Context, state message.State) string {
	if last, ok := state.Last(); ok && last.HasToolCalls() {
		return ToolsNode
	}
	return graph.END
}

type agentNode struct {
	chat         model.ChatModel
	tools        []tool.Definition
	systemPrompt string
	retry        *gerrors.RetryConfig
}

func (a *agentNode) Process(ctx graph.Context, state message.State) (message.State, error) {
	msgs := state.Messages
	if a.systemPrompt != "" {
		msgs = append([]message.Message{message.System(a.systemPrompt)}, msgs...)
	}

	ctx.Emit(callback.Event{Kind: callback.ModelStart, Messages: len(msgs)})
	start := time.Now()

	reply, err := a.generate(ctx, msgs)

	ctx.Emit(callback.Event{
		Kind:     callback.ModelEnd,
		Messages: len(msgs),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return state, fmt.Errorf("model: %w", err)
	}

	reply.Role = message.RoleAI
	return state.Append(reply), nil
}

func (a *agentNode) generate(ctx graph.Context, msgs []message.Message) (message.Message, error) {
	if a.retry == nil {
		return a.chat.Generate(ctx, msgs, a.tools)
	}

	cfg := *a.retry
	userOnRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		ctx.Logger().Warn("model call failed, retrying",
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err.Error(),
		)
		if userOnRetry != nil {
			userOnRetry(attempt, err, wait)
		}
	}

	return gerrors.Do(ctx, cfg, "model generate", func(c context.Context) (message.Message, error) {
		return a.chat.Generate(c, msgs, a.tools)
	})
}
