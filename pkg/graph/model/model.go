// Package model defines the chat-model collaborator used by the prebuilt
// agent, plus a scripted implementation for tests.
//
// Provider adapters live in the openai and anthropic subpackages. They map
// provider API failures to errors.HTTPError so callers can classify them with
// errors.Categorize.
package model

import (
	"context"

	"github.com/dnw3/synaptic-sub002/pkg/graph/message"
	"github.com/dnw3/synaptic-sub002/pkg/graph/tool"
)

// ChatModel produces the next assistant message for a conversation.
//
// The returned message has RoleAI and may request tool calls. Implementations
// must not modify msgs.
type ChatModel interface {
	Generate(ctx context.Context, msgs []message.Message, tools []tool.Definition) (message.Message, error)
}

// Func adapts a function to ChatModel.
type Func func(ctx context.Context, msgs []message.Message, tools []tool.Definition) (message.Message, error)

// Generate calls f(ctx, msgs, tools).
func (f Func) Generate(ctx context.Context, msgs []message.Message, tools []tool.Definition) (message.Message, error) {
	return f(ctx, msgs, tools)
}
