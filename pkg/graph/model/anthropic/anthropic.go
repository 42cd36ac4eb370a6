// Package anthropic implements model.ChatModel on the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	gerrors "github.com/dnw3/synaptic-sub002/pkg/graph/errors"
	"github.com/dnw3/synaptic-sub002/pkg/graph/message"
	"github.com/dnw3/synaptic-sub002/pkg/graph/model"
	"github.com/dnw3/synaptic-sub002/pkg/graph/tool"
)

// Provider names the provider in HTTP errors.
const Provider = "anthropic"

// DefaultModel is used when no model name is configured.
const DefaultModel anthropic.Model = "claude-sonnet-4-20250514"

// DefaultMaxTokens is the completion cap sent when none is configured.
// The Messages API requires one.
const DefaultMaxTokens = 1024

// Model is a model.ChatModel backed by the Messages API.
type Model struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature *float64
	reqOpts     []option.RequestOption
}

var _ model.ChatModel = (*Model)(nil)

// Option configures Model.
type Option func(*Model)

// WithModel sets the model name.
func WithModel(name string) Option {
	return func(m *Model) { m.model = anthropic.Model(name) }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(m *Model) { m.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(m *Model) { m.temperature = &t }
}

// WithRequestOptions passes SDK request options (API key, base URL, retries)
// to the client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(m *Model) { m.reqOpts = append(m.reqOpts, opts...) }
}

// New returns a Model. Without an explicit API key option the SDK reads
// ANTHROPIC_API_KEY from the environment.
func New(opts ...Option) *Model {
	m := &Model{model: DefaultModel, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(m)
	}
	m.client = anthropic.NewClient(m.reqOpts...)
	return m
}

// Generate implements model.ChatModel. System messages are sent as the
// request's system prompt; consecutive tool results are grouped into one
// user turn.
func (m *Model) Generate(ctx context.Context, msgs []message.Message, tools []tool.Definition) (message.Message, error) {
	system, turns, err := toMessages(msgs)
	if err != nil {
		return message.Message{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages:  turns,
		System:    system,
		Tools:     toTools(tools),
	}
	if m.temperature != nil {
		params.Temperature = anthropic.Float(*m.temperature)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return message.Message{}, mapError(err)
	}
	return fromResponse(resp.Content)
}

func toMessages(msgs []message.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	var (
		system  []anthropic.TextBlockParam
		turns   []anthropic.MessageParam
		results []anthropic.ContentBlockParamUnion
	)

	flush := func() {
		if len(results) > 0 {
			turns = append(turns, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			if msg.Content != "" {
				system = append(system, anthropic.TextBlockParam{Text: msg.Content})
			}
		case message.RoleTool:
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		case message.RoleAI:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := map[string]any{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						return nil, nil, &gerrors.DecodeError{What: "tool call arguments", Input: string(call.Arguments), Err: err}
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) > 0 {
				turns = append(turns, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flush()

	return system, turns, nil
}

func toTools(defs []tool.Definition) []anthropic.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if props, ok := def.Parameters["properties"]; ok {
			schema.Properties = props
		}
		schema.Required = requiredFields(def.Parameters["required"])

		out[i] = anthropic.ToolUnionParamOfTool(schema, def.Name)
		if def.Description != "" {
			out[i].OfTool.Description = anthropic.String(def.Description)
		}
	}
	return out
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func fromResponse(blocks []anthropic.ContentBlockUnion) (message.Message, error) {
	out := message.AI("")
	for _, block := range blocks {
		switch block.Type {
		case "text":
			out.Content += block.AsText().Text
		case "tool_use":
			use := block.AsToolUse()
			args, err := json.Marshal(use.Input)
			if err != nil {
				return message.Message{}, &gerrors.DecodeError{What: "tool_use input", Err: err}
			}
			out.ToolCalls = append(out.ToolCalls, message.ToolCall{
				ID:        use.ID,
				Name:      use.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}

// mapError converts SDK API errors to *gerrors.HTTPError.
func mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &gerrors.HTTPError{
			Provider:   Provider,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Err:        err,
		}
	}
	return fmt.Errorf("%s: %w", Provider, err)
}
