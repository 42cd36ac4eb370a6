// Package openai implements model.ChatModel on the OpenAI Chat Completions
// API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	gerrors "github.com/dnw3/synaptic-sub002/pkg/graph/errors"
	"github.com/dnw3/synaptic-sub002/pkg/graph/message"
	"github.com/dnw3/synaptic-sub002/pkg/graph/model"
	"github.com/dnw3/synaptic-sub002/pkg/graph/tool"
)

// Provider names the provider in HTTP errors.
const Provider = "openai"

// DefaultModel is used when no model name is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// ErrNoChoices indicates the API returned an empty choice list.
var ErrNoChoices = errors.New("openai: no choices returned")

// Model is a model.ChatModel backed by Chat Completions.
type Model struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature *float64
	reqOpts     []option.RequestOption
}

var _ model.ChatModel = (*Model)(nil)

// Option configures Model.
type Option func(*Model)

// WithModel sets the model name.
func WithModel(name string) Option {
	return func(m *Model) { m.model = name }
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
// OPENAI_API_KEY from the environment.
func New(opts ...Option) *Model {
	m := &Model{model: DefaultModel}
	for _, opt := range opts {
		opt(m)
	}
	m.client = openai.NewClient(m.reqOpts...)
	return m
}

// Generate implements model.ChatModel.
func (m *Model) Generate(ctx context.Context, msgs []message.Message, tools []tool.Definition) (message.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: toMessages(msgs),
		Tools:    toTools(tools),
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(m.maxTokens)
	}
	if m.temperature != nil {
		params.Temperature = openai.Float(*m.temperature)
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return message.Message{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return message.Message{}, ErrNoChoices
	}
	return fromCompletion(resp.Choices[0].Message), nil
}

func toMessages(msgs []message.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case message.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case message.RoleAI:
			if !msg.HasToolCalls() {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls)),
			}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for i, call := range msg.ToolCalls {
				assistant.ToolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func toTools(defs []tool.Definition) []openai.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolParam, len(defs))
	for i, def := range defs {
		out[i] = openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  def.Parameters,
			},
		}
	}
	return out
}

func fromCompletion(msg openai.ChatCompletionMessage) message.Message {
	out := message.AI(msg.Content)
	for _, call := range msg.ToolCalls {
		args := json.RawMessage(call.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		out.ToolCalls = append(out.ToolCalls, message.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return out
}

// mapError converts SDK API errors to *gerrors.HTTPError.
func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", apiErr.StatusCode)
		}
		return &gerrors.HTTPError{
			Provider:   Provider,
			StatusCode: apiErr.StatusCode,
			Message:    msg,
			Err:        err,
		}
	}
	return fmt.Errorf("%s: %w", Provider, err)
}
