// Package message defines chat messages and the canonical messages state
// used by agent graphs.
package message

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// ToolCall is a model's request to run a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Name is the tool name on tool results.
	Name      string     `json:"name,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool result to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Human returns a human message.
func Human(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AI returns a model reply without tool calls.
func AI(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// AIWithToolCalls returns a model reply requesting tool calls.
func AIWithToolCalls(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: calls}
}

// ToolResult returns the result of the tool call callID.
func ToolResult(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, Name: name, ToolCallID: callID}
}

// HasToolCalls reports whether the message requests at least one tool call.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	if m.ToolCalls != nil {
		calls := make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			c.Arguments = slices.Clone(c.Arguments)
			calls[i] = c
		}
		m.ToolCalls = calls
	}
	return m
}

// Equal reports whether m and other have the same role, content, name,
// tool-call id and tool calls. Arguments are compared byte for byte.
func (m Message) Equal(other Message) bool {
	if m.Role != other.Role || m.Content != other.Content ||
		m.Name != other.Name || m.ToolCallID != other.ToolCallID {
		return false
	}
	return slices.EqualFunc(m.ToolCalls, other.ToolCalls, func(a, b ToolCall) bool {
		return a.ID == b.ID && a.Name == b.Name && bytes.Equal(a.Arguments, b.Arguments)
	})
}
