package model

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dnw3/synaptic-sub002/pkg/graph/message"
	"github.com/dnw3/synaptic-sub002/pkg/graph/tool"
)

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("scripted model: no replies left")

// Request is one recorded Generate call.
type Request struct {
	Messages []message.Message
	Tools    []tool.Definition
}

type scriptStep struct {
	reply message.Message
	err   error
}

// Scripted replays canned replies in order and records every request.
// Tool calls without an ID get a generated "call_<uuid>" ID.
// Safe for concurrent use.
type Scripted struct {
	mu       sync.Mutex
	steps    []scriptStep
	next     int
	requests []Request
}

var _ ChatModel = (*Scripted)(nil)

// NewScripted returns a model that answers with replies, one per call.
func NewScripted(replies ...message.Message) *Scripted {
	s := &Scripted{}
	return s.WithReplies(replies...)
}

// WithReplies appends replies to the script.
func (s *Scripted) WithReplies(replies ...message.Message) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range replies {
		s.steps = append(s.steps, scriptStep{reply: r})
	}
	return s
}

// WithError appends a step that fails with err.
func (s *Scripted) WithError(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{err: err})
	return s
}

// Generate implements ChatModel.
func (s *Scripted) Generate(ctx context.Context, msgs []message.Message, tools []tool.Definition) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := Request{Messages: make([]message.Message, len(msgs)), Tools: slices.Clone(tools)}
	for i, m := range msgs {
		req.Messages[i] = m.Clone()
	}
	s.requests = append(s.requests, req)

	if err := ctx.Err(); err != nil {
		return message.Message{}, err
	}
	if s.next >= len(s.steps) {
		return message.Message{}, ErrScriptExhausted
	}

	step := s.steps[s.next]
	s.next++
	if step.err != nil {
		return message.Message{}, step.err
	}

	reply := step.reply.Clone()
	reply.Role = message.RoleAI
	for i := range reply.ToolCalls {
		if reply.ToolCalls[i].ID == "" {
			reply.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
	return reply, nil
}

// Requests returns a copy of every recorded request.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// CallCount returns the number of Generate calls.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (s *Scripted) LastRequest() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	r := s.requests[len(s.requests)-1]
	return &r
}

// Remaining returns the number of unused script steps.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps) - s.next
}
