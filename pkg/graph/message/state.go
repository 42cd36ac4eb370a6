package message

// State is the canonical agent state: an ordered conversation.
//
// State values never share backing arrays after Clone, Merge or Append, so a
// node may extend the state it receives without affecting earlier snapshots.
type State struct {
	Messages []Message `json:"messages"`
}

// NewState returns a state holding msgs.
func NewState(msgs ...Message) State {
	return State{}.Append(msgs...)
}

// Clone returns a deep copy.
func (s State) Clone() State {
	if s.Messages == nil {
		return State{}
	}
	msgs := make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		msgs[i] = m.Clone()
	}
	return State{Messages: msgs}
}

// Merge returns the receiver's messages followed by other's.
// Neither input is modified or aliased by the result.
func (s State) Merge(other State) State {
	msgs := make([]Message, 0, len(s.Messages)+len(other.Messages))
	for _, m := range s.Messages {
		msgs = append(msgs, m.Clone())
	}
	for _, m := range other.Messages {
		msgs = append(msgs, m.Clone())
	}
	return State{Messages: msgs}
}

// Append returns a new state with msgs added at the end.
func (s State) Append(msgs ...Message) State {
	return s.Merge(State{Messages: msgs})
}

// Diff returns the messages added since prev. When prev is not a prefix of
// the receiver, as after a node trims or summarises the history, the whole
// state is returned.
func (s State) Diff(prev State) State {
	if !s.hasPrefix(prev) {
		return s.Clone()
	}
	return State{Messages: s.Messages[len(prev.Messages):]}.Clone()
}

func (s State) hasPrefix(prefix State) bool {
	if len(prefix.Messages) > len(s.Messages) {
		return false
	}
	for i, m := range prefix.Messages {
		if !m.Equal(s.Messages[i]) {
			return false
		}
	}
	return true
}

// Last returns the final message. ok is false for an empty state.
func (s State) Last() (m Message, ok bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Len returns the number of messages.
func (s State) Len() int {
	return len(s.Messages)
}
