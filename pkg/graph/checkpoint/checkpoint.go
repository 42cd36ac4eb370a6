package checkpoint

import (
	"encoding/json"
	"maps"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is a persisted snapshot of a graph run at a step boundary.
// A stored checkpoint is never modified; newer snapshots are appended.
type Checkpoint struct {
	Version   int       `json:"version"`
	ThreadID  string    `json:"thread_id"`
	Sequence  int       `json:"sequence"`
	NodeID    string    `json:"node_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// State is the JSON-encoded graph state after NodeID ran.
	State json.RawMessage `json:"state"`

	// NextNode is where execution continues. Empty means there is no next node.
	NextNode string `json:"next_node,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// ThreadConfig identifies the conversation thread a checkpoint belongs to.
type ThreadConfig struct {
	ThreadID string
}

func (c ThreadConfig) validate() error {
	if c.ThreadID == "" {
		return ErrThreadIDRequired
	}
	return nil
}

// New creates a checkpoint for nodeID. State must already be JSON-serialized.
// Sequence is left at zero; stores assign it on Put.
func New(nodeID string, state []byte, nextNode string) Checkpoint {
	return Checkpoint{
		Version:   Version,
		NodeID:    nodeID,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
	}
}

// WithMetadata returns a copy of c carrying the key/value pair.
func (c Checkpoint) WithMetadata(key, value string) Checkpoint {
	md := make(map[string]string, len(c.Metadata)+1)
	maps.Copy(md, c.Metadata)
	md[key] = value
	c.Metadata = md
	return c
}

// Marshal serializes a checkpoint to JSON.
func (c Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return Checkpoint{}, err
	}
	return c, nil
}

// clone returns a deep copy so callers and stores never share buffers.
func (c Checkpoint) clone() Checkpoint {
	if c.State != nil {
		c.State = append(json.RawMessage(nil), c.State...)
	}
	if c.Metadata != nil {
		c.Metadata = maps.Clone(c.Metadata)
	}
	return c
}

// stamp fills the fields a store owns before the checkpoint is appended.
func (c Checkpoint) stamp(cfg ThreadConfig, sequence int) Checkpoint {
	c = c.clone()
	c.ThreadID = cfg.ThreadID
	c.Sequence = sequence
	if c.Version == 0 {
		c.Version = Version
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	return c
}
