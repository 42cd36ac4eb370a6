package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
)

// Test state types used across tests

// Counter is a simple state for testing incrementing.
// Merge adds the values.
type Counter struct {
	Value int
}

func (c Counter) Clone() Counter { return c }

func (c Counter) Merge(other Counter) Counter {
	return Counter{Value: c.Value + other.Value}
}

// testState is a more complex state for testing various scenarios.
// Merge appends Progress and adds Count; other scalar fields take the
// other value when it is set.
type testState struct {
	Step     int
	Progress []string
	Initial  string
	Output   string
	Done     bool
	GoLeft   bool
	Count    int
}

func (s testState) Clone() testState {
	s.Progress = slices.Clone(s.Progress)
	return s
}

func (s testState) Merge(other testState) testState {
	out := s.Clone()
	out.Progress = append(out.Progress, other.Progress...)
	out.Count += other.Count
	if other.Step != 0 {
		out.Step = other.Step
	}
	if other.Initial != "" {
		out.Initial = other.Initial
	}
	if other.Output != "" {
		out.Output = other.Output
	}
	out.Done = out.Done || other.Done
	out.GoLeft = out.GoLeft || other.GoLeft
	return out
}

// Diff returns the progress entries added since prev.
func (s testState) Diff(prev testState) testState {
	if len(prev.Progress) > len(s.Progress) {
		return s.Clone()
	}
	return testState{
		Progress: slices.Clone(s.Progress[len(prev.Progress):]),
		Count:    s.Count - prev.Count,
	}
}

// unencodable cannot be serialized to JSON.
type unencodable struct {
	Ch chan int
}

func (u unencodable) Clone() unencodable            { return u }
func (u unencodable) Merge(unencodable) unencodable { return u }

// Helper node functions

// increment is a node that increments the counter.
func increment(ctx Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

// passthrough returns the state unchanged.
func passthrough[S any](ctx Context, s S) (S, error) {
	return s, nil
}

// makeTrackingNode creates a node that records its execution.
func makeTrackingNode(name string, tracker *[]string) NodeFunc[testState] {
	return func(ctx Context, s testState) (testState, error) {
		*tracker = append(*tracker, name)
		s.Progress = append(slices.Clone(s.Progress), name)
		return s, nil
	}
}

// makeProgressNode appends name to Progress.
func makeProgressNode(name string) NodeFunc[testState] {
	return func(ctx Context, s testState) (testState, error) {
		s.Progress = append(slices.Clone(s.Progress), name)
		return s, nil
	}
}

// makeFailingNode creates a node that returns the given error.
func makeFailingNode(err error) NodeFunc[testState] {
	return func(ctx Context, s testState) (testState, error) {
		return s, err
	}
}

// makePanicNode creates a node that panics with the given value.
func makePanicNode(value any) NodeFunc[testState] {
	return func(ctx Context, s testState) (testState, error) {
		panic(value)
	}
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// linearGraph compiles a -> b -> c -> END over testState, each node appending
// its name to Progress.
func linearGraph() *CompiledGraph[testState] {
	compiled, err := NewGraph[testState]().
		AddNode("a", makeProgressNode("a")).
		AddNode("b", makeProgressNode("b")).
		AddNode("c", makeProgressNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

// logCapture records slog output as decoded JSON objects.
type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newLogCapture() (*logCapture, *slog.Logger) {
	c := &logCapture{}
	return c, slog.New(slog.NewJSONHandler(&lockedWriter{c: c}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type lockedWriter struct{ c *logCapture }

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.buf.Write(p)
}

// records returns every logged record.
func (c *logCapture) records() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, line := range bytes.Split(c.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// withMsg returns the records whose message is msg.
func (c *logCapture) withMsg(msg string) []map[string]any {
	var out []map[string]any
	for _, r := range c.records() {
		if r["msg"] == msg {
			out = append(out, r)
		}
	}
	return out
}
