package graph

import (
	"fmt"
	"maps"
	"sync"
)

// EdgeKind describes a node's outgoing edge.
type EdgeKind int

const (
	// EdgeNone means the node has no outgoing edge.
	EdgeNone EdgeKind = iota
	// EdgeDirect is an unconditional edge to a single target.
	EdgeDirect
	// EdgeConditional is decided at runtime by a Router.
	EdgeConditional
)

// String returns the edge kind name.
func (k EdgeKind) String() string {
	switch k {
	case EdgeDirect:
		return "direct"
	case EdgeConditional:
		return "conditional"
	default:
		return "none"
	}
}

// edge is the single outgoing definition of a node.
type edge[S any] struct {
	kind    EdgeKind
	target  string
	router  Router[S]
	pathMap map[string]string
}

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// and SetEntryPoint calls to define the workflow.
//
// The builder never fails eagerly. Misuse such as an empty name or a
// duplicate node is recorded and reported by Compile, together with any
// dangling references.
//
// Each node has at most one outgoing definition. Defining an edge for a
// node that already has one replaces it.
//
// Example:
//
//	g := graph.NewGraph[MyState]().
//	    AddNode("fetch", fetchNode).
//	    AddNode("process", processNode).
//	    AddEdge("fetch", "process").
//	    AddEdge("process", graph.END).
//	    SetEntryPoint("fetch")
//
//	compiled, err := g.Compile()
type Graph[S State[S]] struct {
	mu         sync.RWMutex
	nodes      map[string]Node[S]
	edges      map[string]edge[S]
	entryPoint string
	errs       []error
}

// NewGraph creates a new graph builder for state type S.
func NewGraph[S State[S]]() *Graph[S] {
	return &Graph[S]{
		nodes: make(map[string]Node[S]),
		edges: make(map[string]edge[S]),
	}
}

// AddNode registers node under name.
// Returns the graph for method chaining.
func (g *Graph[S]) AddNode(name string, node Node[S]) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case name == "":
		g.errs = append(g.errs, ErrEmptyName)
		return g
	case name == START || name == END:
		g.errs = append(g.errs, fmt.Errorf("%w: %s", ErrReservedName, name))
		return g
	case isNilNode(node):
		g.errs = append(g.errs, fmt.Errorf("%w: %s", ErrNilNode, name))
		return g
	}

	if _, exists := g.nodes[name]; exists {
		g.errs = append(g.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, name))
		return g
	}

	g.nodes[name] = node
	return g
}

// AddNodeFunc registers a plain function as a node.
func (g *Graph[S]) AddNodeFunc(name string, fn func(ctx Context, state S) (S, error)) *Graph[S] {
	if fn == nil {
		return g.AddNode(name, nil)
	}
	return g.AddNode(name, NodeFunc[S](fn))
}

func isNilNode[S any](node Node[S]) bool {
	if node == nil {
		return true
	}
	fn, ok := node.(NodeFunc[S])
	return ok && fn == nil
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node name or END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = edge[S]{kind: EdgeDirect, target: to}
	return g
}

// AddConditionalEdges routes from the node by calling router after it runs.
// The router's result is the destination node name (or END).
// Returns the graph for method chaining.
func (g *Graph[S]) AddConditionalEdges(from string, router Router[S]) *Graph[S] {
	return g.addConditional(from, router, nil)
}

// AddConditionalEdgesWithPathMap routes from the node by looking the router's
// result up in pathMap. A key missing from the map fails the run with
// ErrPathMapKey. Every map value must be a node name or END.
// Returns the graph for method chaining.
func (g *Graph[S]) AddConditionalEdgesWithPathMap(from string, router Router[S], pathMap map[string]string) *Graph[S] {
	if pathMap == nil {
		pathMap = map[string]string{}
	}
	return g.addConditional(from, router, maps.Clone(pathMap))
}

func (g *Graph[S]) addConditional(from string, router Router[S], pathMap map[string]string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if router == nil {
		g.errs = append(g.errs, fmt.Errorf("%w: conditional edge from %s", ErrNilRouter, from))
		return g
	}

	g.edges[from] = edge[S]{kind: EdgeConditional, router: router, pathMap: pathMap}
	return g
}

// SetEntryPoint designates the node a run starts at.
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph[S]) SetEntryPoint(name string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = name
	return g
}
