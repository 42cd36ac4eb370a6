package graph

import (
	"maps"
	"slices"
)

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is safe for concurrent use by multiple runs. Every run keeps
// its own state, step counter and control slot; the node and edge tables
// are only read.
type CompiledGraph[S State[S]] struct {
	nodes      map[string]Node[S]
	edges      map[string]edge[S]
	entryPoint string
	names      []string
}

// EntryPoint returns the entry node name.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// NodeNames returns all node names in sorted order.
func (cg *CompiledGraph[S]) NodeNames() []string {
	return slices.Clone(cg.names)
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S]) HasNode(name string) bool {
	_, exists := cg.nodes[name]
	return exists
}

// EdgeKind reports the kind of the node's outgoing edge.
func (cg *CompiledGraph[S]) EdgeKind(name string) EdgeKind {
	return cg.edges[name].kind
}

// Successors returns the possible next hops of a node: the target of a
// direct edge, or the sorted distinct values of a path map.
// Returns nil for END, unknown nodes and routers without a path map,
// whose targets are only known at runtime.
func (cg *CompiledGraph[S]) Successors(name string) []string {
	e, ok := cg.edges[name]
	if !ok {
		return nil
	}

	switch e.kind {
	case EdgeDirect:
		return []string{e.target}
	case EdgeConditional:
		if e.pathMap == nil {
			return nil
		}
		return slices.Compact(slices.Sorted(maps.Values(e.pathMap)))
	}
	return nil
}
