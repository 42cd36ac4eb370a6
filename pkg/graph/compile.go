package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// compileConfig holds Compile options.
type compileConfig struct {
	logger *slog.Logger
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithCompileLogger sets the logger used for compile-time warnings such as
// unreachable nodes. Default: slog.Default().
func WithCompileLogger(logger *slog.Logger) CompileOption {
	return func(c *compileConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks:
//  1. Builder misuse recorded while adding nodes and edges
//  2. Entry point must be set and must reference a registered node
//  3. All edge sources must reference registered nodes
//  4. All edge targets (direct and path map) must reference nodes or END
//
// Cycles are allowed. Unreachable nodes are logged as warnings but do not
// cause compilation to fail.
func (g *Graph[S]) Compile(opts ...CompileOption) (*CompiledGraph[S], error) {
	cfg := compileConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	errs := slices.Clone(g.errs)

	switch {
	case g.entryPoint == "":
		errs = append(errs, ErrNoEntryPoint)
	case g.entryPoint == START || g.entryPoint == END:
		errs = append(errs, fmt.Errorf("%w: entry point cannot be %s", ErrReservedName, g.entryPoint))
	case !g.hasNode(g.entryPoint):
		errs = append(errs, fmt.Errorf("%w: entry point %q", ErrNodeNotFound, g.entryPoint))
	}

	// Sorted so the joined error is deterministic.
	for _, from := range slices.Sorted(maps.Keys(g.edges)) {
		e := g.edges[from]
		if !g.hasNode(from) {
			errs = append(errs, fmt.Errorf("%w: edge source %q", ErrNodeNotFound, from))
		}

		switch e.kind {
		case EdgeDirect:
			if !g.isTarget(e.target) {
				errs = append(errs, fmt.Errorf("%w: edge target %q (from %q)", ErrNodeNotFound, e.target, from))
			}
		case EdgeConditional:
			for _, key := range slices.Sorted(maps.Keys(e.pathMap)) {
				if to := e.pathMap[key]; !g.isTarget(to) {
					errs = append(errs, fmt.Errorf("%w: path map target %q for key %q (from %q)", ErrNodeNotFound, to, key, from))
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g.warnUnreachableNodes(cfg.logger)

	return g.buildCompiledGraph(), nil
}

func (g *Graph[S]) hasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

func (g *Graph[S]) isTarget(name string) bool {
	return name == END || g.hasNode(name)
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph[S]) warnUnreachableNodes(logger *slog.Logger) {
	reachable := g.findReachableNodes()

	for _, name := range slices.Sorted(maps.Keys(g.nodes)) {
		if !reachable[name] {
			logger.Warn("node is unreachable from entry point", slog.String("node_id", name))
		}
	}
}

// findReachableNodes returns the set of nodes reachable from the entry point.
func (g *Graph[S]) findReachableNodes() map[string]bool {
	reachable := map[string]bool{g.entryPoint: true}
	queue := []string{g.entryPoint}

	visit := func(name string) {
		if name != END && !reachable[name] {
			reachable[name] = true
			queue = append(queue, name)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		e, ok := g.edges[current]
		if !ok {
			continue
		}

		switch {
		case e.kind == EdgeDirect:
			visit(e.target)
		case e.pathMap != nil:
			for _, to := range e.pathMap {
				visit(to)
			}
		default:
			// A router without a path map may return any node.
			for name := range g.nodes {
				visit(name)
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph[S]) buildCompiledGraph() *CompiledGraph[S] {
	edges := make(map[string]edge[S], len(g.edges))
	for from, e := range g.edges {
		if e.pathMap != nil {
			e.pathMap = maps.Clone(e.pathMap)
		}
		edges[from] = e
	}

	return &CompiledGraph[S]{
		nodes:      maps.Clone(g.nodes),
		edges:      edges,
		entryPoint: g.entryPoint,
		names:      slices.Sorted(maps.Keys(g.nodes)),
	}
}
