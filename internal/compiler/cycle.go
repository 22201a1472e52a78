package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/graphcache/internal/metadata"
)

// CycleWarning represents a cycle of required relationships between types.
//
// Cycles are warnings, not errors, because they may be intentional:
//   - Self-referencing hierarchies with a seeded root
//   - Graphs always attached together in one change set
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["Order", "Invoice", "Order"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles finds cycles among required relationships.
//
// A scalar navigation whose foreign keys are all non-nullable makes its owner
// depend on the target: a new owner cannot be attached with a valid key
// before its target exists. A strongly connected set of such dependencies
// has no valid insertion order.
//
// The algorithm:
//  1. Build dependent → principal edges from required foreign keys
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle warning
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCycles(types []*metadata.EntityType) []CycleWarning {
	if len(types) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(types)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}

	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(strings.Join(a.Path, ","), strings.Join(b.Path, ","))
	})
	return warnings
}

// dependencyGraph maps type name → types it requires.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the required-relationship graph.
//
// For each type, every scalar navigation whose foreign keys are all
// non-nullable adds an edge owner → target.
func buildDependencyGraph(types []*metadata.EntityType) dependencyGraph {
	graph := make(dependencyGraph)

	for _, t := range types {
		if graph[t.Name] == nil {
			graph[t.Name] = []string{}
		}

		nullable := make(map[string]bool)
		for _, p := range t.Properties {
			nullable[p.Name] = p.Nullable
		}

		for _, n := range t.Navigations {
			if !n.IsScalar || len(n.ForeignKeys) == 0 {
				continue
			}
			required := true
			for _, fk := range n.ForeignKeys {
				if isNullable, declared := nullable[fk]; !declared || isNullable {
					required = false
				}
			}
			if required {
				graph[t.Name] = append(graph[t.Name], n.Target)
			}
		}
	}

	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of type names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				// Successor w has not yet been visited; recurse on it
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Successor w is on stack and hence in the current SCC
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	// Visit nodes in sorted order so paths are stable
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
//
// The path shows the cycle sequence by reconstructing a path through the SCC.
// For self-loops, the path is [type, type].
// For multi-node cycles, the path shows a cycle traversal.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		// Self-loop
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Type requires an instance of itself: %s → %s", name, name),
			Level:   "warning",
		}
	}

	// Multi-node cycle - reconstruct a cycle path
	path := reconstructCyclePath(scc, graph)

	pathStr := strings.Join(path, " → ")
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Required relationship cycle: %s", pathStr),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at the smallest name in the SCC, follow edges to other members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	// Build set of SCC members for fast lookup
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	// Start at the smallest name
	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	// Follow edges within SCC until we return to start
	for {
		visited[current] = true

		// Find next SCC member reachable from current
		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			// No more unvisited neighbors in SCC
			break
		}

		path = append(path, next)

		if next == start {
			// Completed the cycle
			break
		}

		current = next
	}

	return path
}
