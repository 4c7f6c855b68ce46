// SPDX-License-Identifier: MPL-2.0

// Package dag builds the module dependency graph of a registry and checks it:
// topological ordering, cycle reporting, registry order verification and
// Graphviz DOT export.
package dag

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/modboot/modboot/pkg/registry"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle contains the nodes left with unresolved incoming edges
		// (enough to identify the problem, not necessarily a minimal cycle).
		Cycle []string
	}

	// OrderViolation reports a dependency that appears after its dependent.
	OrderViolation struct {
		Dependency string
		Dependent  string
	}

	// Graph is a directed graph of modules. An edge from A to B means
	// B depends on A, so A must be loaded first.
	Graph struct {
		// adjacency maps each node to the nodes that depend on it.
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes   []string
		nodeSet map[string]bool
		// unresolved maps a node to declared dependencies that are not in the graph.
		unresolved map[string][]string
		// failed marks nodes whose module recorded a dependency failure.
		failed map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

func (v OrderViolation) String() string {
	return fmt.Sprintf("%s is loaded after its dependent %s", v.Dependency, v.Dependent)
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency:  make(map[string][]string),
		nodeSet:    make(map[string]bool),
		unresolved: make(map[string][]string),
		failed:     make(map[string]bool),
	}
}

// FromRegistry builds the graph of every registered module in registry order.
// Dependencies that are not registered are kept as unresolved edges.
func FromRegistry(reg *registry.Registry) *Graph {
	g := New()
	mods := reg.Modules()
	for _, m := range mods {
		g.AddNode(m.ID)
		if !m.Healthy() {
			g.failed[m.ID] = true
		}
	}
	for _, m := range mods {
		for _, dep := range m.Dependencies {
			if g.nodeSet[dep.ID] {
				g.AddEdge(dep.ID, m.ID)
			} else {
				g.unresolved[m.ID] = append(g.unresolved[m.ID], dep.ID)
			}
		}
	}
	return g
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that "to" depends on "from". Both nodes are added if
// missing; duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Dependents returns the nodes that depend on name.
func (g *Graph) Dependents(name string) []string {
	return slices.Clone(g.adjacency[name])
}

// Unresolved returns the declared dependencies of name that are not in the graph.
func (g *Graph) Unresolved(name string) []string {
	return slices.Clone(g.unresolved[name])
}

// TopologicalSort returns a dependency-first order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// Nodes at the same level keep their insertion order.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}

// CheckOrder returns every edge whose dependency does not precede its
// dependent in order. Nodes absent from order are ignored.
func (g *Graph) CheckOrder(order []string) []OrderViolation {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	var violations []OrderViolation
	for _, from := range g.nodes {
		fromPos, ok := pos[from]
		if !ok {
			continue
		}
		for _, to := range g.adjacency[from] {
			if toPos, ok := pos[to]; ok && fromPos >= toPos {
				violations = append(violations, OrderViolation{Dependency: from, Dependent: to})
			}
		}
	}
	return violations
}

// WriteDOT writes the graph in Graphviz DOT format. Modules with recorded
// failures are drawn in red and unresolved dependencies as dashed edges to
// placeholder nodes.
func (g *Graph) WriteDOT(w io.Writer, name string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box];\n")

	for _, node := range g.nodes {
		if g.failed[node] {
			fmt.Fprintf(&b, "  %q [color=red];\n", node)
		} else {
			fmt.Fprintf(&b, "  %q;\n", node)
		}
	}
	for _, from := range g.nodes {
		for _, to := range g.adjacency[from] {
			fmt.Fprintf(&b, "  %q -> %q;\n", from, to)
		}
	}
	for _, node := range g.nodes {
		for _, missing := range g.unresolved[node] {
			fmt.Fprintf(&b, "  %q [style=dashed];\n", missing)
			fmt.Fprintf(&b, "  %q -> %q [style=dashed, color=red];\n", missing, node)
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}
