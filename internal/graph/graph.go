package graph

import (
	"fmt"
)

// Graph is the full node set for one stack, kept in declaration order.
type Graph struct {
	nodes []*Node
	index map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Add appends a node. Declaration order is the tie-breaker for apply order.
func (g *Graph) Add(n *Node) error {
	if n.ID == "" {
		return &ValidationError{Node: "", Reason: "empty id"}
	}
	if _, exists := g.index[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Position returns the declaration index of a node, or -1.
func (g *Graph) Position(id string) int {
	i, ok := g.index[id]
	if !ok {
		return -1
	}
	return i
}

// Validate checks that every dependency exists and that properties only
// reference outputs of direct dependencies. Cycles are reported by TopoSort.
func (g *Graph) Validate() error {
	for _, n := range g.nodes {
		if n.Kind == "" {
			return &ValidationError{Node: n.ID, Reason: "empty kind"}
		}
		seen := make(map[string]bool, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if _, ok := g.index[dep]; !ok {
				return &ValidationError{Node: n.ID, Reason: fmt.Sprintf("depends on unknown node %q", dep)}
			}
			if seen[dep] {
				return &ValidationError{Node: n.ID, Reason: fmt.Sprintf("duplicate dependency %q", dep)}
			}
			seen[dep] = true
		}
		for _, ref := range n.Refs() {
			if !n.dependsOn(ref.Node) {
				return &ValidationError{
					Node:   n.ID,
					Reason: fmt.Sprintf("references %s but does not depend on %q", ref, ref.Node),
				}
			}
		}
	}
	return nil
}

// Dependents returns the IDs of nodes that directly depend on id, in
// declaration order.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, n := range g.nodes {
		if n.dependsOn(id) {
			out = append(out, n.ID)
		}
	}
	return out
}

// Descendants returns every node that transitively depends on id, in
// declaration order. The node itself is not included.
func (g *Graph) Descendants(id string) []string {
	reached := make(map[string]bool)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependents(cur) {
			if !reached[dep] {
				reached[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	var out []string
	for _, n := range g.nodes {
		if reached[n.ID] && n.ID != id {
			out = append(out, n.ID)
		}
	}
	return out
}
