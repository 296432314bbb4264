package graph

import "sort"

// TopoSort returns the nodes in apply order using Kahn's algorithm. Among
// nodes that are ready at the same time, the one declared first wins.
// A cycle yields a *CycleError naming the nodes on it.
func (g *Graph) TopoSort() ([]*Node, error) {
	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			indegree[n.ID]++
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	var ready []int
	for i, n := range g.nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		idx := ready[0]
		ready = ready[1:]
		n := g.nodes[idx]
		order = append(order, n)

		for _, child := range dependents[n.ID] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = insertSorted(ready, g.index[child])
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, &CycleError{Nodes: g.cycleMembers(indegree)}
	}
	return order, nil
}

// insertSorted inserts v into an ascending slice.
func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// cycleMembers finds the nodes that sit on a cycle among those Kahn's
// algorithm could not place. Nodes that merely depend on a cycle are left out.
func (g *Graph) cycleMembers(indegree map[string]int) []string {
	remaining := make(map[string]bool)
	for id, d := range indegree {
		if d > 0 {
			remaining[id] = true
		}
	}

	t := &tarjan{
		g:         g,
		remaining: remaining,
		index:     make(map[string]int),
		low:       make(map[string]int),
		onStack:   make(map[string]bool),
		members:   make(map[string]bool),
	}
	for _, n := range g.nodes {
		if remaining[n.ID] {
			if _, visited := t.index[n.ID]; !visited {
				t.strongConnect(n)
			}
		}
	}

	var out []string
	for _, n := range g.nodes {
		if t.members[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

type tarjan struct {
	g         *Graph
	remaining map[string]bool
	counter   int
	index     map[string]int
	low       map[string]int
	stack     []string
	onStack   map[string]bool
	members   map[string]bool
}

func (t *tarjan) strongConnect(n *Node) {
	t.index[n.ID] = t.counter
	t.low[n.ID] = t.counter
	t.counter++
	t.stack = append(t.stack, n.ID)
	t.onStack[n.ID] = true

	for _, dep := range n.DependsOn {
		if !t.remaining[dep] {
			continue
		}
		if _, visited := t.index[dep]; !visited {
			depNode, _ := t.g.Node(dep)
			t.strongConnect(depNode)
			t.low[n.ID] = min(t.low[n.ID], t.low[dep])
		} else if t.onStack[dep] {
			t.low[n.ID] = min(t.low[n.ID], t.index[dep])
		}
	}

	if t.low[n.ID] != t.index[n.ID] {
		return
	}

	var component []string
	for {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[top] = false
		component = append(component, top)
		if top == n.ID {
			break
		}
	}
	if len(component) > 1 || n.dependsOn(n.ID) {
		for _, id := range component {
			t.members[id] = true
		}
	}
}
