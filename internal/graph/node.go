package graph

import (
	"fmt"
	"sort"
)

// Kind identifies the provider-facing resource type of a node.
type Kind string

// Properties holds the kind-specific desired configuration of a node.
// Values are strings, ints, bools, []string, []any, map[string]string or Ref.
type Properties map[string]any

// Ref is a placeholder for an output of another node, resolved at apply time.
type Ref struct {
	Node   string
	Output string
}

// String renders the reference for plans and error messages.
func (r Ref) String() string {
	return fmt.Sprintf("${%s.%s}", r.Node, r.Output)
}

// Node is a single declarative resource intent.
type Node struct {
	ID         string
	Kind       Kind
	Region     string
	Properties Properties
	DependsOn  []string
}

// Refs returns every output reference in the node's properties, sorted by
// node and output name.
func (n *Node) Refs() []Ref {
	var refs []Ref
	for _, v := range n.Properties {
		refs = collectRefs(v, refs)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Node != refs[j].Node {
			return refs[i].Node < refs[j].Node
		}
		return refs[i].Output < refs[j].Output
	})
	return refs
}

func collectRefs(v any, refs []Ref) []Ref {
	switch val := v.(type) {
	case Ref:
		return append(refs, val)
	case []any:
		for _, item := range val {
			refs = collectRefs(item, refs)
		}
	}
	return refs
}

// dependsOn reports whether id is a direct dependency of n.
func (n *Node) dependsOn(id string) bool {
	for _, dep := range n.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}
