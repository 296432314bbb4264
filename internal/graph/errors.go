package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateNode is returned when two nodes share an ID.
var ErrDuplicateNode = errors.New("duplicate node id")

// CycleError is returned when the dependency relation is not acyclic.
// Nodes lists every node that participates in a cycle, in declaration order.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between nodes: %s", strings.Join(e.Nodes, ", "))
}

// ValidationError describes a structural problem with a single node.
type ValidationError struct {
	Node   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("node %q: %s", e.Node, e.Reason)
}
