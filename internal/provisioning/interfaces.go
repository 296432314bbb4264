// Package provisioning provides the shared types that connect the reconciler
// to concrete cloud backends.
//
// The reconciler emits declarative Requests; a Provider maps each node Kind
// to the Realizer that knows how to converge it.
package provisioning

import (
	"context"

	"github.com/imamik/nodeforge/internal/graph"
)

// Outputs are the runtime attributes a realized resource reports, such as
// IDs and addresses. Dependents reference them through graph.Ref.
type Outputs map[string]string

// Request describes one node to realize or delete.
type Request struct {
	// Stack is the stack identity key the node belongs to.
	Stack string
	// ID is the node ID, stable within the stack.
	ID     string
	Kind   graph.Kind
	Region string
	// Properties are fully resolved; no graph.Ref values remain.
	Properties graph.Properties
	// Prior holds the outputs from the last successful realization, or nil
	// when the node has never been realized.
	Prior Outputs
}

// Realizer converges a single kind of resource.
type Realizer interface {
	// Realize creates or updates the resource and returns its outputs.
	// It must be idempotent: an existing matching resource is adopted.
	Realize(ctx context.Context, req Request) (Outputs, error)

	// Delete removes the resource. Missing resources are not an error.
	Delete(ctx context.Context, req Request) error
}

// Provider resolves realizers by kind.
type Provider interface {
	Realizer(kind graph.Kind) (Realizer, error)
}
