package provisioning

import (
	"fmt"
	"sort"
	"sync"

	"github.com/imamik/nodeforge/internal/graph"
)

// Registry is a Provider assembled from per-kind realizers.
type Registry struct {
	mu        sync.RWMutex
	realizers map[graph.Kind]Realizer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{realizers: make(map[graph.Kind]Realizer)}
}

// Register binds a realizer to a kind, replacing any previous binding.
func (r *Registry) Register(kind graph.Kind, realizer Realizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.realizers[kind] = realizer
}

// Realizer implements Provider.
func (r *Registry) Realizer(kind graph.Kind) (Realizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	realizer, ok := r.realizers[kind]
	if !ok {
		return nil, fmt.Errorf("no realizer registered for kind %q", kind)
	}
	return realizer, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []graph.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]graph.Kind, 0, len(r.realizers))
	for k := range r.realizers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Missing returns the kinds used by g that have no realizer.
func (r *Registry) Missing(g *graph.Graph) []graph.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[graph.Kind]bool)
	var missing []graph.Kind
	for _, n := range g.Nodes() {
		if _, ok := r.realizers[n.Kind]; !ok && !seen[n.Kind] {
			seen[n.Kind] = true
			missing = append(missing, n.Kind)
		}
	}
	return missing
}
