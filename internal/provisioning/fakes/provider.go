// Package fakes provides in-memory provisioning collaborators for tests.
package fakes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
)

// Call records one realizer invocation.
type Call struct {
	Op         string
	ID         string
	Kind       graph.Kind
	Region     string
	Properties graph.Properties
	Prior      provisioning.Outputs
}

// Provider realizes every kind in memory and records the calls it gets.
type Provider struct {
	mu             sync.Mutex
	calls          []Call
	failures       map[string]error
	deleteFailures map[string]error
	outputs        map[string]provisioning.Outputs
	hooks          map[string]func(ctx context.Context) error
	unknown        map[graph.Kind]bool
}

// NewProvider returns a provider that succeeds for every node.
func NewProvider() *Provider {
	return &Provider{
		failures:       make(map[string]error),
		deleteFailures: make(map[string]error),
		outputs:        make(map[string]provisioning.Outputs),
		hooks:          make(map[string]func(ctx context.Context) error),
		unknown:        make(map[graph.Kind]bool),
	}
}

// FailOn makes realizing node id return err.
func (p *Provider) FailOn(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[id] = err
}

// FailDeleteOn makes deleting node id return err.
func (p *Provider) FailDeleteOn(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteFailures[id] = err
}

// SetOutputs overrides the outputs reported for node id.
func (p *Provider) SetOutputs(id string, out provisioning.Outputs) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputs[id] = out
}

// OnRealize runs fn inside the realize call for node id. A non-nil
// return value becomes the realize error.
func (p *Provider) OnRealize(id string, fn func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[id] = fn
}

// Unsupported makes Realizer fail for kind.
func (p *Provider) Unsupported(kind graph.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unknown[kind] = true
}

// Realizer implements provisioning.Provider.
func (p *Provider) Realizer(kind graph.Kind) (provisioning.Realizer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unknown[kind] {
		return nil, fmt.Errorf("no realizer registered for kind %q", kind)
	}
	return &realizer{p: p, kind: kind}, nil
}

// Calls returns every recorded call in order.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Realized returns the IDs passed to Realize, in call order.
func (p *Provider) Realized() []string {
	return p.ids("realize")
}

// Deleted returns the IDs passed to Delete, in call order.
func (p *Provider) Deleted() []string {
	return p.ids("delete")
}

// Reset forgets recorded calls but keeps configured behavior.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

func (p *Provider) ids(op string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		if c.Op == op {
			out = append(out, c.ID)
		}
	}
	return out
}

type realizer struct {
	p    *Provider
	kind graph.Kind
}

func (r *realizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	r.p.mu.Lock()
	r.p.calls = append(r.p.calls, Call{Op: "realize", ID: req.ID, Kind: req.Kind, Region: req.Region, Properties: req.Properties, Prior: req.Prior})
	hook := r.p.hooks[req.ID]
	failure := r.p.failures[req.ID]
	custom, hasCustom := r.p.outputs[req.ID]
	r.p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if failure != nil {
		return nil, failure
	}
	if hasCustom {
		out := make(provisioning.Outputs, len(custom))
		for k, v := range custom {
			out[k] = v
		}
		return out, nil
	}
	return defaultOutputs(req), nil
}

func (r *realizer) Delete(_ context.Context, req provisioning.Request) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()
	r.p.calls = append(r.p.calls, Call{Op: "delete", ID: req.ID, Kind: req.Kind, Region: req.Region, Properties: req.Properties, Prior: req.Prior})
	return r.p.deleteFailures[req.ID]
}

// defaultOutputs echoes string properties and adds a synthetic id.
func defaultOutputs(req provisioning.Request) provisioning.Outputs {
	out := provisioning.Outputs{"id": "fake-" + req.ID}
	keys := make([]string, 0, len(req.Properties))
	for k := range req.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := req.Properties[k].(string); ok {
			out[k] = s
		}
	}
	return out
}
