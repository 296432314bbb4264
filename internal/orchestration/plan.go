package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
)

// Action is what an apply would do to a node.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionNoop   Action = "noop"
	ActionDelete Action = "delete"
)

// NotePendingOutputs marks a node whose inputs depend on a changing upstream.
const NotePendingOutputs = "pending upstream outputs"

// PlannedAction is one line of a plan.
type PlannedAction struct {
	ID     string
	Kind   graph.Kind
	Region string
	Action Action
	Note   string
}

// Plan lists the actions an apply would take, in apply order followed by
// deletions in deletion order.
type Plan struct {
	Stack   string
	Actions []PlannedAction
}

// Count returns how many actions of kind a the plan has.
func (p *Plan) Count(a Action) int {
	n := 0
	for _, act := range p.Actions {
		if act.Action == a {
			n++
		}
	}
	return n
}

// HasChanges reports whether applying would call the provider.
func (p *Plan) HasChanges() bool {
	return p.Count(ActionNoop) != len(p.Actions)
}

// Plan computes the actions an apply of g would take without calling the
// provider or taking the stack lease.
func (r *Reconciler) Plan(ctx context.Context, g *graph.Graph) (*Plan, error) {
	order, err := prepare(g)
	if err != nil {
		return nil, err
	}
	snap, err := r.store.Load(ctx, r.stack)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	plan := &Plan{Stack: r.stack}
	known := make(graph.Outputs, len(order))
	changing := make(map[string]bool)

	for _, n := range order {
		prior := snap[n.ID]
		if prior != nil && prior.Kind != string(n.Kind) {
			prior = nil
		}
		act := PlannedAction{ID: n.ID, Kind: n.Kind, Region: n.Region, Action: ActionCreate}
		if prior != nil {
			act.Action = ActionUpdate
		}

		pending := false
		for _, ref := range n.Refs() {
			if changing[ref.Node] {
				pending = true
				break
			}
		}

		switch {
		case pending:
			act.Note = NotePendingOutputs
		case prior == nil:
		default:
			props, err := graph.Resolve(n.Properties, known)
			var unresolved *graph.UnresolvedRefError
			switch {
			case errors.As(err, &unresolved):
				act.Note = NotePendingOutputs
			case err != nil:
				return nil, &provisioning.RealizationError{Node: n.ID, Kind: n.Kind, Err: err}
			default:
				fp, err := graph.Fingerprint(n.Kind, n.Region, props)
				if err != nil {
					return nil, &provisioning.RealizationError{Node: n.ID, Kind: n.Kind, Err: err}
				}
				if fp == prior.Fingerprint {
					act.Action = ActionNoop
				}
			}
		}

		if act.Action == ActionNoop {
			known[n.ID] = prior.Outputs
		} else {
			changing[n.ID] = true
		}
		plan.Actions = append(plan.Actions, act)
	}

	deletions, err := deletionOrder(orphans(g, snap))
	if err != nil {
		return nil, fmt.Errorf("recorded dependencies: %w", err)
	}
	for _, rec := range deletions {
		act := PlannedAction{ID: rec.ID, Kind: graph.Kind(rec.Kind), Region: rec.Region, Action: ActionDelete}
		if provisioning.StateOnly(act.Kind) {
			act.Note = "record only"
		}
		plan.Actions = append(plan.Actions, act)
	}
	return plan, nil
}
