package orchestration

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/state"
)

// Destroy deletes every recorded resource of the stack, dependents first.
// When a deletion fails, the resources it depends on are kept.
func (r *Reconciler) Destroy(ctx context.Context) (*Report, error) {
	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, err := r.store.Load(ctx, r.stack)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	report := &Report{Stack: r.stack, RunID: r.holder, Phase: phaseDestroy, Started: r.now()}
	r.observer.Event(provisioning.Event{
		Type:    provisioning.EventPhaseStarted,
		Phase:   phaseDestroy,
		Message: fmt.Sprintf("destroying %d recorded resources", len(snap)),
	})

	recs := make([]*state.Record, 0, len(snap))
	for _, id := range snap.IDs() {
		recs = append(recs, snap[id])
	}
	report.Nodes = r.deleteRecords(ctx, phaseDestroy, recs)
	report.Duration = r.now().Sub(report.Started)
	r.recordPass(report)

	passErr := report.err(ctx.Err())
	r.finishPhase(phaseDestroy, report, passErr)
	return report, passErr
}

// orphans returns the recorded resources g no longer declares.
func orphans(g *graph.Graph, snap state.Snapshot) []*state.Record {
	var out []*state.Record
	for _, id := range snap.IDs() {
		if _, declared := g.Node(id); !declared {
			out = append(out, snap[id])
		}
	}
	return out
}

// deletionOrder returns recs with dependents before their dependencies.
// Dependencies outside recs are ignored.
func deletionOrder(recs []*state.Record) ([]*state.Record, error) {
	byID := make(map[string]*state.Record, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}

	g := graph.New()
	for _, rec := range recs {
		var deps []string
		for _, d := range rec.DependsOn {
			if _, ok := byID[d]; ok && !slices.Contains(deps, d) {
				deps = append(deps, d)
			}
		}
		if err := g.Add(&graph.Node{ID: rec.ID, Kind: graph.Kind(rec.Kind), Region: rec.Region, DependsOn: deps}); err != nil {
			return nil, err
		}
	}
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	out := make([]*state.Record, len(order))
	for i, n := range order {
		out[len(order)-1-i] = byID[n.ID]
	}
	return out, nil
}

// deleteRecords deletes recs sequentially in reverse dependency order.
func (r *Reconciler) deleteRecords(ctx context.Context, phase string, recs []*state.Record) []NodeResult {
	if len(recs) == 0 {
		return nil
	}

	ordered, err := deletionOrder(recs)
	if err != nil {
		// Stored dependencies are corrupt; newest records go first.
		r.log.Error(err, "stored dependencies are not acyclic, deleting newest first", "stack", r.stack)
		ordered = append([]*state.Record(nil), recs...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].UpdatedAt.After(ordered[j].UpdatedAt) })
	}

	byID := make(map[string]*state.Record, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}
	blockedBy := make(map[string]string)
	var blockDeps func(id, cause string)
	blockDeps = func(id, cause string) {
		for _, dep := range byID[id].DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			if _, seen := blockedBy[dep]; seen {
				continue
			}
			blockedBy[dep] = cause
			blockDeps(dep, cause)
		}
	}

	results := make([]NodeResult, 0, len(ordered))
	for _, rec := range ordered {
		res := NodeResult{ID: rec.ID, Kind: graph.Kind(rec.Kind), Region: rec.Region}
		switch cause, blocked := blockedBy[rec.ID]; {
		case blocked:
			res.Status, res.Cause = StatusBlocked, cause
			res.Err = &provisioning.BlockedError{Node: rec.ID, Cause: cause}
			provisioning.LogResourceBlocked(r.observer, phase, rec.Kind, rec.ID, cause)
		case ctx.Err() != nil:
			res.Status, res.Err = StatusCancelled, ctx.Err()
			provisioning.LogResourceCancelled(r.observer, phase, rec.Kind, rec.ID)
		default:
			start := time.Now()
			err := r.deleteRecord(ctx, phase, rec)
			res.Duration = time.Since(start)
			if err != nil {
				res.Status, res.Err = StatusFailed, err
				provisioning.LogResourceFailed(r.observer, phase, rec.Kind, rec.ID, err)
				blockDeps(rec.ID, rec.ID)
			} else {
				res.Status = StatusDeleted
				provisioning.LogResourceDeleted(r.observer, phase, rec.Kind, rec.ID)
			}
		}
		r.recordNode(res)
		results = append(results, res)
	}
	return results
}

// deleteRecord deletes the resource behind rec, then the record. State-only
// kinds only lose their record.
func (r *Reconciler) deleteRecord(ctx context.Context, phase string, rec *state.Record) error {
	kind := graph.Kind(rec.Kind)
	provisioning.LogResourceDeleting(r.observer, phase, rec.Kind, rec.ID)
	detached := context.WithoutCancel(ctx)

	if !provisioning.StateOnly(kind) {
		realizer, err := r.provider.Realizer(kind)
		if err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(detached, r.timeouts.Delete)
		defer cancel()
		callCtx = logr.NewContext(callCtx, r.log.WithValues("node", rec.ID, "kind", rec.Kind))
		err = realizer.Delete(callCtx, provisioning.Request{
			Stack:      r.stack,
			ID:         rec.ID,
			Kind:       kind,
			Region:     rec.Region,
			Properties: graph.Properties(rec.Properties),
			Prior:      provisioning.Outputs(rec.Outputs),
		})
		if err != nil {
			if callCtx.Err() != nil {
				return fmt.Errorf("%w: %w", &provisioning.TimeoutError{Node: rec.ID, Operation: "delete " + rec.Kind, Timeout: r.timeouts.Delete}, err)
			}
			return fmt.Errorf("failed to delete %s %q: %w", rec.Kind, rec.ID, err)
		}
	}

	if err := r.store.Delete(detached, r.stack, rec.ID); err != nil {
		return fmt.Errorf("deleted but record not removed: %w", err)
	}
	return nil
}
