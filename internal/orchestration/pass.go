package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/state"
)

// pass is the dispatcher state of one apply. Only the dispatcher goroutine
// touches its maps; workers get everything they need in a job.
type pass struct {
	r     *Reconciler
	g     *graph.Graph
	order []*graph.Node
	snap  state.Snapshot

	waiting map[string]int
	outputs graph.Outputs
	results map[string]*NodeResult
	ready   []*graph.Node
}

type job struct {
	node     *graph.Node
	props    graph.Properties
	fp       string
	prior    *state.Record
	realizer provisioning.Realizer
}

func newPass(r *Reconciler, g *graph.Graph, order []*graph.Node, snap state.Snapshot) *pass {
	p := &pass{
		r:       r,
		g:       g,
		order:   order,
		snap:    snap,
		waiting: make(map[string]int, len(order)),
		outputs: make(graph.Outputs, len(order)),
		results: make(map[string]*NodeResult, len(order)),
	}
	for _, n := range order {
		p.waiting[n.ID] = len(n.DependsOn)
		if len(n.DependsOn) == 0 {
			p.ready = append(p.ready, n)
		}
	}
	return p
}

// run dispatches nodes until every node settled or ctx is done, and
// returns the results in apply order.
func (p *pass) run(ctx context.Context) []NodeResult {
	done := make(chan NodeResult)
	var eg errgroup.Group
	inflight := 0

	for {
		for len(p.ready) > 0 && inflight < p.r.concurrency && ctx.Err() == nil {
			n := p.ready[0]
			p.ready = p.ready[1:]
			j, settled := p.prepareJob(n)
			if settled != nil {
				p.settle(*settled)
				continue
			}
			eg.Go(func() error {
				done <- p.realize(ctx, j)
				return nil
			})
			inflight++
		}
		if inflight == 0 {
			break
		}
		res := <-done
		inflight--
		p.settle(res)
	}
	_ = eg.Wait()

	out := make([]NodeResult, 0, len(p.order))
	for _, n := range p.order {
		res, ok := p.results[n.ID]
		if !ok {
			res = &NodeResult{ID: n.ID, Kind: n.Kind, Region: n.Region, Status: StatusCancelled, Err: ctx.Err()}
			provisioning.LogResourceCancelled(p.r.observer, phaseApply, string(n.Kind), n.ID)
			p.r.recordNode(*res)
		}
		out = append(out, *res)
	}
	return out
}

// prepareJob resolves and fingerprints n. It returns a settled result when
// the node needs no worker: it is unchanged, or it cannot be prepared.
func (p *pass) prepareJob(n *graph.Node) (job, *NodeResult) {
	base := NodeResult{ID: n.ID, Kind: n.Kind, Region: n.Region}

	props, err := graph.Resolve(n.Properties, p.outputs)
	if err != nil {
		base.Status, base.Err = StatusFailed, &provisioning.RealizationError{Node: n.ID, Kind: n.Kind, Err: err}
		return job{}, &base
	}
	fp, err := graph.Fingerprint(n.Kind, n.Region, props)
	if err != nil {
		base.Status, base.Err = StatusFailed, &provisioning.RealizationError{Node: n.ID, Kind: n.Kind, Err: err}
		return job{}, &base
	}

	prior := p.snap[n.ID]
	if prior != nil && prior.Kind == string(n.Kind) && prior.Fingerprint == fp {
		base.Status, base.Outputs = StatusUnchanged, provisioning.Outputs(prior.Outputs)
		return job{}, &base
	}

	realizer, err := p.r.provider.Realizer(n.Kind)
	if err != nil {
		base.Status, base.Err = StatusFailed, &provisioning.RealizationError{Node: n.ID, Kind: n.Kind, Err: err}
		return job{}, &base
	}
	return job{node: n, props: props, fp: fp, prior: prior, realizer: realizer}, nil
}

// realize runs on a worker. The call is detached from ctx cancellation and
// bounded by the kind's timeout instead.
func (p *pass) realize(ctx context.Context, j job) NodeResult {
	n := j.node
	res := NodeResult{ID: n.ID, Kind: n.Kind, Region: n.Region}
	start := time.Now()

	provisioning.LogResourceCreating(p.r.observer, phaseApply, string(n.Kind), n.ID)

	req := provisioning.Request{
		Stack:      p.r.stack,
		ID:         n.ID,
		Kind:       n.Kind,
		Region:     n.Region,
		Properties: j.props,
	}
	// A record of another kind under the same ID describes a different
	// resource; the new kind starts from scratch.
	if j.prior != nil && j.prior.Kind == string(n.Kind) {
		req.Prior = provisioning.Outputs(j.prior.Outputs)
	}

	timeout := p.r.timeoutFor(n.Kind)
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	callCtx = logr.NewContext(callCtx, p.r.log.WithValues("node", n.ID, "kind", string(n.Kind)))

	outputs, err := j.realizer.Realize(callCtx, req)
	res.Duration = time.Since(start)
	if err == nil {
		err = p.persist(context.WithoutCancel(ctx), n, j, outputs)
	}
	if err != nil {
		var timeoutErr *provisioning.TimeoutError
		if !errors.As(err, &timeoutErr) && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", &provisioning.TimeoutError{Node: n.ID, Operation: "realize " + string(n.Kind), Timeout: timeout}, err)
		}
		res.Status, res.Err = StatusFailed, &provisioning.RealizationError{Node: n.ID, Kind: n.Kind, Err: err}
		return res
	}

	res.Outputs = outputs
	res.Status = StatusUpdated
	if req.Prior == nil {
		res.Status = StatusCreated
	}
	return res
}

func (p *pass) persist(ctx context.Context, n *graph.Node, j job, outputs provisioning.Outputs) error {
	rec := &state.Record{
		Stack:       p.r.stack,
		ID:          n.ID,
		Kind:        string(n.Kind),
		Region:      n.Region,
		Fingerprint: j.fp,
		Properties:  j.props,
		Outputs:     outputs,
		DependsOn:   append([]string(nil), n.DependsOn...),
		UpdatedAt:   p.r.now().UTC(),
	}
	if err := p.r.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("realized but not recorded: %w", err)
	}
	return nil
}

// settle records res and releases or blocks the node's dependents.
func (p *pass) settle(res NodeResult) {
	p.results[res.ID] = &res
	p.r.recordNode(res)

	switch res.Status {
	case StatusCreated, StatusUpdated:
		provisioning.LogResourceRealized(p.r.observer, phaseApply, string(res.Kind), res.ID, res.Status == StatusCreated, res.Duration)
	case StatusUnchanged:
		provisioning.LogResourceUnchanged(p.r.observer, phaseApply, string(res.Kind), res.ID)
	case StatusFailed:
		provisioning.LogResourceFailed(p.r.observer, phaseApply, string(res.Kind), res.ID, res.Err)
		p.block(res.ID)
		p.progress()
		return
	}

	p.outputs[res.ID] = res.Outputs
	for _, dep := range p.g.Dependents(res.ID) {
		p.waiting[dep]--
		if p.waiting[dep] == 0 {
			n, _ := p.g.Node(dep)
			p.ready = append(p.ready, n)
		}
	}
	sort.SliceStable(p.ready, func(i, j int) bool {
		return p.g.Position(p.ready[i].ID) < p.g.Position(p.ready[j].ID)
	})
	p.progress()
}

// block settles every transitive dependent of failed as blocked.
func (p *pass) block(failed string) {
	for _, id := range p.g.Descendants(failed) {
		if _, done := p.results[id]; done {
			continue
		}
		n, _ := p.g.Node(id)
		res := &NodeResult{
			ID:     id,
			Kind:   n.Kind,
			Region: n.Region,
			Status: StatusBlocked,
			Cause:  failed,
			Err:    &provisioning.BlockedError{Node: id, Cause: failed},
		}
		p.results[id] = res
		p.r.recordNode(*res)
		provisioning.LogResourceBlocked(p.r.observer, phaseApply, string(n.Kind), id, failed)
	}
}

func (p *pass) progress() {
	p.r.observer.Progress(phaseApply, len(p.results), len(p.order))
}
