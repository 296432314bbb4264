package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/state"
)

// Reconciler converges one stack.
type Reconciler struct {
	stack    string
	provider provisioning.Provider
	store    state.Store

	concurrency   int
	timeouts      *config.Timeouts
	observer      provisioning.Observer
	log           logr.Logger
	holder        string
	enableMetrics bool
	now           func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithConcurrency bounds the number of in-flight realizations.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithTimeouts sets the per-call bounds.
func WithTimeouts(t *config.Timeouts) Option {
	return func(r *Reconciler) {
		if t != nil {
			r.timeouts = t
		}
	}
}

// WithObserver sets the event sink.
func WithObserver(o provisioning.Observer) Option {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLogger sets the logger for problems outside any node.
func WithLogger(l logr.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// WithHolder sets the lease holder and run ID. Defaults to a random UUID.
func WithHolder(holder string) Option {
	return func(r *Reconciler) {
		if holder != "" {
			r.holder = holder
		}
	}
}

// WithMetrics enables the reconcile metrics. Register them with
// RegisterMetrics.
func WithMetrics(enabled bool) Option {
	return func(r *Reconciler) { r.enableMetrics = enabled }
}

// NewReconciler returns a reconciler for stack.
func NewReconciler(stack string, provider provisioning.Provider, store state.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		stack:       stack,
		provider:    provider,
		store:       store,
		concurrency: config.DefaultConcurrency,
		log:         logr.Discard(),
		holder:      uuid.NewString(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.timeouts == nil {
		r.timeouts = config.LoadTimeouts()
	}
	if r.observer == nil {
		r.observer = provisioning.NewLogrObserver(r.log)
	}
	r.observer = r.observer.WithFields(map[string]string{"stack": stack, "run": r.holder})
	return r
}

// Holder returns the lease holder / run ID.
func (r *Reconciler) Holder() string {
	return r.holder
}

// Reconcile runs one convergence pass over g.
//
// A structurally invalid or cyclic graph fails before the state store is
// touched. Otherwise the returned report is always non-nil; the error is a
// *PassError when any node failed, was blocked or was cancelled.
func (r *Reconciler) Reconcile(ctx context.Context, g *graph.Graph) (*Report, error) {
	order, err := prepare(g)
	if err != nil {
		return nil, err
	}

	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap, err := r.store.Load(ctx, r.stack)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	report := &Report{Stack: r.stack, RunID: r.holder, Phase: phaseApply, Started: r.now()}
	r.observer.Event(provisioning.Event{
		Type:    provisioning.EventPhaseStarted,
		Phase:   phaseApply,
		Message: fmt.Sprintf("reconciling %d nodes", len(order)),
	})

	p := newPass(r, g, order, snap)
	report.Nodes = p.run(ctx)

	if ctx.Err() == nil && report.Count(StatusFailed)+report.Count(StatusCancelled) == 0 {
		report.Pruned = r.deleteRecords(ctx, phasePrune, orphans(g, snap))
	}

	report.Duration = r.now().Sub(report.Started)
	r.recordPass(report)

	passErr := report.err(ctx.Err())
	r.finishPhase(phaseApply, report, passErr)
	return report, passErr
}

func (r *Reconciler) finishPhase(phase string, report *Report, err error) {
	if err != nil {
		r.observer.Event(provisioning.Event{
			Type:    provisioning.EventPhaseFailed,
			Phase:   phase,
			Err:     err,
			Message: fmt.Sprintf("%s incomplete after %v", phase, report.Duration.Round(time.Millisecond)),
		})
		return
	}
	r.observer.Event(provisioning.Event{
		Type:    provisioning.EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("%s completed in %v", phase, report.Duration.Round(time.Millisecond)),
	})
}

// prepare validates g and returns its apply order.
func prepare(g *graph.Graph) ([]*graph.Node, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g.TopoSort()
}

// timeoutFor returns the bound on a single realize call for kind.
func (r *Reconciler) timeoutFor(kind graph.Kind) time.Duration {
	if kind == provisioning.KindCertificate {
		return r.timeouts.CertificateIssuance
	}
	return r.timeouts.Realize
}

const (
	phaseApply   = "apply"
	phasePrune   = "prune"
	phaseDestroy = "destroy"
)
