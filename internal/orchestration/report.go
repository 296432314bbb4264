package orchestration

import (
	"fmt"
	"strings"
	"time"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
)

// Status is the outcome of one node in a pass.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
	StatusBlocked   Status = "blocked"
	StatusCancelled Status = "cancelled"
	StatusDeleted   Status = "deleted"
)

// NodeResult is the outcome of one node.
type NodeResult struct {
	ID       string
	Kind     graph.Kind
	Region   string
	Status   Status
	Duration time.Duration
	Err      error
	// Cause is the failed node a blocked node waited on.
	Cause   string
	Outputs provisioning.Outputs
}

// Report summarizes a pass.
type Report struct {
	Stack    string
	RunID    string
	Phase    string
	Started  time.Time
	Duration time.Duration
	// Nodes holds declared nodes in apply order.
	Nodes []NodeResult
	// Pruned holds orphaned records handled after the apply.
	Pruned []NodeResult
}

// Count returns how many nodes, pruned ones included, ended in status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, res := range r.Nodes {
		if res.Status == status {
			n++
		}
	}
	for _, res := range r.Pruned {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Result returns the result for node id.
func (r *Report) Result(id string) (NodeResult, bool) {
	for _, res := range r.Nodes {
		if res.ID == id {
			return res, true
		}
	}
	for _, res := range r.Pruned {
		if res.ID == id {
			return res, true
		}
	}
	return NodeResult{}, false
}

// Changed reports whether the pass touched any resource.
func (r *Report) Changed() bool {
	return r.Count(StatusCreated)+r.Count(StatusUpdated)+r.Count(StatusDeleted) > 0
}

// err builds the aggregate error for the report, or nil.
func (r *Report) err(cancelCause error) error {
	pe := &PassError{Stack: r.Stack, Phase: r.Phase, Cause: cancelCause}
	for _, res := range append(append([]NodeResult(nil), r.Nodes...), r.Pruned...) {
		switch res.Status {
		case StatusFailed:
			pe.Failed = append(pe.Failed, res)
		case StatusBlocked:
			pe.Blocked = append(pe.Blocked, &provisioning.BlockedError{Node: res.ID, Cause: res.Cause})
		case StatusCancelled:
			pe.Cancelled = append(pe.Cancelled, res.ID)
		}
	}
	if len(pe.Failed) == 0 && len(pe.Blocked) == 0 && len(pe.Cancelled) == 0 {
		return nil
	}
	return pe
}

// PassError aggregates every failed, blocked and cancelled node of a pass.
type PassError struct {
	Stack     string
	Phase     string
	Failed    []NodeResult
	Blocked   []*provisioning.BlockedError
	Cancelled []string
	// Cause is the context error when the pass was cancelled.
	Cause error
}

func (e *PassError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s of stack %q incomplete: %d failed, %d blocked, %d cancelled",
		e.Phase, e.Stack, len(e.Failed), len(e.Blocked), len(e.Cancelled))
	for _, f := range e.Failed {
		fmt.Fprintf(&b, "\n  %s: %v", f.ID, f.Err)
	}
	for _, blocked := range e.Blocked {
		fmt.Fprintf(&b, "\n  %s: blocked by %s", blocked.Node, blocked.Cause)
	}
	if len(e.Cancelled) > 0 {
		fmt.Fprintf(&b, "\n  cancelled: %s", strings.Join(e.Cancelled, ", "))
	}
	return b.String()
}

// Unwrap exposes the root errors so errors.As finds typed causes.
func (e *PassError) Unwrap() []error {
	var errs []error
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	for _, b := range e.Blocked {
		errs = append(errs, b)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}
