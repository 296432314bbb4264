package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/util/retry"
)

// ZoneNotFoundError is returned when the parent DNS zone does not exist.
// Nothing that needs the zone can proceed, so it is never retried.
type ZoneNotFoundError struct {
	Zone string
}

func (e *ZoneNotFoundError) Error() string {
	return fmt.Sprintf("dns zone %q not found", e.Zone)
}

// TimeoutError is returned when an asynchronous realization step, such as
// certificate issuance, does not finish within its bound.
type TimeoutError struct {
	Node      string
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	op := e.Operation
	if op == "" {
		op = "realization"
	}
	return fmt.Sprintf("node %q: %s did not complete within %s", e.Node, op, e.Timeout)
}

// RealizationError wraps the provider error for a node that failed.
type RealizationError struct {
	Node string
	Kind graph.Kind
	Err  error
}

func (e *RealizationError) Error() string {
	return fmt.Sprintf("failed to realize %s %q: %v", e.Kind, e.Node, e.Err)
}

func (e *RealizationError) Unwrap() error {
	return e.Err
}

// BlockedError marks a node that was not attempted because an upstream
// node failed. Cause is the ID of the failed node.
type BlockedError struct {
	Node  string
	Cause string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("node %q blocked by failed dependency %q", e.Node, e.Cause)
}

// IsRetryable reports whether re-running a pass may clear err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var zoneErr *ZoneNotFoundError
	if errors.As(err, &zoneErr) {
		return false
	}
	var cycleErr *graph.CycleError
	if errors.As(err, &cycleErr) {
		return false
	}
	var validationErr *graph.ValidationError
	if errors.As(err, &validationErr) {
		return false
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return !retry.IsFatal(err)
}
