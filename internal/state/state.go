package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Record is the persisted result of realizing one node.
type Record struct {
	Stack       string            `json:"stack"`
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Region      string            `json:"region"`
	Fingerprint string            `json:"fingerprint"`
	Properties  map[string]any    `json:"properties,omitempty"`
	Outputs     map[string]string `json:"outputs,omitempty"`
	DependsOn   []string          `json:"depends_on,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Snapshot maps node IDs to their records for one stack.
type Snapshot map[string]*Record

// IDs returns the record IDs in lexical order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Store persists records and serializes passes over the same stack.
type Store interface {
	// Load returns every record of stack. A stack never written is empty.
	Load(ctx context.Context, stack string) (Snapshot, error)
	// Put inserts or replaces a record.
	Put(ctx context.Context, rec *Record) error
	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, stack, id string) error
	// Lock takes the stack lease for holder or returns *LockedError.
	Lock(ctx context.Context, stack, holder string) error
	// Unlock releases a lease held by holder.
	Unlock(ctx context.Context, stack, holder string) error
	// ForceUnlock drops the stack lease whoever holds it and returns the
	// lease it removed, or nil when the stack was free.
	ForceUnlock(ctx context.Context, stack string) (*Lease, error)
	Close() error
}

// Lease describes who holds a stack and since when.
type Lease struct {
	Holder string
	Since  time.Time
}

// LockedError is returned when another holder owns the stack lease.
type LockedError struct {
	Stack  string
	Holder string
	Since  time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("stack %q is locked by %s since %s; if that run is gone, release it with 'nodeforge unlock --force'",
		e.Stack, e.Holder, e.Since.UTC().Format(time.RFC3339))
}

// ErrNotLockHolder is returned when releasing a lease owned by someone else.
var ErrNotLockHolder = errors.New("lease is not held by this holder")

func validateRecord(rec *Record) error {
	if rec.Stack == "" || rec.ID == "" {
		return fmt.Errorf("state: record needs a stack and an id")
	}
	return nil
}

func cloneRecord(rec *Record) *Record {
	c := *rec
	if rec.Properties != nil {
		c.Properties = make(map[string]any, len(rec.Properties))
		for k, v := range rec.Properties {
			c.Properties[k] = v
		}
	}
	if rec.Outputs != nil {
		c.Outputs = make(map[string]string, len(rec.Outputs))
		for k, v := range rec.Outputs {
			c.Outputs[k] = v
		}
	}
	c.DependsOn = append([]string(nil), rec.DependsOn...)
	return &c
}
