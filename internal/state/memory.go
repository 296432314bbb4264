package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type lease struct {
	holder string
	since  time.Time
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Snapshot
	leases  map[string]lease
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Snapshot),
		leases:  make(map[string]lease),
	}
}

func (m *MemoryStore) Load(_ context.Context, stack string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Snapshot, len(m.records[stack]))
	for id, rec := range m.records[stack] {
		out[id] = cloneRecord(rec)
	}
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[rec.Stack] == nil {
		m.records[rec.Stack] = make(Snapshot)
	}
	m.records[rec.Stack][rec.ID] = cloneRecord(rec)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, stack, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records[stack], id)
	return nil
}

func (m *MemoryStore) Lock(_ context.Context, stack, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leases[stack]; ok && l.holder != holder {
		return &LockedError{Stack: stack, Holder: l.holder, Since: l.since}
	}
	m.leases[stack] = lease{holder: holder, since: time.Now()}
	return nil
}

func (m *MemoryStore) Unlock(_ context.Context, stack, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[stack]
	if !ok {
		return nil
	}
	if l.holder != holder {
		return fmt.Errorf("unlock %q: %w", stack, ErrNotLockHolder)
	}
	delete(m.leases, stack)
	return nil
}

func (m *MemoryStore) ForceUnlock(_ context.Context, stack string) (*Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[stack]
	if !ok {
		return nil, nil
	}
	delete(m.leases, stack)
	return &Lease{Holder: l.holder, Since: l.since}, nil
}

func (m *MemoryStore) Close() error { return nil }
