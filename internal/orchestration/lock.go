package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/imamik/nodeforge/internal/state"
)

// stackLocks serializes passes over the same stack inside one process.
var stackLocks = &keyedMutex{slots: make(map[string]chan struct{})}

type keyedMutex struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func (k *keyedMutex) slot(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		k.slots[key] = s
	}
	return s
}

// acquire blocks until key is free or ctx is done.
func (k *keyedMutex) acquire(ctx context.Context, key string) (func(), error) {
	s := k.slot(key)
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for stack %q: %w", key, ctx.Err())
	}
}

// lock takes the in-process slot and then the store lease.
func (r *Reconciler) lock(ctx context.Context) (func(), error) {
	release, err := stackLocks.acquire(ctx, r.stack)
	if err != nil {
		return nil, err
	}
	if err := r.store.Lock(ctx, r.stack, r.holder); err != nil {
		release()
		return nil, err
	}
	return func() {
		if err := r.store.Unlock(context.WithoutCancel(ctx), r.stack, r.holder); err != nil {
			r.log.Error(err, "failed to release stack lease", "stack", r.stack, "holder", r.holder)
		}
		release()
	}, nil
}

// ForceUnlock drops the store lease of the stack whoever holds it. It
// waits for any pass of this process over the stack to finish first.
// The returned lease is nil when the stack was not locked.
func (r *Reconciler) ForceUnlock(ctx context.Context) (*state.Lease, error) {
	release, err := stackLocks.acquire(ctx, r.stack)
	if err != nil {
		return nil, err
	}
	defer release()

	released, err := r.store.ForceUnlock(ctx, r.stack)
	if err != nil {
		return nil, err
	}
	if released != nil {
		r.log.Info("Released stack lease", "stack", r.stack, "holder", released.Holder, "since", released.Since)
	}
	return released, nil
}
