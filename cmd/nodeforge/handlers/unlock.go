package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/nodeforge/internal/orchestration"
)

// ErrUnlockNeedsForce is returned when unlock runs without --force.
var ErrUnlockNeedsForce = errors.New("unlock releases a lease another run may still hold; pass --force to confirm")

// UnlockOptions are the flags of the unlock command.
type UnlockOptions struct {
	ConfigPath string
	Force      bool
}

// Unlock releases the stack lease left behind by a run that died without
// releasing it. Only the lease is touched; records stay as they are.
func Unlock(ctx context.Context, opts UnlockOptions) error {
	if !opts.Force {
		return ErrUnlockNeedsForce
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	log, flush := newLogger()
	defer flush()

	b, err := openBackends(ctx, cfg, loadTimeouts())
	if err != nil {
		return err
	}
	defer func() { _ = b.store.Close() }()

	key := stateKey(cfg)
	r := orchestration.NewReconciler(key, b.provider, b.store, orchestration.WithLogger(log.WithValues("stack", key)))
	released, err := r.ForceUnlock(ctx)
	if err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}
	if released == nil {
		fmt.Fprintf(stdout, "Stack %s is not locked.\n", key)
		return nil
	}
	fmt.Fprintf(stdout, "Released lease on %s held by %s since %s.\n",
		key, released.Holder, released.Since.UTC().Format(time.RFC3339))
	return nil
}
