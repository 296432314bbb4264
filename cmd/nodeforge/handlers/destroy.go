package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/imamik/nodeforge/internal/orchestration"
)

// Destroy removes every resource recorded for the stack.
//
// Deletion follows the stored dependencies in reverse, so the DNS records
// and the edge go first and the network last. Content-addressed assets and
// the DNS zone only leave the state; buckets that still hold objects are
// kept.
func Destroy(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log, flush := newLogger()
	defer flush()

	timeouts := loadTimeouts()
	b, err := openBackends(ctx, cfg, timeouts)
	if err != nil {
		return err
	}
	defer func() { _ = b.store.Close() }()

	runID := uuid.NewString()
	log = log.WithValues("stack", stateKey(cfg), "run", runID)
	log.Info("Destroying stack")

	r := orchestration.NewReconciler(stateKey(cfg), b.provider, b.store,
		orchestration.WithConcurrency(cfg.Reconcile.Concurrency),
		orchestration.WithTimeouts(timeouts),
		orchestration.WithLogger(log),
		orchestration.WithHolder(runID),
	)
	report, err := r.Destroy(ctx)
	if report != nil {
		fmt.Fprint(stdout, renderReport(report))
	}
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	log.Info("Stack destroyed", "deleted", report.Count(orchestration.StatusDeleted))
	return nil
}
