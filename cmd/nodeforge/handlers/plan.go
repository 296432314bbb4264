package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/nodeforge/internal/orchestration"
	"github.com/imamik/nodeforge/internal/stack"
)

// Plan prints what an apply would do without touching any resource or
// taking the stack lease.
func Plan(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log, flush := newLogger()
	defer flush()

	timeouts := loadTimeouts()
	in, err := buildInput(cfg, timeouts, true)
	if err != nil {
		return err
	}
	g, err := stack.Build(in)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, timeouts)
	if err != nil {
		return err
	}
	defer func() { _ = b.store.Close() }()

	r := orchestration.NewReconciler(stateKey(cfg), b.provider, b.store, orchestration.WithLogger(log))
	plan, err := r.Plan(ctx, g)
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}
	fmt.Fprint(stdout, renderPlan(plan))
	return nil
}
