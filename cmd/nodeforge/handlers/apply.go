package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/orchestration"
	"github.com/imamik/nodeforge/internal/stack"
)

// ApplyOptions are the flags of the apply command.
type ApplyOptions struct {
	ConfigPath string
	// MetricsTextfile, when set, receives the reconcile metrics in the
	// node_exporter textfile format after the pass.
	MetricsTextfile string
}

// Apply converges the deployment to the configuration.
//
// It declares the full graph, checks that every kind has a realizer, and
// runs one reconcile pass under the stack lease. The report is printed even
// when the pass fails; the returned error then lists every failed and
// blocked node.
func Apply(ctx context.Context, opts ApplyOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
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

	if err := checkProvider(b.provider, g); err != nil {
		return err
	}

	runID := uuid.NewString()
	log = log.WithValues("stack", stateKey(cfg), "run", runID)
	log.Info("Applying configuration", "nodes", len(g.Nodes()), "domain", cfg.Domain.FQDN())

	reconcilerOpts := []orchestration.Option{
		orchestration.WithConcurrency(cfg.Reconcile.Concurrency),
		orchestration.WithTimeouts(timeouts),
		orchestration.WithLogger(log),
		orchestration.WithHolder(runID),
	}
	registry := prometheus.NewRegistry()
	if opts.MetricsTextfile != "" {
		if err := orchestration.RegisterMetrics(registry); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		reconcilerOpts = append(reconcilerOpts, orchestration.WithMetrics(true))
	}

	r := orchestration.NewReconciler(stateKey(cfg), b.provider, b.store, reconcilerOpts...)
	report, passErr := r.Reconcile(ctx, g)
	if report != nil {
		fmt.Fprint(stdout, renderReport(report))
	}

	if opts.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsTextfile, registry); err != nil {
			log.Error(err, "Failed to write metrics textfile", "path", opts.MetricsTextfile)
		}
	}

	if passErr != nil {
		return fmt.Errorf("apply failed: %w", passErr)
	}
	printEndpoint(cfg)
	return nil
}

func printEndpoint(cfg *config.Config) {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  RPC endpoint: %s\n", sectionStyle.Render("https://"+cfg.Domain.FQDN()))
	fmt.Fprintln(stdout, dimStyle.Render("  The node finishes syncing on its own; the first start takes a while."))
}
