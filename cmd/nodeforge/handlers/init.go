package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/imamik/nodeforge/internal/config"
)

// Factory function variables for init - can be replaced in tests.
var (
	// fileExists checks if a file exists.
	fileExists = func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	// stdinIsTerminal reports whether the wizard can prompt.
	stdinIsTerminal = func() bool { return isTerminal(os.Stdin) }

	// runWizard runs the interactive wizard.
	runWizard = config.RunWizard

	// writeConfig writes the config to a file.
	writeConfig = config.WriteFile
)

// ErrNotInteractive is returned when init runs without a terminal.
var ErrNotInteractive = errors.New("init needs an interactive terminal; write nodeforge.yaml by hand instead")

// Init runs the configuration wizard and writes the result to outputPath.
func Init(ctx context.Context, outputPath string) error {
	if !stdinIsTerminal() {
		return ErrNotInteractive
	}
	if fileExists(outputPath) {
		fmt.Fprintf(stdout, "Warning: %s already exists and will be overwritten.\n\n", outputPath)
	}

	printWelcome()

	result, err := runWizard(ctx)
	if err != nil {
		return err
	}

	cfg, err := result.ToConfig()
	if err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}

	if err := writeConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)
	return nil
}

func printWelcome() {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, titleStyle.Render("nodeforge - Ethereum node on Hetzner Cloud"))
	fmt.Fprintln(stdout, dimStyle.Render("geth and lighthouse on one instance, behind TLS and DNS."))
	fmt.Fprintln(stdout)
}

func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, sectionStyle.Render("Configuration saved!"))
	fmt.Fprintf(stdout, "  File:        %s\n", outputPath)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  Stack:       %s\n", cfg.Stack)
	fmt.Fprintf(stdout, "  Region:      %s\n", cfg.Region)
	fmt.Fprintf(stdout, "  Network:     %s\n", cfg.Network)
	fmt.Fprintf(stdout, "  Server type: %s\n", cfg.Node.ServerType)
	fmt.Fprintf(stdout, "  Endpoint:    https://%s\n", cfg.Domain.FQDN())
	fmt.Fprintf(stdout, "  State:       %s\n", cfg.State.Backend)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Next steps:")
	fmt.Fprintln(stdout, "  1. Store credentials: nodeforge auth set hcloud (and cloudflare, s3-access-key, s3-secret-key)")
	fmt.Fprintln(stdout, "  2. Review the plan:   nodeforge plan")
	fmt.Fprintln(stdout, "  3. Deploy:            nodeforge apply")
}
