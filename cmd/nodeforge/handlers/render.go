package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/nodeforge/internal/stack"
)

// RenderBootstrap prints the startup script the instance would run. It
// needs no credentials and touches nothing.
func RenderBootstrap(_ context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	in, err := buildInput(cfg, loadTimeouts(), false)
	if err != nil {
		return err
	}
	script, err := stack.BootstrapScript(in)
	if err != nil {
		return fmt.Errorf("failed to render bootstrap script: %w", err)
	}
	fmt.Fprint(stdout, script)
	return nil
}
