package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeforge/cmd/nodeforge/handlers"
)

// RenderBootstrap returns the command that prints the instance startup
// script.
func RenderBootstrap() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "render-bootstrap",
		Short: "Print the instance startup script",
		Long: `Print the startup script the instance runs on first boot. It downloads
the bootstrap assets, starts the log agent, then geth, waits for its RPC,
and starts lighthouse. No credentials are needed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.RenderBootstrap(cmd.Context(), configPath)
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}
