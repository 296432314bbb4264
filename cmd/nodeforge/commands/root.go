// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeforge/cmd/nodeforge/handlers"
)

// Root returns the root command for the nodeforge CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nodeforge",
		Short:         "Provision an Ethereum node on Hetzner Cloud",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&handlers.Verbose, "verbose", "v", false, "Enable debug logging")

	// Core commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Plan())
	cmd.AddCommand(Apply())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Unlock())

	// Utility commands
	cmd.AddCommand(RenderBootstrap())
	cmd.AddCommand(Auth())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// addConfigFlag binds the shared --config flag.
func addConfigFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "config", "c", "", "Path to configuration file (default: nodeforge.yaml)")
}
