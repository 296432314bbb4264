package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeforge/cmd/nodeforge/handlers"
	"github.com/imamik/nodeforge/internal/config"
)

// Init returns the command that writes a configuration interactively.
func Init() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultConfigFile, "Where to write the configuration")

	return cmd
}
