package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeforge/cmd/nodeforge/handlers"
)

// Plan returns the command that previews an apply.
func Plan() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change",
		Long: `Show the action apply would take for every node: create, update, noop
or delete. Nothing is changed and the stack lock is not taken.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), configPath)
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}
