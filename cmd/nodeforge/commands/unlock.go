package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeforge/cmd/nodeforge/handlers"
)

// Unlock returns the unlock command.
func Unlock() *cobra.Command {
	var opts handlers.UnlockOptions

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Release a stack lease left behind by an interrupted run",
		Long: `Unlock removes the stack lease whoever holds it. Use it only when the
run named in the "is locked by" error is no longer running, for example
after the machine running it crashed. Recorded resources are not touched.

Example:
  nodeforge unlock --force -c nodeforge.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Unlock(cmd.Context(), opts)
		},
	}

	addConfigFlag(cmd, &opts.ConfigPath)
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Release the lease even though another run holds it")

	return cmd
}
