package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/nodeforge/cmd/nodeforge/handlers"
	"github.com/imamik/nodeforge/internal/config"
)

// Auth returns the command group managing keyring credentials.
func Auth() *cobra.Command {
	names := make([]string, 0, len(config.AllCredentials))
	for _, c := range config.AllCredentials {
		names = append(names, string(c))
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider credentials in the OS keyring",
		Long: fmt.Sprintf(`Manage provider credentials in the OS keyring.

Credentials: %s.
Environment variables always take precedence over the keyring.`, strings.Join(names, ", ")),
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <credential>",
		Short:     "Store a credential",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.AuthSet(cmd.Context(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:       "delete <credential>",
		Short:     "Remove a credential",
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.AuthDelete(cmd.Context(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which credentials resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.AuthStatus(cmd.Context())
		},
	})

	return cmd
}
