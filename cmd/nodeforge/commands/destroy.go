package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeforge/cmd/nodeforge/handlers"
)

// Destroy returns the destroy command.
//
// The destroy command removes every resource recorded for the stack in
// reverse dependency order.
func Destroy() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the node deployment and all associated resources",
		Long: `Destroy removes every resource recorded for the stack:
  - DNS records
  - Listener, certificate and load balancer
  - Instance and data volume
  - Log retention rules and the asset read grant
  - SSH key, firewall, subnet and network

Uploaded assets and the DNS zone are left in place. Buckets that still hold
objects are kept.

Example:
  nodeforge destroy -c nodeforge.yaml

WARNING: This operation is irreversible. The chain data on the volume is lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
