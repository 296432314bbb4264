package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeforge/cmd/nodeforge/handlers"
)

// Apply returns the command that converges the deployment.
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file (default: nodeforge.yaml)
//	--metrics-textfile: Write reconcile metrics in textfile-collector format
//
// Environment variables:
//
//	HCLOUD_TOKEN, CLOUDFLARE_API_TOKEN, NODEFORGE_S3_ACCESS_KEY,
//	NODEFORGE_S3_SECRET_KEY: provider credentials (keyring fallback)
func Apply() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the node deployment",
		Long: `Create or update the node deployment.

Every resource is declared as a node in a dependency graph: network and
firewall, SSH identity, bootstrap assets, the instance, log retention, the
load balancer with its certificate, and the DNS records. Nodes whose inputs
did not change since the last run are skipped. A failing node blocks only
the nodes that depend on it.

Examples:
  # Apply nodeforge.yaml in the current directory
  nodeforge apply

  # Apply a specific file and export metrics for node_exporter
  nodeforge apply -c sepolia.yaml --metrics-textfile /var/lib/node_exporter/nodeforge.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	addConfigFlag(cmd, &opts.ConfigPath)
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "Write reconcile metrics to this file")

	return cmd
}
