package stack

import (
	"fmt"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/labels"
	"github.com/imamik/nodeforge/internal/util/naming"
)

// GroupSize is the fixed size of the instance group. Scaling and healing
// are manual redeploys.
const GroupSize = 1

func (b *builder) compute() error {
	node := b.cfg.Node

	b.add(&graph.Node{
		ID:   NodeImage,
		Kind: provisioning.KindImage,
		Properties: graph.Properties{
			"name":         node.Image,
			"architecture": node.Architecture,
		},
	})

	b.add(&graph.Node{
		ID:   NodeVolume,
		Kind: provisioning.KindVolume,
		Properties: graph.Properties{
			"name":    naming.Volume(b.id.Name),
			"size_gb": node.VolumeSizeGB,
			"format":  "ext4",
			"labels":  b.id.labels(NodeVolume).Build(),
		},
	})

	script, err := BootstrapScript(b.in)
	if err != nil {
		return fmt.Errorf("failed to build startup script: %w", err)
	}

	deps := []string{NodeNetwork, NodeSubnet, NodeFirewall, NodeIdentity, NodeImage, NodeVolume, NodeAssetGrant}
	deps = append(deps, b.assetNodes()...)
	b.add(&graph.Node{
		ID:   NodeGroup,
		Kind: provisioning.KindInstanceGroup,
		Properties: graph.Properties{
			"name":        naming.Server(b.id.Name, GroupSize),
			"server_type": node.ServerType,
			"image":       graph.Ref{Node: NodeImage, Output: OutID},
			"network":     graph.Ref{Node: NodeNetwork, Output: OutID},
			"firewall":    graph.Ref{Node: NodeFirewall, Output: OutID},
			"ssh_key":     graph.Ref{Node: NodeIdentity, Output: OutID},
			"volume":      graph.Ref{Node: NodeVolume, Output: OutID},
			"user_data":   script,
			"min_size":    GroupSize,
			"max_size":    GroupSize,
			"labels": b.id.labels(NodeGroup).
				WithRole(labels.RoleExecution).
				WithNetwork(b.cfg.Network).
				Build(),
		},
		DependsOn: deps,
	})
	return nil
}
