package stack

import (
	"strconv"
	"strings"

	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/labels"
	"github.com/imamik/nodeforge/internal/util/naming"
)

// Address plan of the isolated network. One public subnet, no NAT.
const (
	NetworkCIDR = "10.0.0.0/16"
	SubnetCIDR  = "10.0.1.0/24"
	NetworkZone = "eu-central"
)

var anywhere = strings.Join([]string{"0.0.0.0/0", "::/0"}, ",")

func (b *builder) network() {
	b.add(&graph.Node{
		ID:   NodeNetwork,
		Kind: provisioning.KindNetwork,
		Properties: graph.Properties{
			"name":     naming.Network(b.id.Name),
			"ip_range": NetworkCIDR,
			"labels":   b.id.labels(NodeNetwork).Build(),
		},
	})

	b.add(&graph.Node{
		ID:   NodeSubnet,
		Kind: provisioning.KindSubnet,
		Properties: graph.Properties{
			"network":      graph.Ref{Node: NodeNetwork, Output: OutID},
			"ip_range":     SubnetCIDR,
			"network_zone": NetworkZone,
			"type":         "cloud",
		},
		DependsOn: []string{NodeNetwork},
	})

	b.add(&graph.Node{
		ID:   NodeFirewall,
		Kind: provisioning.KindFirewall,
		Properties: graph.Properties{
			"name":     naming.Firewall(b.id.Name),
			"rules":    firewallRules(b.cfg.Access.AdminCIDRs),
			"apply_to": labels.SelectorForRole(b.id.Name, labels.RoleExecution),
			"labels":   b.id.labels(NodeFirewall).Build(),
		},
	})
}

// firewallRules opens both P2P ports to the world and SSH only to the admin
// ranges. Outbound traffic is not filtered.
func firewallRules(adminCIDRs []string) []any {
	rules := []any{
		inboundTCP(config.ExecutionP2PPort, anywhere, "execution p2p"),
		inboundTCP(config.ConsensusP2PPort, anywhere, "consensus p2p"),
	}
	if len(adminCIDRs) > 0 {
		rules = append(rules, inboundTCP(config.SSHPort, strings.Join(adminCIDRs, ","), "admin ssh"))
	}
	return rules
}

func inboundTCP(port int, sources, description string) map[string]string {
	return map[string]string{
		"direction":   "in",
		"protocol":    "tcp",
		"port":        strconv.Itoa(port),
		"source_ips":  sources,
		"description": description,
	}
}
