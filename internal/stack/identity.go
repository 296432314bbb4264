package stack

import (
	"strings"

	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/labels"
	"github.com/imamik/nodeforge/internal/util/naming"
)

// Capability grants attached to the execution role.
const (
	GrantRemoteSession = "remote-session"
	GrantMetricsAgent  = "metrics-agent"
)

func (b *builder) identity() {
	b.add(&graph.Node{
		ID:   NodeIdentity,
		Kind: provisioning.KindIdentity,
		Properties: graph.Properties{
			"name":       naming.ExecutionRole(b.id.Name),
			"public_key": strings.TrimSpace(string(b.in.SSHPublicKey)),
			"grants":     []string{GrantRemoteSession, GrantMetricsAgent},
			"principal":  b.cfg.EffectiveStoragePrincipal(b.in.NodeAccessKey),
			"labels":     b.id.labels(NodeIdentity).WithRole(labels.RoleExecution).Build(),
		},
	})
}
