package stack

import (
	"time"

	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/labels"
	"github.com/imamik/nodeforge/internal/util/naming"
)

// RenewalWindow numbers the config.CertificateRenewal period at contains.
func RenewalWindow(at time.Time) int64 {
	return at.Unix() / int64(config.CertificateRenewal/time.Second)
}

func (b *builder) edge() {
	domain := b.cfg.Domain

	b.add(&graph.Node{
		ID:         NodeZone,
		Kind:       provisioning.KindDNSZone,
		Properties: graph.Properties{"name": domain.Zone()},
	})

	b.add(&graph.Node{
		ID:     NodeCertificate,
		Kind:   provisioning.KindCertificate,
		Region: b.cfg.EffectiveCertificateRegion(),
		Properties: graph.Properties{
			"name":    naming.Certificate(b.id.Name),
			"domains": []string{domain.FQDN()},
			"zone":    graph.Ref{Node: NodeZone, Output: OutID},
			// A new window changes the fingerprint, so each apply in it
			// re-checks the certificate's remaining validity.
			"renewal_window": RenewalWindow(b.in.Now),
			"labels":         b.id.labels(NodeCertificate).Build(),
		},
		DependsOn: []string{NodeZone},
	})

	b.add(&graph.Node{
		ID:   NodeBalancer,
		Kind: provisioning.KindLoadBalancer,
		Properties: graph.Properties{
			"name":    naming.LoadBalancer(b.id.Name),
			"type":    b.cfg.Edge.LoadBalancerType,
			"network": graph.Ref{Node: NodeNetwork, Output: OutID},
			"labels":  b.id.labels(NodeBalancer).WithRole(labels.RoleEdge).Build(),
		},
		DependsOn: []string{NodeNetwork, NodeSubnet, NodeGroup},
	})

	b.add(&graph.Node{
		ID:   NodeListener,
		Kind: provisioning.KindListener,
		Properties: graph.Properties{
			"load_balancer":    graph.Ref{Node: NodeBalancer, Output: OutID},
			"certificate":      graph.Ref{Node: NodeCertificate, Output: OutID},
			"protocol":         "https",
			"listen_port":      config.HTTPSPort,
			"destination_port": config.ExecutionHTTPPort,
			"target_selector":  labels.SelectorForRole(b.id.Name, labels.RoleExecution),
		},
		DependsOn: []string{NodeCertificate, NodeBalancer, NodeGroup},
	})
}
