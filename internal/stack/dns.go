package stack

import (
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
)

// RecordTTL is the TTL of the alias records, in seconds.
const RecordTTL = 60

// dns declares the A and AAAA pair. Both wait for the listener so the name
// never resolves to an edge that cannot serve TLS.
func (b *builder) dns() {
	for _, rec := range []struct {
		id, typ, out string
	}{
		{NodeRecordA, "A", OutIPv4},
		{NodeRecordAAAA, "AAAA", OutIPv6},
	} {
		b.add(&graph.Node{
			ID:   rec.id,
			Kind: provisioning.KindDNSRecord,
			Properties: graph.Properties{
				"zone":    graph.Ref{Node: NodeZone, Output: OutID},
				"name":    b.cfg.Domain.FQDN(),
				"type":    rec.typ,
				"content": graph.Ref{Node: NodeBalancer, Output: rec.out},
				"ttl":     RecordTTL,
				"proxied": false,
			},
			DependsOn: []string{NodeZone, NodeBalancer, NodeListener},
		})
	}
}
