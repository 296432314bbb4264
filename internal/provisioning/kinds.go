package provisioning

import "github.com/imamik/nodeforge/internal/graph"

// Resource kinds understood by the platform backends.
const (
	KindNetwork       graph.Kind = "network"
	KindSubnet        graph.Kind = "subnet"
	KindFirewall      graph.Kind = "firewall"
	KindIdentity      graph.Kind = "identity"
	KindBucket        graph.Kind = "bucket"
	KindAsset         graph.Kind = "asset"
	KindAssetGrant    graph.Kind = "asset-grant"
	KindImage         graph.Kind = "image"
	KindVolume        graph.Kind = "volume"
	KindInstanceGroup graph.Kind = "instance-group"
	KindLogGroup      graph.Kind = "log-group"
	KindDNSZone       graph.Kind = "dns-zone"
	KindCertificate   graph.Kind = "certificate"
	KindLoadBalancer  graph.Kind = "load-balancer"
	KindListener      graph.Kind = "listener"
	KindDNSRecord     graph.Kind = "dns-record"
)

// StateOnly reports whether deleting a node of this kind only drops its
// state record and leaves the remote object in place.
func StateOnly(kind graph.Kind) bool {
	switch kind {
	case KindAsset, KindDNSZone, KindImage:
		return true
	}
	return false
}
