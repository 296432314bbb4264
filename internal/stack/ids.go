package stack

import "github.com/imamik/nodeforge/internal/artifact"

// Stable node IDs.
const (
	NodeNetwork  = "network"
	NodeSubnet   = "network.subnet"
	NodeFirewall = "network.firewall"

	NodeIdentity = "identity.execution-role"

	NodeAssetBucket = "assets.bucket"
	NodeAssetGrant  = "assets.grant"

	NodeImage  = "compute.image"
	NodeVolume = "compute.volume"
	NodeGroup  = "compute.group"

	NodeLogBucket = "observability.bucket"
	NodeLogGrant  = "observability.grant"

	NodeZone        = "dns.zone"
	NodeCertificate = "edge.certificate"
	NodeBalancer    = "edge.load-balancer"
	NodeListener    = "edge.listener"
	NodeRecordA     = "dns.record-a"
	NodeRecordAAAA  = "dns.record-aaaa"
)

// Output names realizers report and nodes reference.
const (
	OutID   = "id"
	OutName = "name"
	OutIPv4 = "ipv4"
	OutIPv6 = "ipv6"
	OutURL  = "url"
	// OutPrincipal is the bucket policy user the execution role signs
	// content store requests as.
	OutPrincipal = "principal"
)

// AssetNode returns the node ID of the asset holding a's content. Artifacts
// with identical content share it.
func AssetNode(a *artifact.Artifact) string {
	return "assets." + a.ShortDigest()
}

// LogGroupNode returns the node ID of one client stream's log group.
func LogGroupNode(client, stream string) string {
	return "observability." + client + "-" + stream
}
