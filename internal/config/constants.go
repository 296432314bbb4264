package config

import "time"

// Fixed ports of the node deployment.
const (
	// ExecutionP2PPort is the execution client's peer-to-peer port.
	ExecutionP2PPort = 30303
	// ConsensusP2PPort is the consensus client's peer-to-peer port.
	ConsensusP2PPort = 9000
	// ExecutionHTTPPort serves JSON-RPC and is the load balancer target.
	ExecutionHTTPPort = 8545
	// ExecutionAuthPort is the engine API the consensus client drives.
	ExecutionAuthPort = 8551
	// HTTPSPort is the public listener port.
	HTTPSPort = 443
	// SSHPort is opened only for configured admin CIDRs.
	SSHPort = 22
)

// Defaults applied when a field is left empty.
const (
	DefaultConfigFile       = "nodeforge.yaml"
	DefaultNetwork          = "sepolia"
	DefaultServerType       = "cax21"
	DefaultImage            = "ubuntu-24.04"
	DefaultArchitecture     = "arm"
	DefaultVolumeSizeGB     = 16
	DefaultUser             = "node"
	DefaultLoadBalancerType = "lb11"
	DefaultCertificateCA    = "https://acme-v02.api.letsencrypt.org/directory"
	DefaultStateBackend     = StateBackendSQLite
	DefaultStatePath        = ".nodeforge/state.db"
	DefaultStatePrefix      = "nodeforge/state"
	DefaultConcurrency      = 4

	// Log retention mirrors the client defaults: stdout two weeks, stderr a month.
	DefaultStdoutRetentionDays = 14
	DefaultStderrRetentionDays = 30
)

// CertificateRenewal is both how often an apply re-checks the uploaded
// certificate and how much validity it must have left to be kept.
const CertificateRenewal = 30 * 24 * time.Hour

// DefaultACMEAccountKey is where the ACME account key is kept.
const DefaultACMEAccountKey = ".nodeforge/acme-account.pem"

// State backends.
const (
	StateBackendSQLite = "sqlite"
	StateBackendS3     = "s3"
)

// SupportedNetworks lists the Ethereum networks both clients can join.
var SupportedNetworks = []string{"sepolia", "holesky", "hoodi", "mainnet"}

// ValidLocations contains the Hetzner Cloud locations with object storage.
var ValidLocations = map[string]bool{
	"fsn1": true, // Falkenstein, Germany
	"nbg1": true, // Nuremberg, Germany
	"hel1": true, // Helsinki, Finland
}
