package config

// Config is the desired state of one node deployment.
type Config struct {
	// Stack names the deployment. All resource names derive from it.
	Stack string `yaml:"stack"`
	// Account optionally pins the deployment to a cloud project.
	Account string `yaml:"account,omitempty"`
	// Region is the Hetzner location for compute, network and edge.
	Region string `yaml:"region"`
	// CertificateRegion is where the certificate is requested. Defaults to Region.
	CertificateRegion string `yaml:"certificate_region,omitempty"`
	// Domain is the public name of the RPC endpoint.
	Domain DomainSpec `yaml:"domain"`
	// Network is the Ethereum network both clients join.
	Network string `yaml:"network"`

	Node         NodeConfig      `yaml:"node"`
	Edge         EdgeConfig      `yaml:"edge"`
	ContentStore StoreConfig     `yaml:"content_store"`
	Logs         LogsConfig      `yaml:"logs"`
	State        StateConfig     `yaml:"state"`
	Access       AccessConfig    `yaml:"access"`
	Assets       AssetsConfig    `yaml:"assets"`
	Reconcile    ReconcileConfig `yaml:"reconcile"`
}

// NodeConfig describes the single compute unit.
type NodeConfig struct {
	ServerType   string `yaml:"server_type"`
	Image        string `yaml:"image"`
	Architecture string `yaml:"architecture"`
	VolumeSizeGB int    `yaml:"volume_size_gb"`
	// User is the unprivileged account the clients run as.
	User string `yaml:"user"`
}

// EdgeConfig describes the public entry point.
type EdgeConfig struct {
	LoadBalancerType string `yaml:"load_balancer_type"`
	// CertificateAuthority is the ACME directory the certificate is
	// ordered from.
	CertificateAuthority string `yaml:"certificate_authority,omitempty"`
	// CertificateEmail is the optional ACME account contact.
	CertificateEmail string `yaml:"certificate_email,omitempty"`
}

// StoreConfig points at the S3-compatible content store for bootstrap assets.
type StoreConfig struct {
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
}

// LogsConfig configures client log retention.
type LogsConfig struct {
	Bucket              string `yaml:"bucket"`
	StdoutRetentionDays int    `yaml:"stdout_retention_days"`
	StderrRetentionDays int    `yaml:"stderr_retention_days"`
}

// StateConfig selects where reconcile state is persisted.
type StateConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
	Bucket  string `yaml:"bucket,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
}

// AccessConfig controls operator access to the node.
type AccessConfig struct {
	SSHPublicKeyPath string   `yaml:"ssh_public_key_path,omitempty"`
	AdminCIDRs       []string `yaml:"admin_cidrs,omitempty"`
	// StoragePrincipal is the bucket policy user that owns the node's
	// object-storage key. Defaults to the node access key ID.
	StoragePrincipal string `yaml:"storage_principal,omitempty"`
}

// EffectiveStoragePrincipal returns the policy user the node's asset and
// log grants name.
func (c *Config) EffectiveStoragePrincipal(nodeAccessKey string) string {
	if c.Access.StoragePrincipal != "" {
		return c.Access.StoragePrincipal
	}
	return nodeAccessKey
}

// AssetsConfig overrides the built-in bootstrap artifacts.
type AssetsConfig struct {
	InstallScript string `yaml:"install_script,omitempty"`
	NodeConfig    string `yaml:"node_config,omitempty"`
}

// ReconcileConfig tunes the reconciler.
type ReconcileConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// EffectiveCertificateRegion returns the region certificates are requested in.
func (c *Config) EffectiveCertificateRegion() string {
	if c.CertificateRegion != "" {
		return c.CertificateRegion
	}
	return c.Region
}
