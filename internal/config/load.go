package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile reads, defaults and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// FindConfigFile returns path if set, otherwise the default file in the
// working directory when it exists.
func FindConfigFile(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile, nil
	}
	return "", fmt.Errorf("no config file given and %s not found (run 'nodeforge init')", DefaultConfigFile)
}

// WriteFile marshals cfg to path, creating parent directories.
func WriteFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyDefaults fills every empty field with its default.
func (c *Config) ApplyDefaults() {
	if c.Network == "" {
		c.Network = DefaultNetwork
	}

	if c.Node.ServerType == "" {
		c.Node.ServerType = DefaultServerType
	}
	if c.Node.Image == "" {
		c.Node.Image = DefaultImage
	}
	if c.Node.Architecture == "" {
		c.Node.Architecture = DefaultArchitecture
	}
	if c.Node.VolumeSizeGB == 0 {
		c.Node.VolumeSizeGB = DefaultVolumeSizeGB
	}
	if c.Node.User == "" {
		c.Node.User = DefaultUser
	}

	if c.Edge.LoadBalancerType == "" {
		c.Edge.LoadBalancerType = DefaultLoadBalancerType
	}
	if c.Edge.CertificateAuthority == "" {
		c.Edge.CertificateAuthority = DefaultCertificateCA
	}

	if c.ContentStore.Region == "" {
		c.ContentStore.Region = c.Region
	}
	if c.ContentStore.Endpoint == "" && c.ContentStore.Region != "" {
		c.ContentStore.Endpoint = fmt.Sprintf("https://%s.your-objectstorage.com", c.ContentStore.Region)
	}
	if c.ContentStore.Bucket == "" && c.Stack != "" {
		c.ContentStore.Bucket = c.Stack + "-assets"
	}

	if c.Logs.Bucket == "" && c.Stack != "" {
		c.Logs.Bucket = c.Stack + "-logs"
	}
	if c.Logs.StdoutRetentionDays == 0 {
		c.Logs.StdoutRetentionDays = DefaultStdoutRetentionDays
	}
	if c.Logs.StderrRetentionDays == 0 {
		c.Logs.StderrRetentionDays = DefaultStderrRetentionDays
	}

	if c.State.Backend == "" {
		c.State.Backend = DefaultStateBackend
	}
	if c.State.Backend == StateBackendSQLite && c.State.Path == "" {
		c.State.Path = DefaultStatePath
	}
	if c.State.Backend == StateBackendS3 {
		if c.State.Bucket == "" {
			c.State.Bucket = c.ContentStore.Bucket
		}
		if c.State.Prefix == "" {
			c.State.Prefix = DefaultStatePrefix
		}
	}

	if c.Reconcile.Concurrency == 0 {
		c.Reconcile.Concurrency = DefaultConcurrency
	}
}
