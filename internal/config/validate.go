package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"slices"
)

var stackNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,30}[a-z0-9]$`)

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if err := ValidateStackName(c.Stack); err != nil {
		return err
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if !ValidLocations[c.Region] {
		return fmt.Errorf("region %q is not a supported location", c.Region)
	}
	if c.CertificateRegion != "" && !ValidLocations[c.CertificateRegion] {
		return fmt.Errorf("certificate_region %q is not a supported location", c.CertificateRegion)
	}
	if err := c.Domain.validate(); err != nil {
		return err
	}
	if !slices.Contains(SupportedNetworks, c.Network) {
		return fmt.Errorf("network %q is not supported (one of %v)", c.Network, SupportedNetworks)
	}

	if u, err := url.Parse(c.Edge.CertificateAuthority); err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("edge.certificate_authority must be an https ACME directory URL, got %q", c.Edge.CertificateAuthority)
	}

	if err := c.validateNode(); err != nil {
		return fmt.Errorf("node validation failed: %w", err)
	}
	if err := c.validateStores(); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}
	if err := c.validateAccess(); err != nil {
		return fmt.Errorf("access validation failed: %w", err)
	}

	if c.Reconcile.Concurrency < 1 {
		return fmt.Errorf("reconcile.concurrency must be at least 1, got %d", c.Reconcile.Concurrency)
	}
	return nil
}

// ValidateStackName checks that name is usable in every derived resource name.
func ValidateStackName(name string) error {
	if name == "" {
		return fmt.Errorf("stack is required")
	}
	if !stackNamePattern.MatchString(name) {
		return fmt.Errorf("stack %q must be 2-32 lowercase letters, digits or hyphens, starting with a letter", name)
	}
	return nil
}

func (c *Config) validateNode() error {
	if c.Node.ServerType == "" {
		return fmt.Errorf("node.server_type is required")
	}
	if c.Node.Architecture != "arm" && c.Node.Architecture != "x86" {
		return fmt.Errorf("node.architecture must be arm or x86, got %q", c.Node.Architecture)
	}
	if c.Node.VolumeSizeGB < 10 {
		return fmt.Errorf("node.volume_size_gb must be at least 10, got %d", c.Node.VolumeSizeGB)
	}
	if c.Node.User == "" || c.Node.User == "root" {
		return fmt.Errorf("node.user must be a non-root account")
	}
	return nil
}

func (c *Config) validateStores() error {
	if c.ContentStore.Bucket == "" {
		return fmt.Errorf("content_store.bucket is required")
	}
	if c.ContentStore.Endpoint == "" {
		return fmt.Errorf("content_store.endpoint is required")
	}
	if c.Logs.Bucket == "" {
		return fmt.Errorf("logs.bucket is required")
	}
	if c.Logs.StdoutRetentionDays < 1 || c.Logs.StderrRetentionDays < 1 {
		return fmt.Errorf("log retention must be at least one day")
	}

	switch c.State.Backend {
	case StateBackendSQLite:
		if c.State.Path == "" {
			return fmt.Errorf("state.path is required for the sqlite backend")
		}
	case StateBackendS3:
		if c.State.Bucket == "" {
			return fmt.Errorf("state.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("state.backend must be %q or %q, got %q", StateBackendSQLite, StateBackendS3, c.State.Backend)
	}
	return nil
}

func (c *Config) validateAccess() error {
	for _, cidr := range c.Access.AdminCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid admin CIDR %q: %w", cidr, err)
		}
	}
	return nil
}
