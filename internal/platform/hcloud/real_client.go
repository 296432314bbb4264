package hcloud

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/config"
)

// RealClient converges Hetzner Cloud resources by name.
type RealClient struct {
	client   *hcloud.Client
	timeouts *config.Timeouts

	// secrets replace placeholders in user data at server creation.
	secrets      map[string]string
	certificates CertificateSource
}

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithHCloudClient replaces the API client, e.g. with one pointed at a test server.
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// WithUserDataSecrets makes the client replace each key of secrets with its
// value in the user data it sends. Labels and digests keep the
// placeholder form.
func WithUserDataSecrets(secrets map[string]string) ClientOption {
	return func(c *RealClient) {
		c.secrets = secrets
	}
}

// WithCertificateSource sets where uploaded certificates come from.
func WithCertificateSource(src CertificateSource) ClientOption {
	return func(c *RealClient) {
		c.certificates = src
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client: hcloud.NewClient(
			hcloud.WithToken(token),
			hcloud.WithApplication("nodeforge", ""),
		),
		timeouts: config.LoadTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
