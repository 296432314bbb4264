package hcloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"net"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/util/labels"
	"github.com/imamik/nodeforge/internal/util/retry"
)

// ServerSpec is the desired state of the single instance.
type ServerSpec struct {
	Name       string
	ServerType string
	Location   string
	ImageID    int64
	NetworkID  int64
	FirewallID int64
	SSHKeyID   int64
	VolumeID   int64
	UserData   string
	Labels     map[string]string
}

// UserDataDigest is the label value recording which startup script a
// server booted with.
func UserDataDigest(userData string) string {
	sum := sha256.Sum256([]byte(userData))
	return hex.EncodeToString(sum[:8])
}

// EnsureServer ensures that a server matching spec is running. User data
// only runs at first boot, so a server created from another script is
// replaced.
func (c *RealClient) EnsureServer(ctx context.Context, spec ServerSpec) (*hcloud.Server, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Realize)
	defer cancel()

	want := maps.Clone(spec.Labels)
	if want == nil {
		want = map[string]string{}
	}
	want[labels.KeyUserData] = UserDataDigest(spec.UserData)

	server, _, err := c.client.Server.Get(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	if server != nil && server.Labels[labels.KeyUserData] != want[labels.KeyUserData] {
		if err := c.DeleteServer(ctx, spec.Name); err != nil {
			return nil, fmt.Errorf("failed to replace server: %w", err)
		}
		server = nil
	}

	if server == nil {
		opts, err := c.buildServerCreateOpts(ctx, spec, want)
		if err != nil {
			return nil, err
		}
		if server, err = c.createServerWithRetry(ctx, opts); err != nil {
			return nil, err
		}
	} else if !maps.Equal(server.Labels, want) {
		if server, _, err = c.client.Server.Update(ctx, server, hcloud.ServerUpdateOpts{Labels: want}); err != nil {
			return nil, fmt.Errorf("failed to update server labels: %w", err)
		}
	}

	if err := c.ensureServerNetwork(ctx, server, spec.NetworkID); err != nil {
		return nil, err
	}
	if spec.VolumeID != 0 {
		if err := c.AttachVolume(ctx, spec.VolumeID, server); err != nil {
			return nil, err
		}
	}

	refreshed, _, err := c.client.Server.GetByID(ctx, server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh server: %w", err)
	}
	if refreshed == nil {
		return nil, fmt.Errorf("server %s disappeared after creation", spec.Name)
	}
	return refreshed, nil
}

func (c *RealClient) expandUserData(userData string) string {
	for placeholder, value := range c.secrets {
		userData = strings.ReplaceAll(userData, placeholder, value)
	}
	return userData
}

func (c *RealClient) buildServerCreateOpts(ctx context.Context, spec ServerSpec, serverLabels map[string]string) (hcloud.ServerCreateOpts, error) {
	serverType, _, err := c.client.ServerType.Get(ctx, spec.ServerType)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return hcloud.ServerCreateOpts{}, retry.Fatal(fmt.Errorf("server type not found: %s", spec.ServerType))
	}

	image, _, err := c.client.Image.GetByID(ctx, spec.ImageID)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return hcloud.ServerCreateOpts{}, retry.Fatal(fmt.Errorf("image %d not found", spec.ImageID))
	}
	if image.Architecture != serverType.Architecture {
		return hcloud.ServerCreateOpts{}, retry.Fatal(fmt.Errorf("image %s is %s but server type %s is %s",
			image.Name, image.Architecture, serverType.Name, serverType.Architecture))
	}

	opts := hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: serverType,
		Image:      image,
		Labels:     serverLabels,
		UserData:   c.expandUserData(spec.UserData),
		Location:   &hcloud.Location{Name: spec.Location},
		PublicNet: &hcloud.ServerCreatePublicNet{
			EnableIPv4: true,
			EnableIPv6: true,
		},
	}
	if spec.SSHKeyID != 0 {
		opts.SSHKeys = []*hcloud.SSHKey{{ID: spec.SSHKeyID}}
	}
	if spec.NetworkID != 0 {
		opts.Networks = []*hcloud.Network{{ID: spec.NetworkID}}
	}
	if spec.FirewallID != 0 {
		opts.Firewalls = []*hcloud.ServerCreateFirewall{{Firewall: hcloud.Firewall{ID: spec.FirewallID}}}
	}
	return opts, nil
}

func (c *RealClient) createServerWithRetry(ctx context.Context, opts hcloud.ServerCreateOpts) (*hcloud.Server, error) {
	var result hcloud.ServerCreateResult

	err := retry.WithExponentialBackoff(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, opts)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	actions := append([]*hcloud.Action{result.Action}, result.NextActions...)
	if err := waitForActions(ctx, c.client, actions...); err != nil {
		return nil, fmt.Errorf("failed to wait for server creation: %w", err)
	}
	return result.Server, nil
}

func (c *RealClient) ensureServerNetwork(ctx context.Context, server *hcloud.Server, networkID int64) error {
	if networkID == 0 {
		return nil
	}
	for _, pn := range server.PrivateNet {
		if pn.Network != nil && pn.Network.ID == networkID {
			return nil
		}
	}

	return retry.WithExponentialBackoff(ctx, func() error {
		action, _, err := c.client.Server.AttachToNetwork(ctx, server, hcloud.ServerAttachToNetworkOpts{
			Network: &hcloud.Network{ID: networkID},
		})
		if err != nil {
			if isHCloudErrorCode(err, hcloud.ErrorCodeServerAlreadyAttached) {
				return nil
			}
			return err
		}
		return c.client.Action.WaitFor(ctx, action)
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

// DeleteServer deletes the server with the given name and waits until it
// is gone.
func (c *RealClient) DeleteServer(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Server]{
		Name:         name,
		ResourceType: "server",
		Get:          c.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			result, resp, err := c.client.Server.DeleteWithResult(ctx, server)
			if err != nil {
				return resp, err
			}
			return resp, waitForActions(ctx, c.client, result.Action)
		},
	}).Execute(ctx, c)
}

// ServerIPv4 extracts the public IPv4 address from a server, or "".
func ServerIPv4(s *hcloud.Server) string {
	if s != nil && s.PublicNet.IPv4.IP != nil {
		return s.PublicNet.IPv4.IP.String()
	}
	return ""
}

// ServerIPv6 returns the ::1 host of the public IPv6 network, or "".
func ServerIPv6(s *hcloud.Server) string {
	if s == nil || s.PublicNet.IPv6.Network == nil {
		return ""
	}
	base := s.PublicNet.IPv6.IP.To16()
	if base == nil {
		return ""
	}
	ip := make(net.IP, net.IPv6len)
	copy(ip, base)
	ip[net.IPv6len-1] |= 1
	return ip.String()
}

// ServerPrivateIP returns the address in the first attached network, or "".
func ServerPrivateIP(s *hcloud.Server) string {
	if s != nil && len(s.PrivateNet) > 0 && s.PrivateNet[0].IP != nil {
		return s.PrivateNet[0].IP.String()
	}
	return ""
}
