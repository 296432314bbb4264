package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/util/retry"
)

// EnsureNetwork ensures that a network with the given range exists and
// carries labels.
func (c *RealClient) EnsureNetwork(ctx context.Context, name, ipRange string, labels map[string]string) (*hcloud.Network, error) {
	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("invalid network ip range %q: %w", ipRange, err))
	}

	return (&EnsureOperation[*hcloud.Network, hcloud.NetworkCreateOpts, hcloud.NetworkUpdateOpts]{
		Name:         name,
		ResourceType: "network",
		Get:          c.client.Network.Get,
		Create:       simpleCreate(c.client.Network.Create),
		Update:       updateOnly(c.client.Network.Update),
		Validate: func(network *hcloud.Network) error {
			if network.IPRange.String() != ipNet.String() {
				return retry.Fatal(fmt.Errorf("network %s exists with ip range %s (expected %s)",
					name, network.IPRange.String(), ipNet.String()))
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.NetworkCreateOpts {
			return hcloud.NetworkCreateOpts{
				Name:    name,
				IPRange: ipNet,
				Labels:  labels,
			}
		},
		UpdateOptsMapper: func(*hcloud.Network) hcloud.NetworkUpdateOpts {
			return hcloud.NetworkUpdateOpts{Labels: labels}
		},
	}).Execute(ctx, c)
}

// EnsureSubnet ensures that the network identified by networkID has a
// subnet with ipRange.
func (c *RealClient) EnsureSubnet(ctx context.Context, networkID int64, ipRange, networkZone string, subnetType hcloud.NetworkSubnetType) (*hcloud.NetworkSubnet, error) {
	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return nil, retry.Fatal(fmt.Errorf("invalid subnet ip range %q: %w", ipRange, err))
	}

	network, _, err := c.client.Network.GetByID(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get network: %w", err)
	}
	if network == nil {
		return nil, fmt.Errorf("network %d not found", networkID)
	}
	if subnet := findSubnet(network, ipNet); subnet != nil {
		return subnet, nil
	}

	subnet := hcloud.NetworkSubnet{
		Type:        subnetType,
		IPRange:     ipNet,
		NetworkZone: hcloud.NetworkZone(networkZone),
	}
	action, _, err := c.client.Network.AddSubnet(ctx, network, hcloud.NetworkAddSubnetOpts{Subnet: subnet})
	if err != nil {
		return nil, fmt.Errorf("failed to add subnet: %w", err)
	}
	if err := c.client.Action.WaitFor(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to wait for subnet creation: %w", err)
	}
	return &subnet, nil
}

// DeleteSubnet removes the subnet with ipRange. A missing network or
// subnet is not an error.
func (c *RealClient) DeleteSubnet(ctx context.Context, networkID int64, ipRange string) error {
	_, ipNet, err := net.ParseCIDR(ipRange)
	if err != nil {
		return retry.Fatal(fmt.Errorf("invalid subnet ip range %q: %w", ipRange, err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Delete)
	defer cancel()

	return retry.WithExponentialBackoff(ctx, func() error {
		network, _, err := c.client.Network.GetByID(ctx, networkID)
		if err != nil {
			return retry.Fatal(fmt.Errorf("failed to get network: %w", err))
		}
		if network == nil {
			return nil
		}
		subnet := findSubnet(network, ipNet)
		if subnet == nil {
			return nil
		}
		action, _, err := c.client.Network.DeleteSubnet(ctx, network, hcloud.NetworkDeleteSubnetOpts{Subnet: *subnet})
		if err != nil {
			if isResourceLocked(err) {
				return err
			}
			return retry.Fatal(err)
		}
		return c.client.Action.WaitFor(ctx, action)
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

func findSubnet(network *hcloud.Network, ipNet *net.IPNet) *hcloud.NetworkSubnet {
	for i := range network.Subnets {
		s := network.Subnets[i]
		if s.IPRange != nil && s.IPRange.String() == ipNet.String() {
			return &s
		}
	}
	return nil
}

// DeleteNetwork deletes the network with the given name.
func (c *RealClient) DeleteNetwork(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Network]{
		Name:         name,
		ResourceType: "network",
		Get:          c.client.Network.Get,
		Delete:       c.client.Network.Delete,
	}).Execute(ctx, c)
}

// GetNetwork returns the network with the given name, or nil.
func (c *RealClient) GetNetwork(ctx context.Context, name string) (*hcloud.Network, error) {
	network, _, err := c.client.Network.Get(ctx, name)
	return network, err
}
