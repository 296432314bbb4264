package hcloud

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/util/retry"
)

// LoadBalancerSpec is the desired state of the edge load balancer.
type LoadBalancerSpec struct {
	Name      string
	Type      string
	Location  string
	NetworkID int64
	Labels    map[string]string
}

// ListenerSpec is one TLS-terminating service on the load balancer.
type ListenerSpec struct {
	ListenPort      int
	DestinationPort int
	CertificateID   int64
	// TargetSelector picks the servers traffic is forwarded to over the
	// private network.
	TargetSelector string
}

// EnsureLoadBalancer ensures that the load balancer exists, carries
// labels and is attached to the private network.
// Creation can take several minutes.
func (c *RealClient) EnsureLoadBalancer(ctx context.Context, spec LoadBalancerSpec) (*hcloud.LoadBalancer, error) {
	lb, err := (&EnsureOperation[*hcloud.LoadBalancer, hcloud.LoadBalancerCreateOpts, hcloud.LoadBalancerUpdateOpts]{
		Name:         spec.Name,
		ResourceType: "load balancer",
		Get:          c.client.LoadBalancer.Get,
		Create:       c.createLoadBalancer,
		Update:       updateOnly(c.client.LoadBalancer.Update),
		Validate: func(lb *hcloud.LoadBalancer) error {
			if lb.Location != nil && spec.Location != "" && lb.Location.Name != spec.Location {
				return retry.Fatal(fmt.Errorf("load balancer %s exists in %s (expected %s)", spec.Name, lb.Location.Name, spec.Location))
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.LoadBalancerCreateOpts {
			opts := hcloud.LoadBalancerCreateOpts{
				Name:             spec.Name,
				LoadBalancerType: &hcloud.LoadBalancerType{Name: spec.Type},
				Location:         &hcloud.Location{Name: spec.Location},
				Algorithm:        &hcloud.LoadBalancerAlgorithm{Type: hcloud.LoadBalancerAlgorithmTypeRoundRobin},
				Labels:           spec.Labels,
				PublicInterface:  hcloud.Ptr(true),
			}
			if spec.NetworkID != 0 {
				opts.Network = &hcloud.Network{ID: spec.NetworkID}
			}
			return opts
		},
		UpdateOptsMapper: func(*hcloud.LoadBalancer) hcloud.LoadBalancerUpdateOpts {
			return hcloud.LoadBalancerUpdateOpts{Labels: spec.Labels}
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	if spec.NetworkID != 0 && !attachedTo(lb, spec.NetworkID) {
		action, _, err := c.client.LoadBalancer.AttachToNetwork(ctx, lb, hcloud.LoadBalancerAttachToNetworkOpts{
			Network: &hcloud.Network{ID: spec.NetworkID},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to attach load balancer to network: %w", err)
		}
		if err := c.client.Action.WaitFor(ctx, action); err != nil {
			return nil, fmt.Errorf("failed to wait for load balancer attach: %w", err)
		}
	}
	return c.getLoadBalancer(ctx, lb.ID)
}

func (c *RealClient) createLoadBalancer(ctx context.Context, opts hcloud.LoadBalancerCreateOpts) (*CreateResult[*hcloud.LoadBalancer], *hcloud.Response, error) {
	res, resp, err := c.client.LoadBalancer.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.LoadBalancer]{
		Resource: res.LoadBalancer,
		Action:   res.Action,
	}, resp, nil
}

func attachedTo(lb *hcloud.LoadBalancer, networkID int64) bool {
	for _, pn := range lb.PrivateNet {
		if pn.Network != nil && pn.Network.ID == networkID {
			return true
		}
	}
	return false
}

func (c *RealClient) getLoadBalancer(ctx context.Context, id int64) (*hcloud.LoadBalancer, error) {
	lb, _, err := c.client.LoadBalancer.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get load balancer: %w", err)
	}
	if lb == nil {
		return nil, fmt.Errorf("load balancer %d not found", id)
	}
	return lb, nil
}

// EnsureListener ensures that the load balancer terminates TLS on
// ListenPort with the certificate and forwards plain HTTP to the target
// servers.
func (c *RealClient) EnsureListener(ctx context.Context, lbID int64, spec ListenerSpec) (*hcloud.LoadBalancer, error) {
	lb, err := c.getLoadBalancer(ctx, lbID)
	if err != nil {
		return nil, err
	}
	cert := &hcloud.Certificate{ID: spec.CertificateID}

	svc := findService(lb, spec.ListenPort)
	switch {
	case svc == nil:
		action, _, err := c.client.LoadBalancer.AddService(ctx, lb, hcloud.LoadBalancerAddServiceOpts{
			Protocol:        hcloud.LoadBalancerServiceProtocolHTTPS,
			ListenPort:      hcloud.Ptr(spec.ListenPort),
			DestinationPort: hcloud.Ptr(spec.DestinationPort),
			HTTP: &hcloud.LoadBalancerAddServiceOptsHTTP{
				Certificates: []*hcloud.Certificate{cert},
				RedirectHTTP: hcloud.Ptr(false),
			},
			HealthCheck: &hcloud.LoadBalancerAddServiceOptsHealthCheck{
				Protocol: hcloud.LoadBalancerServiceProtocolTCP,
				Port:     hcloud.Ptr(spec.DestinationPort),
				Interval: hcloud.Ptr(15 * time.Second),
				Timeout:  hcloud.Ptr(10 * time.Second),
				Retries:  hcloud.Ptr(3),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add service: %w", err)
		}
		if err := c.client.Action.WaitFor(ctx, action); err != nil {
			return nil, fmt.Errorf("failed to wait for service: %w", err)
		}
	case !serviceMatches(svc, spec):
		action, _, err := c.client.LoadBalancer.UpdateService(ctx, lb, spec.ListenPort, hcloud.LoadBalancerUpdateServiceOpts{
			Protocol:        hcloud.LoadBalancerServiceProtocolHTTPS,
			DestinationPort: hcloud.Ptr(spec.DestinationPort),
			HTTP: &hcloud.LoadBalancerUpdateServiceOptsHTTP{
				Certificates: []*hcloud.Certificate{cert},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update service: %w", err)
		}
		if err := c.client.Action.WaitFor(ctx, action); err != nil {
			return nil, fmt.Errorf("failed to wait for service update: %w", err)
		}
	}

	if spec.TargetSelector != "" && !hasSelectorTarget(lb, spec.TargetSelector) {
		action, _, err := c.client.LoadBalancer.AddLabelSelectorTarget(ctx, lb, hcloud.LoadBalancerAddLabelSelectorTargetOpts{
			Selector:     spec.TargetSelector,
			UsePrivateIP: hcloud.Ptr(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add target: %w", err)
		}
		if err := c.client.Action.WaitFor(ctx, action); err != nil {
			return nil, fmt.Errorf("failed to wait for target: %w", err)
		}
	}
	return c.getLoadBalancer(ctx, lbID)
}

func findService(lb *hcloud.LoadBalancer, listenPort int) *hcloud.LoadBalancerService {
	for i := range lb.Services {
		if lb.Services[i].ListenPort == listenPort {
			return &lb.Services[i]
		}
	}
	return nil
}

func serviceMatches(svc *hcloud.LoadBalancerService, spec ListenerSpec) bool {
	if svc.Protocol != hcloud.LoadBalancerServiceProtocolHTTPS || svc.DestinationPort != spec.DestinationPort {
		return false
	}
	return slices.ContainsFunc(svc.HTTP.Certificates, func(c *hcloud.Certificate) bool {
		return c != nil && c.ID == spec.CertificateID
	})
}

func hasSelectorTarget(lb *hcloud.LoadBalancer, selector string) bool {
	for _, t := range lb.Targets {
		if t.Type == hcloud.LoadBalancerTargetTypeLabelSelector && t.LabelSelector != nil && t.LabelSelector.Selector == selector {
			return true
		}
	}
	return false
}

// DeleteListener removes the service on listenPort and the selector
// target. A missing load balancer is not an error.
func (c *RealClient) DeleteListener(ctx context.Context, lbID int64, listenPort int, selector string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Delete)
	defer cancel()

	lb, _, err := c.client.LoadBalancer.GetByID(ctx, lbID)
	if err != nil {
		return fmt.Errorf("failed to get load balancer: %w", err)
	}
	if lb == nil {
		return nil
	}
	if findService(lb, listenPort) != nil {
		action, _, err := c.client.LoadBalancer.DeleteService(ctx, lb, listenPort)
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to delete service: %w", err)
		}
		if action != nil {
			if err := c.client.Action.WaitFor(ctx, action); err != nil {
				return fmt.Errorf("failed to wait for service deletion: %w", err)
			}
		}
	}
	if selector != "" && hasSelectorTarget(lb, selector) {
		action, _, err := c.client.LoadBalancer.RemoveLabelSelectorTarget(ctx, lb, selector)
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to remove target: %w", err)
		}
		if action != nil {
			if err := c.client.Action.WaitFor(ctx, action); err != nil {
				return fmt.Errorf("failed to wait for target removal: %w", err)
			}
		}
	}
	return nil
}

// DeleteLoadBalancer deletes the load balancer with the given name.
func (c *RealClient) DeleteLoadBalancer(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.LoadBalancer]{
		Name:         name,
		ResourceType: "load balancer",
		Get:          c.client.LoadBalancer.Get,
		Delete:       c.client.LoadBalancer.Delete,
	}).Execute(ctx, c)
}

// LoadBalancerIPv4 extracts the public IPv4 address, or "".
func LoadBalancerIPv4(lb *hcloud.LoadBalancer) string {
	if lb != nil && lb.PublicNet.IPv4.IP != nil {
		return lb.PublicNet.IPv4.IP.String()
	}
	return ""
}

// LoadBalancerIPv6 extracts the public IPv6 address, or "".
func LoadBalancerIPv6(lb *hcloud.LoadBalancer) string {
	if lb != nil && lb.PublicNet.IPv6.IP != nil {
		return lb.PublicNet.IPv6.IP.String()
	}
	return ""
}
