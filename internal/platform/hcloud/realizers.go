package hcloud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/util/labels"
	"github.com/imamik/nodeforge/internal/util/retry"
)

// Register binds a realizer for every kind Hetzner Cloud serves.
func Register(reg *provisioning.Registry, c *RealClient) {
	reg.Register(provisioning.KindNetwork, &networkRealizer{c})
	reg.Register(provisioning.KindSubnet, &subnetRealizer{c})
	reg.Register(provisioning.KindFirewall, &firewallRealizer{c})
	reg.Register(provisioning.KindIdentity, &identityRealizer{c})
	reg.Register(provisioning.KindImage, &imageRealizer{c})
	reg.Register(provisioning.KindVolume, &volumeRealizer{c})
	reg.Register(provisioning.KindInstanceGroup, &groupRealizer{c})
	reg.Register(provisioning.KindCertificate, &certificateRealizer{c})
	reg.Register(provisioning.KindLoadBalancer, &loadBalancerRealizer{c})
	reg.Register(provisioning.KindListener, &listenerRealizer{c})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// idProperty parses a resolved reference to another resource's ID.
func idProperty(req provisioning.Request, key string) (int64, error) {
	s, err := req.RequireString(key)
	if err != nil {
		return 0, retry.Fatal(err)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, retry.Fatal(fmt.Errorf("%s %q: property %q is not a resource id: %q", req.Kind, req.ID, key, s))
	}
	return id, nil
}

func requireName(req provisioning.Request) (string, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return "", retry.Fatal(err)
	}
	return name, nil
}

type networkRealizer struct{ c *RealClient }

func (r *networkRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}
	network, err := r.c.EnsureNetwork(ctx, name, req.String("ip_range"), req.StringMap("labels"))
	if err != nil {
		return nil, err
	}
	return provisioning.Outputs{"id": formatID(network.ID), "name": network.Name}, nil
}

func (r *networkRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	return r.c.DeleteNetwork(ctx, req.String("name"))
}

type subnetRealizer struct{ c *RealClient }

func (r *subnetRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	networkID, err := idProperty(req, "network")
	if err != nil {
		return nil, err
	}
	subnetType := hcloud.NetworkSubnetType(req.String("type"))
	if subnetType == "" {
		subnetType = hcloud.NetworkSubnetTypeCloud
	}
	subnet, err := r.c.EnsureSubnet(ctx, networkID, req.String("ip_range"), req.String("network_zone"), subnetType)
	if err != nil {
		return nil, err
	}
	out := provisioning.Outputs{
		"id":       formatID(networkID) + "/" + subnet.IPRange.String(),
		"ip_range": subnet.IPRange.String(),
	}
	if subnet.Gateway != nil {
		out["gateway"] = subnet.Gateway.String()
	}
	return out, nil
}

func (r *subnetRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	networkID, err := idProperty(req, "network")
	if err != nil {
		return err
	}
	return r.c.DeleteSubnet(ctx, networkID, req.String("ip_range"))
}

type firewallRealizer struct{ c *RealClient }

func (r *firewallRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}
	rules, err := FirewallRules(req.Maps("rules"))
	if err != nil {
		return nil, fmt.Errorf("firewall %s: %w", name, err)
	}
	fw, err := r.c.EnsureFirewall(ctx, name, rules, req.String("apply_to"), req.StringMap("labels"))
	if err != nil {
		return nil, err
	}
	return provisioning.Outputs{"id": formatID(fw.ID), "name": fw.Name}, nil
}

func (r *firewallRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	return r.c.DeleteFirewall(ctx, req.String("name"))
}

// identityRealizer models the execution role as the SSH key servers boot
// with. Capability grants travel as labels on the key.
type identityRealizer struct{ c *RealClient }

func (r *identityRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}
	publicKey, err := req.RequireString("public_key")
	if err != nil {
		return nil, retry.Fatal(err)
	}
	keyLabels := req.StringMap("labels")
	if keyLabels == nil {
		keyLabels = map[string]string{}
	}
	for _, grant := range req.Strings("grants") {
		keyLabels[labels.GrantKey(grant)] = "true"
	}
	key, err := r.c.EnsureSSHKey(ctx, name, publicKey, keyLabels)
	if err != nil {
		return nil, err
	}
	out := provisioning.Outputs{
		"id":          formatID(key.ID),
		"name":        key.Name,
		"fingerprint": key.Fingerprint,
	}
	// The object-storage user travels with the role so grants can name it.
	setIfPresent(out, "principal", req.String("principal"))
	return out, nil
}

func (r *identityRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	return r.c.DeleteSSHKey(ctx, req.String("name"))
}

// imageRealizer resolves a provider image. Images are never deleted.
type imageRealizer struct{ c *RealClient }

func (r *imageRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}
	arch, err := ParseArchitecture(req.String("architecture"))
	if err != nil {
		return nil, retry.Fatal(err)
	}
	image, err := r.c.FindImage(ctx, name, arch)
	if err != nil {
		return nil, err
	}
	return provisioning.Outputs{
		"id":           formatID(image.ID),
		"name":         image.Name,
		"architecture": string(image.Architecture),
	}, nil
}

func (r *imageRealizer) Delete(context.Context, provisioning.Request) error {
	return nil
}

type volumeRealizer struct{ c *RealClient }

func (r *volumeRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}
	volume, err := r.c.EnsureVolume(ctx, name, req.Region, req.Int("size_gb"), req.String("format"), req.StringMap("labels"))
	if err != nil {
		return nil, err
	}
	return provisioning.Outputs{
		"id":           formatID(volume.ID),
		"name":         volume.Name,
		"linux_device": volume.LinuxDevice,
	}, nil
}

func (r *volumeRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	return r.c.DeleteVolume(ctx, req.String("name"))
}

// groupRealizer realizes the fixed-size instance group as one server.
type groupRealizer struct{ c *RealClient }

func (r *groupRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}
	if minSize, maxSize := req.Int("min_size"), req.Int("max_size"); minSize != 1 || maxSize != 1 {
		return nil, retry.Fatal(fmt.Errorf("instance group %s: only a size of exactly 1 is supported (min %d, max %d)", name, minSize, maxSize))
	}

	spec := ServerSpec{
		Name:       name,
		ServerType: req.String("server_type"),
		Location:   req.Region,
		UserData:   req.String("user_data"),
		Labels:     req.StringMap("labels"),
	}
	for key, dst := range map[string]*int64{
		"image":    &spec.ImageID,
		"network":  &spec.NetworkID,
		"firewall": &spec.FirewallID,
		"ssh_key":  &spec.SSHKeyID,
		"volume":   &spec.VolumeID,
	} {
		if req.String(key) == "" {
			continue
		}
		if *dst, err = idProperty(req, key); err != nil {
			return nil, err
		}
	}

	server, err := r.c.EnsureServer(ctx, spec)
	if err != nil {
		return nil, err
	}
	out := provisioning.Outputs{
		"id":        formatID(server.ID),
		"name":      server.Name,
		"size":      "1",
		"user_data": server.Labels[labels.KeyUserData],
	}
	setIfPresent(out, "ipv4", ServerIPv4(server))
	setIfPresent(out, "ipv6", ServerIPv6(server))
	setIfPresent(out, "private_ip", ServerPrivateIP(server))
	return out, nil
}

func (r *groupRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	return r.c.DeleteServer(ctx, req.String("name"))
}

// certificateRealizer keeps an uploaded certificate for the domains in
// place, issuing a new one through the certificate source when the
// current one is missing or due for renewal. The zone property is the
// DNS zone the source answers challenges in. Certificates are global; the
// node region is kept for bookkeeping only.
type certificateRealizer struct{ c *RealClient }

func (r *certificateRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}
	domains := req.Strings("domains")
	if len(domains) == 0 {
		return nil, retry.Fatal(fmt.Errorf("certificate %s: no domains", name))
	}
	zone, err := req.RequireString("zone")
	if err != nil {
		return nil, retry.Fatal(err)
	}

	timeout := r.c.timeouts.CertificateIssuance
	issueCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cert, err := r.c.EnsureUploadedCertificate(issueCtx, name, zone, domains, req.StringMap("labels"))
	if err != nil {
		if ctx.Err() == nil && errors.Is(issueCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", &provisioning.TimeoutError{Node: req.ID, Operation: "certificate issuance", Timeout: timeout}, err)
		}
		return nil, err
	}

	out := provisioning.Outputs{"id": formatID(cert.ID), "name": cert.Name}
	if !cert.NotValidAfter.IsZero() {
		out["not_valid_after"] = cert.NotValidAfter.UTC().Format(time.RFC3339)
	}
	return out, nil
}

func (r *certificateRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	return r.c.DeleteCertificate(ctx, req.String("name"))
}

type loadBalancerRealizer struct{ c *RealClient }

func (r *loadBalancerRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	name, err := requireName(req)
	if err != nil {
		return nil, err
	}
	spec := LoadBalancerSpec{
		Name:     name,
		Type:     req.String("type"),
		Location: req.Region,
		Labels:   req.StringMap("labels"),
	}
	if req.String("network") != "" {
		if spec.NetworkID, err = idProperty(req, "network"); err != nil {
			return nil, err
		}
	}

	lb, err := r.c.EnsureLoadBalancer(ctx, spec)
	if err != nil {
		return nil, err
	}
	out := provisioning.Outputs{"id": formatID(lb.ID), "name": lb.Name}
	setIfPresent(out, "ipv4", LoadBalancerIPv4(lb))
	setIfPresent(out, "ipv6", LoadBalancerIPv6(lb))
	return out, nil
}

func (r *loadBalancerRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	return r.c.DeleteLoadBalancer(ctx, req.String("name"))
}

type listenerRealizer struct{ c *RealClient }

func (r *listenerRealizer) Realize(ctx context.Context, req provisioning.Request) (provisioning.Outputs, error) {
	lbID, err := idProperty(req, "load_balancer")
	if err != nil {
		return nil, err
	}
	certID, err := idProperty(req, "certificate")
	if err != nil {
		return nil, err
	}
	if p := req.String("protocol"); p != "" && p != string(hcloud.LoadBalancerServiceProtocolHTTPS) {
		return nil, retry.Fatal(fmt.Errorf("listener %s: protocol %q is not supported", req.ID, p))
	}
	spec := ListenerSpec{
		ListenPort:      req.Int("listen_port"),
		DestinationPort: req.Int("destination_port"),
		CertificateID:   certID,
		TargetSelector:  req.String("target_selector"),
	}
	if spec.ListenPort == 0 || spec.DestinationPort == 0 {
		return nil, retry.Fatal(fmt.Errorf("listener %s: listen_port and destination_port are required", req.ID))
	}

	if _, err := r.c.EnsureListener(ctx, lbID, spec); err != nil {
		return nil, err
	}
	return provisioning.Outputs{
		"id":          fmt.Sprintf("%d:%d", lbID, spec.ListenPort),
		"listen_port": strconv.Itoa(spec.ListenPort),
	}, nil
}

func (r *listenerRealizer) Delete(ctx context.Context, req provisioning.Request) error {
	lbID, err := idProperty(req, "load_balancer")
	if err != nil {
		return err
	}
	return r.c.DeleteListener(ctx, lbID, req.Int("listen_port"), req.String("target_selector"))
}

func setIfPresent(out provisioning.Outputs, key, value string) {
	if value != "" {
		out[key] = value
	}
}

