package hcloud

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/nodeforge/internal/util/retry"
)

// EnsureFirewall ensures that a firewall with exactly rules exists and is
// applied to servers matching selector.
func (c *RealClient) EnsureFirewall(ctx context.Context, name string, rules []hcloud.FirewallRule, selector string, labels map[string]string) (*hcloud.Firewall, error) {
	fw, err := (&EnsureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts, hcloud.FirewallSetRulesOpts]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Create:       c.createFirewall,
		Update:       c.client.Firewall.SetRules,
		CreateOptsMapper: func() hcloud.FirewallCreateOpts {
			return hcloud.FirewallCreateOpts{
				Name:   name,
				Rules:  rules,
				Labels: labels,
			}
		},
		UpdateOptsMapper: func(*hcloud.Firewall) hcloud.FirewallSetRulesOpts {
			return hcloud.FirewallSetRulesOpts{Rules: rules}
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	if selector == "" || appliedToSelector(fw, selector) {
		return fw, nil
	}
	actions, _, err := c.client.Firewall.ApplyResources(ctx, fw, []hcloud.FirewallResource{{
		Type:          hcloud.FirewallResourceTypeLabelSelector,
		LabelSelector: &hcloud.FirewallResourceLabelSelector{Selector: selector},
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to apply firewall to %q: %w", selector, err)
	}
	if err := waitForActions(ctx, c.client, actions...); err != nil {
		return nil, fmt.Errorf("failed to wait for firewall apply: %w", err)
	}
	return fw, nil
}

func appliedToSelector(fw *hcloud.Firewall, selector string) bool {
	for _, res := range fw.AppliedTo {
		if res.Type == hcloud.FirewallResourceTypeLabelSelector &&
			res.LabelSelector != nil && res.LabelSelector.Selector == selector {
			return true
		}
	}
	return false
}

func (c *RealClient) createFirewall(ctx context.Context, opts hcloud.FirewallCreateOpts) (*CreateResult[*hcloud.Firewall], *hcloud.Response, error) {
	res, resp, err := c.client.Firewall.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	return &CreateResult[*hcloud.Firewall]{
		Resource: res.Firewall,
		Actions:  res.Actions,
	}, resp, nil
}

// DeleteFirewall deletes the firewall with the given name. Resources it is
// applied to are released first.
func (c *RealClient) DeleteFirewall(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Firewall]{
		Name:         name,
		ResourceType: "firewall",
		Get:          c.client.Firewall.Get,
		Delete: func(ctx context.Context, fw *hcloud.Firewall) (*hcloud.Response, error) {
			if len(fw.AppliedTo) > 0 {
				actions, resp, err := c.client.Firewall.RemoveResources(ctx, fw, fw.AppliedTo)
				if err != nil {
					return resp, err
				}
				if err := waitForActions(ctx, c.client, actions...); err != nil {
					return resp, err
				}
			}
			return c.client.Firewall.Delete(ctx, fw)
		},
	}).Execute(ctx, c)
}

// GetFirewall returns the firewall with the given name, or nil.
func (c *RealClient) GetFirewall(ctx context.Context, name string) (*hcloud.Firewall, error) {
	fw, _, err := c.client.Firewall.Get(ctx, name)
	return fw, err
}

// FirewallRules converts rule specs with the keys direction, protocol,
// port, source_ips (comma separated) and description. Malformed specs are
// fatal.
func FirewallRules(specs []map[string]string) ([]hcloud.FirewallRule, error) {
	rules := make([]hcloud.FirewallRule, 0, len(specs))
	for i, spec := range specs {
		rule := hcloud.FirewallRule{
			Direction: hcloud.FirewallRuleDirection(spec["direction"]),
			Protocol:  hcloud.FirewallRuleProtocol(spec["protocol"]),
		}
		switch rule.Direction {
		case hcloud.FirewallRuleDirectionIn, hcloud.FirewallRuleDirectionOut:
		default:
			return nil, retry.Fatal(fmt.Errorf("rule %d: invalid direction %q", i, spec["direction"]))
		}
		if port := spec["port"]; port != "" {
			rule.Port = hcloud.Ptr(port)
		}
		if desc := spec["description"]; desc != "" {
			rule.Description = hcloud.Ptr(desc)
		}

		ips, err := parseCIDRList(spec["source_ips"])
		if err != nil {
			return nil, retry.Fatal(fmt.Errorf("rule %d: %w", i, err))
		}
		if rule.Direction == hcloud.FirewallRuleDirectionIn {
			rule.SourceIPs = ips
		} else {
			rule.DestinationIPs = ips
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseCIDRList(s string) ([]net.IPNet, error) {
	var out []net.IPNet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(part)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", part, err)
		}
		out = append(out, *ipNet)
	}
	return out, nil
}
