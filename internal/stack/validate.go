package stack

import (
	"fmt"
	"slices"

	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/provisioning"
)

// InvariantError reports a deployment graph that is structurally valid but
// does not describe a single-node deployment.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invalid deployment graph: " + e.Reason
}

// Validate checks the graph rules and the deployment invariants: exactly
// one network, one instance group and one load balancer, and DNS records
// only behind a zone named after the domain's parent zone.
func Validate(g *graph.Graph, domain config.DomainSpec) error {
	if err := g.Validate(); err != nil {
		return err
	}

	byKind := make(map[graph.Kind][]*graph.Node)
	for _, n := range g.Nodes() {
		byKind[n.Kind] = append(byKind[n.Kind], n)
	}

	for _, kind := range []graph.Kind{provisioning.KindNetwork, provisioning.KindInstanceGroup, provisioning.KindLoadBalancer} {
		if got := len(byKind[kind]); got != 1 {
			return &InvariantError{Reason: fmt.Sprintf("want exactly one %s, got %d", kind, got)}
		}
	}

	records := byKind[provisioning.KindDNSRecord]
	if len(records) == 0 {
		return nil
	}
	zones := byKind[provisioning.KindDNSZone]
	if len(zones) != 1 {
		return &InvariantError{Reason: fmt.Sprintf("dns records need exactly one zone, got %d", len(zones))}
	}
	zone := zones[0]
	if name, _ := zone.Properties["name"].(string); name != domain.Zone() {
		return &InvariantError{Reason: fmt.Sprintf("zone %q does not match domain zone %q", name, domain.Zone())}
	}

	lb := byKind[provisioning.KindLoadBalancer][0]
	listeners := byKind[provisioning.KindListener]
	for _, rec := range records {
		required := []string{zone.ID, lb.ID}
		for _, l := range listeners {
			required = append(required, l.ID)
		}
		for _, dep := range required {
			if !slices.Contains(rec.DependsOn, dep) {
				return &InvariantError{Reason: fmt.Sprintf("record %q must depend on %q", rec.ID, dep)}
			}
		}
	}
	return nil
}
