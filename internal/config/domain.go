package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DomainSpec is either a fully qualified name or a (subdomain, parent zone)
// pair. In YAML it is a scalar or a two-element sequence.
type DomainSpec struct {
	name   string
	sub    string
	parent string
}

// NewDomain returns a spec for a single fully qualified name. The zone
// looked up is the name itself.
func NewDomain(fqdn string) DomainSpec {
	return DomainSpec{name: fqdn}
}

// NewSubdomain returns a spec for sub under parent.
func NewSubdomain(sub, parent string) DomainSpec {
	return DomainSpec{sub: sub, parent: parent}
}

// IsPair reports whether the spec was given as (subdomain, parent).
func (d DomainSpec) IsPair() bool {
	return d.parent != ""
}

// IsZero reports whether no domain was set.
func (d DomainSpec) IsZero() bool {
	return d.name == "" && d.sub == "" && d.parent == ""
}

// FQDN returns the public name records are created for.
func (d DomainSpec) FQDN() string {
	if d.IsPair() {
		return d.sub + "." + d.parent
	}
	return d.name
}

// Zone returns the hosted zone that must already exist.
func (d DomainSpec) Zone() string {
	if d.IsPair() {
		return d.parent
	}
	return d.name
}

func (d DomainSpec) String() string {
	return d.FQDN()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DomainSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*d = NewDomain(strings.TrimSpace(node.Value))
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return fmt.Errorf("domain: %w", err)
		}
		if len(parts) != 2 {
			return fmt.Errorf("domain: expected [subdomain, parent], got %d elements", len(parts))
		}
		*d = NewSubdomain(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
		return nil
	default:
		return fmt.Errorf("domain: expected a name or [subdomain, parent] (line %d)", node.Line)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (d DomainSpec) MarshalYAML() (any, error) {
	if d.IsPair() {
		return []string{d.sub, d.parent}, nil
	}
	return d.name, nil
}

func (d DomainSpec) validate() error {
	if d.IsZero() {
		return fmt.Errorf("domain is required")
	}
	if d.IsPair() && d.sub == "" {
		return fmt.Errorf("domain: subdomain must not be empty")
	}
	for _, label := range strings.Split(d.FQDN(), ".") {
		if label == "" {
			return fmt.Errorf("domain %q contains an empty label", d.FQDN())
		}
	}
	if !strings.Contains(d.Zone(), ".") {
		return fmt.Errorf("domain zone %q is not a registrable name", d.Zone())
	}
	return nil
}
