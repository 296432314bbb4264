package labels

import "sort"

// Standard label keys for Hetzner Cloud resources.
const (
	// KeyStack identifies which stack a resource belongs to
	KeyStack = "nodeforge.io/stack"

	// KeyRole identifies what a resource does within the stack
	KeyRole = "nodeforge.io/role"

	// KeyNode is the graph node ID that realized the resource
	KeyNode = "nodeforge.io/node"

	// KeyNetwork identifies the Ethereum network a node serves
	KeyNetwork = "nodeforge.io/network"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "nodeforge.io/managed-by"

	// KeyUserData records the digest of the startup script a server booted with
	KeyUserData = "nodeforge.io/user-data"

	grantPrefix = "nodeforge.io/grant-"
)

// GrantKey is the label key marking a capability grant on an identity.
func GrantKey(grant string) string {
	return grantPrefix + grant
}

// Role values
const (
	RoleExecution = "execution"
	RoleEdge      = "edge"
)

// ManagedByNodeforge is the KeyManagedBy value for everything nodeforge creates.
const ManagedByNodeforge = "nodeforge"

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the stack name pre-set.
func NewLabelBuilder(stack string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyStack:     stack,
			KeyManagedBy: ManagedByNodeforge,
		},
	}
}

// WithRole adds a role label.
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithNode records the graph node ID.
func (lb *LabelBuilder) WithNode(id string) *LabelBuilder {
	lb.labels[KeyNode] = id
	return lb
}

// WithNetwork adds the Ethereum network label when set.
func (lb *LabelBuilder) WithNetwork(network string) *LabelBuilder {
	if network != "" {
		lb.labels[KeyNetwork] = network
	}
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorForStack returns a label selector string for all resources in a stack.
func SelectorForStack(stack string) string {
	return KeyStack + "=" + stack
}

// SelectorForRole narrows SelectorForStack to one role.
func SelectorForRole(stack, role string) string {
	return SelectorForStack(stack) + "," + KeyRole + "=" + role
}

// Selector renders a label set as a selector with keys in sorted order.
func Selector(set map[string]string) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k + "=" + set[k]
	}
	return out
}
