package graph

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// Outputs maps node IDs to the runtime attributes they reported after
// realization.
type Outputs map[string]map[string]string

// UnresolvedRefError is returned when a referenced output is not available.
type UnresolvedRefError struct {
	Ref Ref
}

func (e *UnresolvedRefError) Error() string {
	return fmt.Sprintf("unresolved reference %s", e.Ref)
}

// Resolve returns a copy of props with every Ref replaced by the referenced
// output value.
func Resolve(props Properties, outputs Outputs) (Properties, error) {
	out := make(Properties, len(props))
	for k, v := range props {
		resolved, err := resolveValue(v, outputs)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveValue(v any, outputs Outputs) (any, error) {
	switch val := v.(type) {
	case Ref:
		value, ok := outputs[val.Node][val.Output]
		if !ok {
			return nil, &UnresolvedRefError{Ref: val}
		}
		return value, nil
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			resolved, err := resolveValue(item, outputs)
			if err != nil {
				return nil, err
			}
			items[i] = resolved
		}
		return items, nil
	case []string:
		return append([]string(nil), val...), nil
	case map[string]string:
		m := make(map[string]string, len(val))
		for k, s := range val {
			m[k] = s
		}
		return m, nil
	default:
		return v, nil
	}
}

// Fingerprint hashes the parts of a node that determine its realized shape.
// Map key order does not affect the result; slice order does.
func Fingerprint(kind Kind, region string, props Properties) (string, error) {
	h, err := hashstructure.Hash(struct {
		Kind       string
		Region     string
		Properties map[string]any
	}{
		Kind:       string(kind),
		Region:     region,
		Properties: props,
	}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint node: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}
