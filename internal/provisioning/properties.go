package provisioning

import (
	"fmt"
	"sort"
)

// Property accessors tolerate the shapes values take after a JSON round
// trip through the state store: numbers become float64, lists []any and
// maps map[string]any.

// String returns the string property key, or "".
func (r Request) String(key string) string {
	s, _ := r.Properties[key].(string)
	return s
}

// RequireString returns the string property key or an error naming it.
func (r Request) RequireString(key string) (string, error) {
	s := r.String(key)
	if s == "" {
		return "", fmt.Errorf("%s %q: property %q is required", r.Kind, r.ID, key)
	}
	return s, nil
}

// Int returns the integer property key, or 0.
func (r Request) Int(key string) int {
	switch v := r.Properties[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns the boolean property key, or false.
func (r Request) Bool(key string) bool {
	b, _ := r.Properties[key].(bool)
	return b
}

// Strings returns the string list property key.
func (r Request) Strings(key string) []string {
	switch v := r.Properties[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// StringMap returns the string map property key.
func (r Request) StringMap(key string) map[string]string {
	return toStringMap(r.Properties[key])
}

// Maps returns the list-of-maps property key, such as firewall rules.
func (r Request) Maps(key string) []map[string]string {
	items, ok := r.Properties[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]string, 0, len(items))
	for _, item := range items {
		if m := toStringMap(item); m != nil {
			out = append(out, m)
		}
	}
	return out
}

func toStringMap(v any) map[string]string {
	switch m := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = fmt.Sprint(val)
		}
		return out
	}
	return nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
