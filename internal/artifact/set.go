package artifact

import (
	"fmt"

	"github.com/opencontainers/go-digest"
)

// Set is an ordered collection of artifacts. Two artifacts may share
// content; they still keep separate local paths.
type Set struct {
	items []*Artifact
	names map[string]bool
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{names: make(map[string]bool)}
}

// Add appends a. Names must be unique.
func (s *Set) Add(a *Artifact) error {
	if s.names[a.Name] {
		return fmt.Errorf("duplicate artifact name %q", a.Name)
	}
	s.names[a.Name] = true
	s.items = append(s.items, a)
	return nil
}

// Items returns every artifact in insertion order.
func (s *Set) Items() []*Artifact {
	out := make([]*Artifact, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the artifact with the given name.
func (s *Set) Get(name string) (*Artifact, bool) {
	for _, a := range s.items {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Unique returns the first artifact for each distinct digest, in
// insertion order. One upload per entry is enough for the whole set.
func (s *Set) Unique() []*Artifact {
	seen := make(map[digest.Digest]bool, len(s.items))
	var out []*Artifact
	for _, a := range s.items {
		if seen[a.Digest] {
			continue
		}
		seen[a.Digest] = true
		out = append(out, a)
	}
	return out
}

// Len returns the number of artifacts.
func (s *Set) Len() int {
	return len(s.items)
}
