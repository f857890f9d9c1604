package workflow

import (
	"fmt"
	"sort"
)

// Registry maps type discriminators to their definitions.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry indexes defs by variant, rejecting duplicates.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if d == nil {
			continue
		}
		if _, dup := r.defs[d.Variant()]; dup {
			return nil, fmt.Errorf("%w: variant %s registered twice", ErrInvalidDefinition, d.Variant())
		}
		r.defs[d.Variant()] = d
	}
	return r, nil
}

// Get returns the definition for variant.
func (r *Registry) Get(variant string) (*Definition, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.defs[variant]
	return d, ok
}

// Variants returns the registered variants sorted by name.
func (r *Registry) Variants() []string {
	out := make([]string, 0, len(r.defs))
	for v := range r.defs {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ByFamily returns the definitions of one family sorted by variant.
func (r *Registry) ByFamily(f Family) []*Definition {
	out := make([]*Definition, 0)
	for _, v := range r.Variants() {
		if d := r.defs[v]; d.Family() == f {
			out = append(out, d)
		}
	}
	return out
}
