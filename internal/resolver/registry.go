package resolver

import (
	"fmt"
	"sort"

	"github.com/iconidentify/mediagrab/internal/domain"
)

// Validator checks and canonicalises the input of a request before any
// provider runs. It returns a *domain.InputError for unusable input.
type Validator func(req *Request) error

// Registry holds the ordered provider list of each capability. It is built
// once and never mutated.
type Registry struct {
	providers  map[domain.Capability][]Provider
	validators map[domain.Capability]Validator
}

// NewRegistry creates a registry from per-capability provider lists.
// Provider names must be unique across all capabilities because health is
// tracked by name.
func NewRegistry(providers map[domain.Capability][]Provider, validators map[domain.Capability]Validator) (*Registry, error) {
	r := &Registry{
		providers:  make(map[domain.Capability][]Provider, len(providers)),
		validators: make(map[domain.Capability]Validator, len(validators)),
	}

	seen := make(map[string]domain.Capability)
	for c, list := range providers {
		if !c.Valid() {
			return nil, fmt.Errorf("register %q: %w", c, domain.ErrUnknownCapability)
		}
		for _, p := range list {
			if p == nil || p.Name() == "" {
				return nil, fmt.Errorf("register %s: provider without a name", c)
			}
			if prev, dup := seen[p.Name()]; dup {
				return nil, fmt.Errorf("register %s: provider %q already registered for %s", c, p.Name(), prev)
			}
			seen[p.Name()] = c
		}
		r.providers[c] = append([]Provider(nil), list...)
	}

	for c, v := range validators {
		if !c.Valid() {
			return nil, fmt.Errorf("validator %q: %w", c, domain.ErrUnknownCapability)
		}
		r.validators[c] = v
	}
	return r, nil
}

// ListFor returns a copy of the ordered provider list for c.
func (r *Registry) ListFor(c domain.Capability) []Provider {
	return append([]Provider(nil), r.providers[c]...)
}

// Capabilities returns the capabilities with at least one provider, sorted.
func (r *Registry) Capabilities() []domain.Capability {
	caps := make([]domain.Capability, 0, len(r.providers))
	for c, list := range r.providers {
		if len(list) > 0 {
			caps = append(caps, c)
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Validate runs the capability's validator, if any.
func (r *Registry) Validate(req *Request) error {
	if !req.Capability.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCapability, req.Capability)
	}
	if v, ok := r.validators[req.Capability]; ok && v != nil {
		return v(req)
	}
	return nil
}
