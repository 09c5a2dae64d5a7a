package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/iconidentify/mediagrab/internal/domain"
)

// Deferred is a Resolver whose target is set after construction. Composite
// providers are registered before the engine that resolves them exists.
type Deferred struct {
	mu     sync.RWMutex
	target Resolver
}

// Set installs the resolver calls are forwarded to.
func (d *Deferred) Set(r Resolver) {
	d.mu.Lock()
	d.target = r
	d.mu.Unlock()
}

// Resolve forwards to the installed resolver.
func (d *Deferred) Resolve(ctx context.Context, req Request) (*domain.Result, error) {
	d.mu.RLock()
	r := d.target
	d.mu.RUnlock()
	if r == nil {
		return nil, fmt.Errorf("resolve %s: no resolver installed", req.Capability)
	}
	return r.Resolve(ctx, req)
}

var _ Resolver = (*Deferred)(nil)
