// Package resolver holds the provider registry and the fallback engine that
// resolves a capability against an ordered list of providers.
package resolver

import (
	"context"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
)

// Request is one resolution request.
type Request struct {
	Capability domain.Capability
	Input      string
	Format     string
	// Payload carries binary input such as recorded audio.
	Payload []byte
	// Options carries capability specific parameters. Validators may add
	// canonical values (for example the extracted video id under "id").
	Options map[string]string
}

// Option returns the named option or "".
func (r *Request) Option(key string) string {
	if r.Options == nil {
		return ""
	}
	return r.Options[key]
}

// SetOption sets a named option.
func (r *Request) SetOption(key, value string) {
	if r.Options == nil {
		r.Options = make(map[string]string)
	}
	r.Options[key] = value
}

func (r *Request) cacheKey() string {
	var b strings.Builder
	b.WriteString(string(r.Capability))
	b.WriteByte('|')
	b.WriteString(r.Format)
	b.WriteByte('|')
	b.WriteString(r.Input)
	return b.String()
}

// Provider is a named strategy for one capability.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, req Request) (*domain.Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	name string
	fn   func(ctx context.Context, req Request) (*domain.Result, error)
}

// NewProviderFunc creates a provider named name that calls fn.
func NewProviderFunc(name string, fn func(ctx context.Context, req Request) (*domain.Result, error)) *ProviderFunc {
	return &ProviderFunc{name: name, fn: fn}
}

func (p *ProviderFunc) Name() string { return p.name }

func (p *ProviderFunc) Invoke(ctx context.Context, req Request) (*domain.Result, error) {
	return p.fn(ctx, req)
}

// Resolver is implemented by the Engine. Composite providers depend on it
// to chain capabilities.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (*domain.Result, error)
}

var _ Provider = (*ProviderFunc)(nil)
