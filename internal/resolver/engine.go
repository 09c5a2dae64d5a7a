package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/health"
)

const defaultProviderTimeout = 20 * time.Second

// Engine resolves a capability by trying its providers in order until one
// succeeds.
type Engine struct {
	registry *Registry
	health   health.Tracker
	timeout  time.Duration
	timeouts map[domain.Capability]time.Duration
	cache    *ResultCache
	metrics  *Metrics
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithProviderTimeout bounds each provider invocation.
func WithProviderTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithCapabilityTimeout overrides the provider timeout for one
// capability. Composite providers that resolve other capabilities need
// more than a single upstream call.
func WithCapabilityTimeout(c domain.Capability, d time.Duration) EngineOption {
	return func(e *Engine) {
		if d <= 0 {
			return
		}
		if e.timeouts == nil {
			e.timeouts = make(map[domain.Capability]time.Duration)
		}
		e.timeouts[c] = d
	}
}

// WithCache enables the advisory result cache.
func WithCache(c *ResultCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics records Prometheus metrics for every resolution.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a new resolution engine.
func NewEngine(reg *Registry, tracker health.Tracker, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		health:   tracker,
		timeout:  defaultProviderTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Resolve validates req and tries the capability's providers in preference
// order. Providers in cooldown are skipped unless every provider is in
// cooldown. The first valid success is returned with its provider name;
// when every candidate fails the error is a *domain.ExhaustedError listing
// each attempt. Cancellation of ctx stops the loop and returns ctx.Err()
// without counting against the interrupted provider.
func (e *Engine) Resolve(ctx context.Context, req Request) (*domain.Result, error) {
	req.Options = maps.Clone(req.Options)
	if err := e.registry.Validate(&req); err != nil {
		e.metrics.observeResolve(req.Capability, "invalid")
		return nil, err
	}

	providers := e.registry.ListFor(req.Capability)
	if len(providers) == 0 {
		e.metrics.observeResolve(req.Capability, "no_providers")
		return nil, fmt.Errorf("%w: %s", domain.ErrNoProviders, req.Capability)
	}

	logger := e.logger.With(
		"resolution_id", uuid.NewString(),
		"capability", string(req.Capability),
	)

	if e.cache != nil && req.Capability.Cacheable() {
		res, hit := e.cache.Get(req)
		e.metrics.observeCache(req.Capability, hit)
		if hit {
			logger.Debug("served from cache", "provider", res.Provider)
			e.metrics.observeResolve(req.Capability, "cached")
			return res, nil
		}
	}

	candidates := e.candidates(req.Capability, providers, logger)
	attempts := make([]domain.Attempt, 0, len(candidates))

	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			e.metrics.observeResolve(req.Capability, "canceled")
			return nil, err
		}

		name := p.Name()
		start := time.Now()
		res, err := e.invoke(ctx, p, req)
		if err == nil {
			err = res.Validate()
		}
		elapsed := time.Since(start)

		if err == nil {
			e.health.RecordSuccess(name)
			e.metrics.observeAttempt(req.Capability, name, "success", elapsed)
			e.metrics.observeResolve(req.Capability, "success")

			res.Provider = name
			res.Error = ""
			e.cache.Add(req, res)

			logger.Info("provider succeeded",
				"provider", name,
				"attempt", len(attempts)+1,
				"duration_ms", elapsed.Milliseconds(),
			)
			return res, nil
		}

		if ctx.Err() != nil {
			logger.Info("resolution canceled by caller", "provider", name)
			e.metrics.observeResolve(req.Capability, "canceled")
			return nil, ctx.Err()
		}

		e.health.RecordFailure(name)
		e.metrics.observeAttempt(req.Capability, name, "failure", elapsed)
		attempts = append(attempts, domain.Attempt{Provider: name, Err: err, Duration: elapsed})

		logger.Warn("provider failed",
			"provider", name,
			"attempt", len(attempts),
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
	}

	e.metrics.observeResolve(req.Capability, "exhausted")
	exhausted := &domain.ExhaustedError{Capability: req.Capability, Attempts: attempts}
	logger.Error("all providers failed", "attempts", len(attempts), "error", exhausted.Error())
	return nil, exhausted
}

// candidates filters providers in cooldown. If that leaves nothing, the
// full list is returned so a recovered upstream can be noticed.
func (e *Engine) candidates(c domain.Capability, providers []Provider, logger *slog.Logger) []Provider {
	healthy := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if e.health.IsHealthy(p.Name()) {
			healthy = append(healthy, p)
			continue
		}
		e.metrics.observeSkip(c, p.Name())
		logger.Debug("skipping provider in cooldown", "provider", p.Name())
	}
	if len(healthy) == 0 {
		logger.Warn("all providers in cooldown, trying all", "providers", len(providers))
		return providers
	}
	return healthy
}

type outcome struct {
	res *domain.Result
	err error
}

// invoke runs one provider call bounded by the provider timeout. Panics are
// converted to errors. A provider that ignores its context is abandoned
// when the deadline passes.
func (e *Engine) invoke(ctx context.Context, p Provider, req Request) (*domain.Result, error) {
	timeout := e.timeout
	if d, ok := e.timeouts[req.Capability]; ok {
		timeout = d
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", domain.ErrProviderPanic, r)}
			}
		}()
		res, err := p.Invoke(callCtx, req)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("timed out after %s: %w", timeout, out.err)
		}
		return out.res, out.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("timed out after %s: %w", timeout, callCtx.Err())
	}
}

// ProviderStatus is the health view of one registered provider.
type ProviderStatus struct {
	Capability domain.Capability `json:"capability"`
	Position   int               `json:"position"`
	health.Status
}

// Providers returns every registered provider with its health, in
// capability and preference order.
func (e *Engine) Providers() []ProviderStatus {
	reporter, _ := e.health.(health.Reporter)

	var out []ProviderStatus
	for _, c := range e.registry.Capabilities() {
		for i, p := range e.registry.ListFor(c) {
			st := health.Status{Provider: p.Name(), Available: e.health.IsHealthy(p.Name())}
			if reporter != nil {
				st = reporter.Status(p.Name())
			}
			out = append(out, ProviderStatus{Capability: c, Position: i + 1, Status: st})
		}
	}
	return out
}

var _ Resolver = (*Engine)(nil)
