// Package health tracks per-provider failures and decides which providers
// may be attempted. It is a coarse circuit breaker: it opens after a run of
// consecutive failures, lets one call through once the cooldown passes,
// and closes again on the first success.
package health

import (
	"sort"
	"sync"
	"time"
)

// Tracker decides whether a provider may be attempted now and records the
// outcome of every attempt.
type Tracker interface {
	IsHealthy(name string) bool
	RecordFailure(name string)
	RecordSuccess(name string)
}

// Reporter exposes per-provider status for diagnostics.
type Reporter interface {
	Status(name string) Status
}

// Config holds circuit breaker configuration.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	// ResetWindow drops a record once this long has passed since its last
	// failure, even without a success.
	ResetWindow time.Duration
}

// DefaultConfig returns the breaker defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         5 * time.Minute,
		ResetWindow:      10 * time.Minute,
	}
}

// Status is a point-in-time view of one provider's record, safe to
// serialize to JSON.
type Status struct {
	Provider      string     `json:"provider"`
	FailureCount  int        `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

type record struct {
	failures      int
	lastFailure   time.Time
	cooldownUntil time.Time
}

// Breaker is the in-memory Tracker. Records are created lazily on the
// first failure and deleted on success.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	records map[string]*record
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// NewBreaker creates a new breaker. Zero config values fall back to the
// defaults.
func NewBreaker(cfg Config, opts ...Option) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = def.ResetWindow
	}

	b := &Breaker{
		cfg:     cfg,
		now:     time.Now,
		records: make(map[string]*record),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// lookup returns the live record for name, dropping it first if the reset
// window has passed. Caller holds b.mu.
func (b *Breaker) lookup(name string, now time.Time) *record {
	rec, ok := b.records[name]
	if !ok {
		return nil
	}
	if now.Sub(rec.lastFailure) > b.cfg.ResetWindow {
		delete(b.records, name)
		return nil
	}
	return rec
}

// IsHealthy reports whether name may be attempted now.
func (b *Breaker) IsHealthy(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	rec := b.lookup(name, now)
	return rec == nil || !now.Before(rec.cooldownUntil)
}

// RecordFailure counts one more consecutive failure and opens the circuit
// once the threshold is reached. A failure while half-open re-opens it
// immediately because the count is still at or above the threshold.
func (b *Breaker) RecordFailure(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	rec := b.lookup(name, now)
	if rec == nil {
		rec = &record{}
		b.records[name] = rec
	}
	rec.failures++
	rec.lastFailure = now
	if rec.failures >= b.cfg.FailureThreshold {
		rec.cooldownUntil = now.Add(b.cfg.Cooldown)
	}
}

// RecordSuccess clears the record entirely.
func (b *Breaker) RecordSuccess(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.records, name)
}

// Status returns the current view of name.
func (b *Breaker) Status(name string) Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.statusLocked(name, b.now())
}

func (b *Breaker) statusLocked(name string, now time.Time) Status {
	st := Status{Provider: name, Available: true}
	rec := b.lookup(name, now)
	if rec == nil {
		return st
	}
	last := rec.lastFailure
	st.FailureCount = rec.failures
	st.LastFailureAt = &last
	if !rec.cooldownUntil.IsZero() {
		until := rec.cooldownUntil
		st.CooldownUntil = &until
	}
	st.Available = !now.Before(rec.cooldownUntil)
	return st
}

// Snapshot returns the status of every provider that currently has a
// record, sorted by name.
func (b *Breaker) Snapshot() []Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	names := make([]string, 0, len(b.records))
	for name := range b.records {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Status, 0, len(names))
	for _, name := range names {
		if b.lookup(name, now) == nil {
			continue
		}
		out = append(out, b.statusLocked(name, now))
	}
	return out
}

var (
	_ Tracker  = (*Breaker)(nil)
	_ Reporter = (*Breaker)(nil)
)
