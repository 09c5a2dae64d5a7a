// Package credential caches short-lived upstream credentials such as
// anonymous access tokens and scraped session tokens.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iconidentify/mediagrab/internal/domain"
)

// Source provides a credential for upstream calls.
type Source interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops the cached credential so the next Token call
	// performs a fresh handshake.
	Invalidate()
}

// StaticSource uses a fixed credential (no refresh).
type StaticSource struct {
	Value string
}

func (s *StaticSource) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(s.Value) == "" {
		return "", fmt.Errorf("%w: token is empty", domain.ErrCredential)
	}
	return s.Value, nil
}

func (s *StaticSource) Invalidate() {}

// FetchFunc performs the handshake. A zero ttl means the cache default.
type FetchFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// Cache holds one credential with an expiry and refreshes it through
// Fetch. Concurrent callers that find it expired share a single handshake.
type Cache struct {
	fetch FetchFunc
	ttl   time.Duration
	skew  time.Duration
	now   func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	fetches   int
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRefreshSkew treats the credential as expired this long before its
// real expiry.
func WithRefreshSkew(d time.Duration) Option {
	return func(c *Cache) { c.skew = d }
}

// NewCache creates a cache that obtains credentials with fetch and keeps
// them for ttl unless fetch reports its own lifetime.
func NewCache(fetch FetchFunc, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached credential, performing a handshake when it is
// missing or expired.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, exp := c.token, c.expiresAt
	c.mu.Unlock()

	if token != "" && c.now().Add(c.skew).Before(exp) {
		return token, nil
	}

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	token, ttl, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCredential, err)
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: handshake returned an empty token", domain.ErrCredential)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(ttl)
	c.fetches++
	c.mu.Unlock()

	return token, nil
}

// Invalidate drops the cached credential.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// Set injects a credential, for tests and warm starts. Passing an expiry
// in the past yields a pre-expired cache.
func (c *Cache) Set(token string, expiresAt time.Time) {
	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()
}

// ExpiresAt returns the expiry of the cached credential.
func (c *Cache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// Fetches returns how many successful handshakes were performed.
func (c *Cache) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// Rejected reports whether err means the upstream refused the credential.
func Rejected(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrRateLimited)
}

// Do runs fn with a credential from src. If fn fails because the upstream
// rejected the credential, the credential is invalidated and fn runs
// exactly once more with a fresh one.
func Do[T any](ctx context.Context, src Source, fn func(ctx context.Context, token string) (T, error)) (T, error) {
	var zero T

	token, err := src.Token(ctx)
	if err != nil {
		return zero, err
	}
	v, err := fn(ctx, token)
	if err == nil || !Rejected(err) {
		return v, err
	}

	src.Invalidate()
	token, err = src.Token(ctx)
	if err != nil {
		return zero, err
	}
	return fn(ctx, token)
}

var (
	_ Source = (*Cache)(nil)
	_ Source = (*StaticSource)(nil)
)
