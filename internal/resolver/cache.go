package resolver

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/iconidentify/mediagrab/internal/domain"
)

// ResultCache is an advisory, process-lifetime cache of successful results.
// It only short-circuits identical requests; it never replaces resolution.
type ResultCache struct {
	lru *expirable.LRU[string, domain.Result]
}

// NewResultCache creates a cache holding up to size results for ttl.
// A size of zero or less disables caching and returns nil.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		return nil
	}
	return &ResultCache{lru: expirable.NewLRU[string, domain.Result](size, nil, ttl)}
}

// Get returns a copy of the cached result for req.
func (c *ResultCache) Get(req Request) (*domain.Result, bool) {
	if c == nil || !req.Capability.Cacheable() {
		return nil, false
	}
	res, ok := c.lru.Get(req.cacheKey())
	if !ok {
		return nil, false
	}
	return cloneResult(res), true
}

// Add stores a successful result for req.
func (c *ResultCache) Add(req Request, res *domain.Result) {
	if c == nil || res == nil || !res.Success || !req.Capability.Cacheable() {
		return
	}
	c.lru.Add(req.cacheKey(), *cloneResult(*res))
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func cloneResult(r domain.Result) *domain.Result {
	r.Media = append([]domain.Media(nil), r.Media...)
	r.Tracks = append([]domain.Track(nil), r.Tracks...)
	return &r
}
