package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultLRUSize = 512

// LRUHandleCache is the in-process cache used when no Redis is configured.
// Every entry lives for the TTL fixed at construction.
type LRUHandleCache struct {
	entries *expirable.LRU[string, string]
}

// NewLRUHandleCache keeps up to size handles for ttl each; a non-positive
// ttl never expires.
func NewLRUHandleCache(size int, ttl time.Duration) *LRUHandleCache {
	if size <= 0 {
		size = DefaultLRUSize
	}
	if ttl < 0 {
		ttl = 0
	}
	return &LRUHandleCache{entries: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (c *LRUHandleCache) Get(_ context.Context, trackID string) (string, bool, error) {
	uri, ok := c.entries.Get(trackID)
	return uri, ok, nil
}

// Set stores uri under the cache TTL. The per-call ttl is not supported in
// process; callers pass the same HandleTTL the cache was built with.
func (c *LRUHandleCache) Set(_ context.Context, trackID, uri string, _ time.Duration) error {
	c.entries.Add(trackID, uri)
	return nil
}

func (c *LRUHandleCache) Len() int {
	return c.entries.Len()
}
