package source

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CachedFetcher serves repeated identical requests from memory. Failures are never cached and
// concurrent identical requests share a single call.
type CachedFetcher struct {
	next Fetcher

	mu    sync.RWMutex
	cache map[string]*Quote
	group singleflight.Group
}

func NewCachedFetcher(next Fetcher) *CachedFetcher {
	return &CachedFetcher{
		next:  next,
		cache: make(map[string]*Quote),
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, req Request) (*Quote, error) {
	key := req.Key()

	c.mu.RLock()
	q, exists := c.cache[key]
	c.mu.RUnlock()
	if exists {
		return q, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		q, err := c.next.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[key] = q
		c.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Quote), nil
}

// Len returns the number of cached requests
func (c *CachedFetcher) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
