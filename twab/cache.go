package twab

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the balances of one window
type FetchFunc func(ctx context.Context, w Window) (*Balances, error)

type cacheEntry struct {
	balances *Balances
	err      error
}

// WindowCache memoizes window fetches for the length of one computation.
// Concurrent requests for a window share a single in-flight fetch, and
// requests after it finished get the stored outcome, so each distinct
// window is fetched at most once.
type WindowCache struct {
	group singleflight.Group

	mu   sync.Mutex
	done map[Window]cacheEntry
}

// NewWindowCache creates an empty cache
func NewWindowCache() *WindowCache {
	return &WindowCache{done: make(map[Window]cacheEntry)}
}

// Resolve returns the balances for w, calling fetch only if no earlier or
// concurrent request for w exists. Failures are memoized too.
func (c *WindowCache) Resolve(ctx context.Context, w Window, fetch FetchFunc) (*Balances, error) {
	if e, ok := c.lookup(w); ok {
		return e.balances, e.err
	}

	v, err, _ := c.group.Do(w.String(), func() (interface{}, error) {
		// The fetch may have completed between lookup and Do
		if e, ok := c.lookup(w); ok {
			return e.balances, e.err
		}
		balances, err := fetch(ctx, w)
		c.store(w, cacheEntry{balances: balances, err: err})
		return balances, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*Balances), nil
}

// Len returns the number of windows resolved so far
func (c *WindowCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.done)
}

func (c *WindowCache) lookup(w Window) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.done[w]
	return e, ok
}

func (c *WindowCache) store(w Window, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done[w] = e
}
