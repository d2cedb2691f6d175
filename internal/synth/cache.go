package synth

import (
	"context"
	"sort"
	"sync"
)

// ModelLoader produces the checkpoint set for repo at version.
type ModelLoader func(ctx context.Context, repo, version string) (Checkpoint, error)

// CacheKey is the cache identity of a model version.
func CacheKey(repo, version string) string {
	return repo + "_" + version
}

// ModelCache memoizes loaded checkpoints by CacheKey. It is safe for
// concurrent use: callers asking for a key that is being loaded wait for that
// load instead of starting another. Failed loads are not cached.
type ModelCache struct {
	load ModelLoader

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	ready chan struct{}
	ckpt  Checkpoint
	err   error
}

func NewModelCache(load ModelLoader) *ModelCache {
	return &ModelCache{load: load, entries: map[string]*cacheEntry{}}
}

// Get returns the checkpoint for repo at version, loading it on first use.
func (c *ModelCache) Get(ctx context.Context, repo, version string) (Checkpoint, error) {
	key := CacheKey(repo, version)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{ready: make(chan struct{})}
		c.entries[key] = e
		c.mu.Unlock()

		e.ckpt, e.err = c.load(ctx, repo, version)
		if e.err != nil {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		close(e.ready)
		return e.ckpt, e.err
	}
	c.mu.Unlock()

	select {
	case <-e.ready:
		return e.ckpt, e.err
	case <-ctx.Done():
		return Checkpoint{}, ctx.Err()
	}
}

// Keys lists the cached (or loading) keys in sorted order.
func (c *ModelCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
