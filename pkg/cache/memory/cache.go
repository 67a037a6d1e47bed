// Package memory is the in-process response cache. Entries expire after a
// fixed TTL; Get re-checks age on every read, and a background sweep only
// reclaims memory.
package memory

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pario-ai/conduit/pkg/models"
)

const defaultShards = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

// Cache is a sharded TTL cache. It is safe for concurrent use.
type Cache struct {
	shards []*shard
	ttl    time.Duration
	now    func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithShards sets the number of lock shards.
func WithShards(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shards = newShards(n)
		}
	}
}

// New creates a Cache whose entries live for ttl.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		shards: newShards(defaultShards),
		ttl:    ttl,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]models.CacheEntry)}
	}
	return shards
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get returns a copy of the value stored under key if it is younger than the
// TTL. Expired entries are misses even before the sweep removes them.
func (c *Cache) Get(key string) ([]byte, bool) {
	v, ok := c.Peek(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return v, true
}

// Peek is Get without touching the hit and miss counters.
func (c *Cache) Peek(key string) ([]byte, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || c.now().Sub(entry.StoredAt) > c.ttl {
		return nil, false
	}
	return clone(entry.Value), true
}

// Put stores a copy of value under key.
func (c *Cache) Put(key string, value []byte) {
	entry := models.CacheEntry{Key: key, Value: clone(value), StoredAt: c.now()}
	s := c.shardFor(key)
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Invalidate removes every entry whose key starts with prefix and returns
// how many were removed.
func (c *Cache) Invalidate(prefix string) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for key := range s.entries {
			if strings.HasPrefix(key, prefix) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() int {
	return c.Invalidate("")
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for key, entry := range s.entries {
			if now.Sub(entry.StoredAt) > c.ttl {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	c.evictions.Add(int64(removed))
	return removed
}

// Len returns the number of physically stored entries, expired or not.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() models.CacheStats {
	return models.CacheStats{
		Entries:   int64(c.Len()),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Start launches the background sweep. It runs every interval until ctx is
// done or Close is called. Calling Start more than once has no effect.
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.sweepLoop(ctx, interval)
	})
}

func (c *Cache) sweepLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

// Close stops the background sweep and waits for it to exit.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
