package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"kb/internal/domain"
	"kb/internal/port"
)

// QueryCache is an in-memory LRU for query results with TTL and
// generation-based invalidation: bumping the generation (after a
// refresh) drops every older entry on next access.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64
}

type cacheEntry struct {
	result    domain.ResultSet
	timestamp time.Time
	gen       uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(query string) (domain.ResultSet, bool) {
	c.mu.RLock()
	key := cacheKey(query)
	entry, exists := c.entries[key]
	currentGen := c.gen
	c.mu.RUnlock()

	if !exists {
		return domain.ResultSet{}, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.gen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return domain.ResultSet{}, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return entry.result, true
}

func (c *QueryCache) Put(query string, result domain.ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query)

	if _, exists := c.entries[key]; exists {
		c.entries[key] = &cacheEntry{result: result, timestamp: time.Now(), gen: c.gen}
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &cacheEntry{result: result, timestamp: time.Now(), gen: c.gen}
	c.order = append(c.order, key)
}

// Invalidate drops all cached results. Called after a refresh changes
// the collection contents.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedTool wraps a tool with the query cache. Errors are never
// cached; only successful result sets are.
type CachedTool struct {
	tool  port.Tool
	cache *QueryCache
}

func NewCachedTool(tool port.Tool, cache *QueryCache) *CachedTool {
	return &CachedTool{tool: tool, cache: cache}
}

func (t *CachedTool) Description() string {
	return t.tool.Description()
}

func (t *CachedTool) Run(ctx context.Context, query string) (domain.ResultSet, error) {
	if result, hit := t.cache.Get(query); hit {
		return result, nil
	}

	result, err := t.tool.Run(ctx, query)
	if err != nil {
		return domain.ResultSet{}, err
	}

	t.cache.Put(query, result)
	return result, nil
}
