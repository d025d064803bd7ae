package github

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/repovault/repovault/internal/convert"
	"github.com/repovault/repovault/pkg/logger"
)

// ReadCache memoizes read-operation results for the lifetime of a run.
// Keys are "{method}:{param}:{param}:…" with parameters sorted by name.
// Write operations bypass the cache and never invalidate entries: the
// restore path observes its own just-created state through direct API
// calls, not through this cache.
type ReadCache struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewReadCache creates an empty read cache
func NewReadCache() *ReadCache {
	return &ReadCache{m: make(map[string]any)}
}

// Get returns the cached value for key
func (c *ReadCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

// Set stores a value under key
func (c *ReadCache) Set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = v
}

// Len returns the number of cached entries
func (c *ReadCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// CacheKey builds the canonical cache key for a method call. Parameters
// are sorted by name so key construction is independent of call-site
// argument order.
func CacheKey(method string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(params)+1)
	parts = append(parts, method)
	for _, name := range names {
		parts = append(parts, params[name])
	}
	return strings.Join(parts, ":")
}

// cached wraps fetch with read-through caching when the declared
// operation for method is cacheable. Unknown or write operations always
// fetch.
func cached[T any](c *Client, method string, params map[string]string, fetch func() (T, error)) (T, error) {
	op, declared := convert.LookupOperation(method)
	if !declared || !op.Cacheable() {
		return fetch()
	}

	key := CacheKey(method, params)
	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			logger.Debug("Cache hit", zap.String("key", key))
			return typed, nil
		}
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}
	c.cache.Set(key, v)
	return v, nil
}
