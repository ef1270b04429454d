package nominatim

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
)

// CachedLookup wraps a Lookup with an in-memory LRU cache keyed by query.
type CachedLookup struct {
	inner   domain.Lookup
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLookup creates a cache decorator around a lookup.
func NewCachedLookup(inner domain.Lookup, maxEntries int, metrics *observability.Metrics) *CachedLookup {
	return &CachedLookup{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLookup) Search(ctx context.Context, query string) (domain.GeocodeResult, bool, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, true, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, ok, err := c.inner.Search(ctx, query)
	if err != nil {
		return result, false, err
	}
	// Only cache hits so "not found" answers can be retried later.
	if ok {
		c.cache.put(key, result)
	}
	return result, ok, nil
}

// lruCache holds resolved queries, most recently used at the front.
type lruCache struct {
	mu      sync.Mutex
	limit   int
	order   *list.List
	byQuery map[string]*list.Element
}

type cached struct {
	query  string
	result domain.GeocodeResult
}

func newLRUCache(limit int) *lruCache {
	return &lruCache{
		limit:   max(limit, 1),
		order:   list.New(),
		byQuery: make(map[string]*list.Element, limit),
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lruCache) get(query string) (domain.GeocodeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byQuery[query]
	if !ok {
		return domain.GeocodeResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).result, true
}

func (c *lruCache) put(query string, result domain.GeocodeResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byQuery[query]; ok {
		el.Value.(*cached).result = result
		c.order.MoveToFront(el)
		return
	}
	c.byQuery[query] = c.order.PushFront(&cached{query: query, result: result})

	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.byQuery, oldest.Value.(*cached).query)
	}
}
