package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kaitori-compare/backend/internal/domain"
)

// cacheItem represents a single record in the cache with expiration
type cacheItem struct {
	Record     *domain.ProductRecord
	Expiration time.Time
}

// MemoryCache is a thread-safe in-memory record cache with TTL support.
// Keys are content hashes of the compressed image, so a re-uploaded
// screenshot skips a round trip to the completion service.
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]cacheItem),
	}

	// Remove expired entries every 10 minutes
	go c.cleanupExpired()

	return c
}

// Get retrieves a record from the cache. Returns a copy so callers
// cannot mutate the cached value.
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.ProductRecord, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	if time.Now().After(item.Expiration) {
		return nil, domain.ErrCacheMiss
	}

	return copyRecord(item.Record), nil
}

// Set stores a record in the cache with TTL
func (c *MemoryCache) Set(ctx context.Context, key string, record *domain.ProductRecord, ttl time.Duration) error {
	if record == nil {
		return domain.ErrInvalidRequest
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem{
		Record:     copyRecord(record),
		Expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a record from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Size returns the current number of records in the cache
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all records from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now()
		for key, item := range c.data {
			if now.After(item.Expiration) {
				delete(c.data, key)
			}
		}
		c.mutex.Unlock()
	}
}

func copyRecord(r *domain.ProductRecord) *domain.ProductRecord {
	cp := *r
	cp.Shops = make([]domain.ShopOffer, len(r.Shops))
	copy(cp.Shops, r.Shops)
	return &cp
}
