package utils

import (
	"sync"
	"time"
)

// CacheItem is one stored value with its expiry.
type CacheItem struct {
	Value      interface{}
	Expiration time.Time
}

// MemoryCache is a small in-memory TTL store. It holds transient per-session
// state (last seen inbox counts for the notifier); fetched messages are never
// cached here or anywhere else.
type MemoryCache struct {
	items map[string]*CacheItem
	mu    sync.RWMutex
}

// NewMemoryCache creates a cache and starts its expiry sweep.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{items: make(map[string]*CacheItem)}
	go c.cleanupLoop()
	return c
}

// Set stores a value that expires after ttl.
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &CacheItem{Value: value, Expiration: time.Now().Add(ttl)}
}

// Get returns the value and whether a live entry exists.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(item.Expiration) {
		c.Delete(key)
		return nil, false
	}
	return item.Value, true
}

// Delete removes an entry.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *MemoryCache) cleanupLoop() {
	for {
		time.Sleep(5 * time.Minute)
		now := time.Now()
		c.mu.Lock()
		for key, item := range c.items {
			if now.After(item.Expiration) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}
