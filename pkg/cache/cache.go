package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Entry represents a cached value with expiration
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Cache is an in-memory TTL cache. It satisfies domain.Cache and backs
// deployments that run without Redis.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Entry
	now   func() time.Time
}

// New creates a new cache
func New() *Cache {
	return &Cache{items: map[string]*Entry{}, now: time.Now}
}

// Set stores a value in the cache with a given TTL
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &Entry{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
	return nil
}

// SetNX stores a value only when the key is absent or expired
func (c *Cache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, exists := c.items[key]; exists && c.now().Before(entry.ExpiresAt) {
		return false, nil
	}
	c.items[key] = &Entry{Value: value, ExpiresAt: c.now().Add(ttl)}
	return true, nil
}

// Get retrieves a value from the cache if it hasn't expired
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, exists := c.items[key]
	if !exists {
		return nil, false, nil
	}
	if !c.now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// InvalidatePrefix removes all items matching a prefix
func (c *Cache) InvalidatePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
