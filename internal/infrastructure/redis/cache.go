package redis

import (
	"context"
	"time"
)

// Cache adapts Client to domain.Cache
type Cache struct {
	client *Client
}

// NewCache creates a Redis-backed project cache
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.client.Get(ctx, key)
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl)
}

func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl)
}

// InvalidatePrefix drops every cached view under prefix
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	_, err := c.client.DeletePrefix(ctx, prefix)
	return err
}
