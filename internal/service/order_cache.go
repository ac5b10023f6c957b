package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/lab-order-service/internal/domain"
)

// OrderCache is a read-through cache for order aggregates. Every method is
// nil-safe and failure-silent: a cache miss or an unreachable redis always
// degrades to the store.
type OrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOrderCache builds a cache over the shared redis client.
func NewOrderCache(client *redis.Client, ttl time.Duration) *OrderCache {
	return &OrderCache{client: client, ttl: ttl}
}

func (c *OrderCache) Get(ctx context.Context, id string) *domain.Order {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var order domain.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil
	}
	return &order
}

func (c *OrderCache) Set(ctx context.Context, order *domain.Order) {
	if c == nil || c.client == nil || order == nil {
		return
	}
	raw, err := json.Marshal(order)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(order.ID), raw, c.ttl).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, id string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey(id)).Err()
}

func cacheKey(id string) string {
	return "order:" + id
}
