package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/redis/go-redis/v9"
)

type OrderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOrderCache(rdb *redis.Client, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = TTLOrderCache
	}
	return &OrderCache{rdb: rdb, ttl: ttl}
}

func (c *OrderCache) Get(ctx context.Context, orderID string) (*orders.OrderDetail, bool, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrder, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var d orders.OrderDetail
	if err := json.Unmarshal(b, &d); err != nil {
		// A stale layout is a miss, not a failure.
		_ = c.rdb.Del(ctx, fmt.Sprintf(KeyOrder, orderID)).Err()
		return nil, false, nil
	}
	return &d, true, nil
}

func (c *OrderCache) Set(ctx context.Context, d *orders.OrderDetail) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrder, d.Order.ID), b, c.ttl).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrder, orderID)).Err()
}
