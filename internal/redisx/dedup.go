package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup marks consumed event ids so redelivered messages are skipped.
type Dedup struct {
	rdb     *redis.Client
	service string
	ttl     time.Duration
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service, ttl: TTLDedup}
}

// First reports whether id is seen for the first time and marks it.
func (d *Dedup) First(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, id), "1", d.ttl).Result()
}

// Forget clears the mark so a failed message can be processed again.
func (d *Dedup) Forget(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, id)).Err()
}
