package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryGuard holds a short Redis lock per gateway delivery so that two
// concurrent retries of the same notification are not processed in
// parallel.  With a nil client every Acquire succeeds and the database
// unique key is the only dedup.
type DeliveryGuard struct {
	rdb    *redis.Client
	prefix string
}

func NewDeliveryGuard(rdb *redis.Client) *DeliveryGuard {
	return &DeliveryGuard{rdb: rdb, prefix: "payhere:delivery:"}
}

// Acquire reports whether the caller now owns key for ttl.
func (g *DeliveryGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if g == nil || g.rdb == nil {
		return true, nil
	}
	return g.rdb.SetNX(ctx, g.prefix+key, 1, ttl).Result()
}

// Release drops the lock early.
func (g *DeliveryGuard) Release(ctx context.Context, key string) error {
	if g == nil || g.rdb == nil {
		return nil
	}
	return g.rdb.Del(ctx, g.prefix+key).Err()
}
