package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "page:"

// Redis is a Store backed by a shared Redis instance, for deployments
// running more than one service replica. Expiry is native to Redis, so
// there is no lazy-eviction bookkeeping here.
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedis connects a page cache to the Redis instance at addr.
func NewRedis(addr string, defaultTTL time.Duration) *Redis {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &Redis{client: rdb, defaultTTL: defaultTTL}
}

// Ping verifies the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	r.client.Set(ctx, redisKeyPrefix+key, value, ttl)
}

func (r *Redis) Delete(ctx context.Context, key string) bool {
	n, err := r.client.Del(ctx, redisKeyPrefix+key).Result()
	return err == nil && n > 0
}

// Clear removes only this service's page keys, not the whole database.
func (r *Redis) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		r.client.Del(ctx, iter.Val())
	}
}

func (r *Redis) Size(ctx context.Context) int {
	count := 0
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

var _ Store = (*Redis)(nil)
var _ Store = (*Memory)(nil)
