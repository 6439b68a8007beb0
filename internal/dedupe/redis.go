package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "line-relay:dedupe:"

// RedisGuard shares the seen set between replicas with SET NX.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl, prefix: defaultKeyPrefix}
}

func (g *RedisGuard) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	stored, err := g.client.SetNX(ctx, g.prefix+key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !stored, nil
}
