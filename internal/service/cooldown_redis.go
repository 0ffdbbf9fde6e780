package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldown shares the dispatch cooldown across instances with
// SET NX PX on one key per principal and purpose.
type RedisCooldown struct {
	client   redis.UniversalClient
	interval time.Duration
	prefix   string
}

func NewRedisCooldown(client redis.UniversalClient, interval time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, interval: interval, prefix: "fitzone:cooldown:"}
}

func (c *RedisCooldown) Reserve(ctx context.Context, key string) (bool, error) {
	if c.interval <= 0 {
		return true, nil
	}
	return c.client.SetNX(ctx, c.prefix+key, 1, c.interval).Result()
}

func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	if c.interval <= 0 {
		return nil
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}
