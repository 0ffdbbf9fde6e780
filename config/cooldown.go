package config

import (
	"context"
	"fmt"
	"time"

	"fitzone/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewCooldown returns a Redis-backed throttle when redisURL is set so that
// every instance sees the same windows, and an in-process one otherwise.
func NewCooldown(ctx context.Context, redisURL string, interval time.Duration, log logrus.FieldLogger) (service.Cooldown, func() error, error) {
	if redisURL == "" {
		return service.NewMemoryCooldown(interval, service.RealClock{}), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: REDIS_URL: %v", ErrInvalidConfig, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("resend cooldown backed by redis")
	return service.NewRedisCooldown(client, interval), client.Close, nil
}
