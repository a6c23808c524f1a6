package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lacuina/content-service/internal/config"
	"github.com/lacuina/content-service/pkg/logger"
)

// ConnectRedis returns a pinged client, or nil when Redis is not configured
// or unreachable. Callers degrade: no blacklist, in-process rate limiting.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	addr := cfg.Addr()
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnf("redis %s unreachable: %v", addr, err)
		_ = client.Close()
		return nil
	}
	return client
}
