package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/leaddesk/internal/config"
	"github.com/wolfman30/leaddesk/internal/leadsync"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSyncCache stores last-fetch stamps in Redis so they survive restarts and are shared
// across replicas. Without Redis the stamps live in process memory.
func BuildSyncCache(redisClient *redis.Client, logger *logging.Logger) leadsync.SyncCache {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Info("sync cache using process memory")
		return leadsync.NewMemoryCache()
	}
	return leadsync.NewRedisCache(redisClient, 0)
}
