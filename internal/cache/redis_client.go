package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"ativosaber/internal/config"
	"ativosaber/internal/logger"
)

const pingTimeout = 3 * time.Second

// NewRedisClient connects to the configured Redis server. It returns a nil
// client and no error when no address is configured, which disables caching.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	log := logger.Named("redis")
	if cfg.RedisAddr == "" {
		log.Info("Redis address not configured, asset cache disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Errorw("Redis connection failed", "address", cfg.RedisAddr, "error", err)
		_ = rdb.Close()
		return nil, err
	}

	log.Infow("Redis connection successful", "address", cfg.RedisAddr)
	return rdb, nil
}
