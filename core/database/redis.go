package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/kinobot/core/logger"
)

// RedisConfig holds connection settings for the session store.
type RedisConfig struct {
	URL string `yaml:"url" envconfig:"REDIS_URL"`
}

// ConnectRedis parses a redis:// URL, opens a client and pings it.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("database: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.DB.Error("redis ping failed",
			slog.String("event", "redis.connect"),
			slog.String("host", opts.Addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("database: redis ping: %w", err)
	}
	logger.DB.Info("redis connected",
		slog.String("event", "redis.connect"),
		slog.String("host", opts.Addr),
		slog.Int("db", opts.DB),
		slog.Duration("duration", logger.Took(start)),
	)
	return client, nil
}
