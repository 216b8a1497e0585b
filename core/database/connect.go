package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/kinobot/core/logger"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	readyInterval  = 2 * time.Second
)

// Connect opens a pooled sqlx handle and pings the server once.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	target := []slog.Attr{
		slog.String("driver", driverName),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect", append(target,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)...)
		return nil, fmt.Errorf("database: connect %s: %w", cfg.Host, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect", append(target,
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return db, nil
}

// WaitForPostgres pings the server every couple of seconds until it answers,
// the timeout elapses or ctx is done.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("database: open: %w", err)
	}
	defer db.Close()

	ticker := time.NewTicker(readyInterval)
	defer ticker.Stop()
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "db.wait",
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("database: not ready after %s: %w", timeout, err)
		case <-ticker.C:
		}
	}
}
