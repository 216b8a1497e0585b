// Package bootstrap brings up shared infrastructure in a fixed order: logger, Postgres, migrations, Redis.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	coredatabase "github.com/m3rciful/kinobot/core/database"
	"github.com/m3rciful/kinobot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Redis is optional; a nil value skips the client.
	Redis *coredatabase.RedisConfig

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(context.Context, coredatabase.Config) error
	ConnectRedis func(context.Context, coredatabase.RedisConfig) (*redis.Client, error)
	SkipMigrate  bool
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Close releases every opened connection.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger, connects to the database, applies migrations and opens Redis.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res := &Result{DB: db}

	if !opts.SkipMigrate {
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, opts.Database); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	if opts.Redis != nil {
		connectRedis := opts.ConnectRedis
		if connectRedis == nil {
			connectRedis = coredatabase.ConnectRedis
		}
		client, err := connectRedis(ctx, *opts.Redis)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
		}
		res.Redis = client
	}

	return res, nil
}
