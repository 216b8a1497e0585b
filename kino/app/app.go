// Package app assembles the movie bot from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/kinobot/core/bootstrap"
	corecmd "github.com/m3rciful/kinobot/core/cmd"
	coredatabase "github.com/m3rciful/kinobot/core/database"
	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/state"
	"github.com/m3rciful/kinobot/kino/bot"
	"github.com/m3rciful/kinobot/kino/config"
	"github.com/m3rciful/kinobot/kino/conversation"
	"github.com/m3rciful/kinobot/kino/flows"
	"github.com/m3rciful/kinobot/kino/history"
	"github.com/m3rciful/kinobot/kino/kinopoisk"
	"github.com/m3rciful/kinobot/kino/movie"
	"github.com/m3rciful/kinobot/migrations"
)

// Options replace infrastructure in tests.
type Options struct {
	Bootstrap func(context.Context, bootstrap.Options) (*bootstrap.Result, error)
	Kinopoisk []kinopoisk.Option
}

// App owns the opened connections and the bot built on top of them.
type App struct {
	infra *bootstrap.Result
	bot   *bot.Bot
}

var _ corecmd.TelegramApp = (*App)(nil)

// New opens storage, builds the movie client and the conversation service.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	var redisCfg *coredatabase.RedisConfig
	if cfg.Session.Backend == config.SessionRedis {
		redisCfg = &cfg.Redis
	}
	infra, err := run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: withSchema(cfg.Database),
		Redis:    redisCfg,
	})
	if err != nil {
		return nil, err
	}

	a, err := assemble(cfg, infra, opts)
	if err != nil {
		return nil, errors.Join(err, infra.Close())
	}
	return a, nil
}

func assemble(cfg *config.Config, infra *bootstrap.Result, opts Options) (*App, error) {
	kp, err := kinopoisk.New(cfg.Kinopoisk, opts.Kinopoisk...)
	if err != nil {
		return nil, err
	}
	hist := history.NewRepository(infra.DB)

	var store state.Store[movie.Movie]
	switch cfg.Session.Backend {
	case config.SessionRedis:
		if infra.Redis == nil {
			return nil, fmt.Errorf("app: redis session backend without a redis client")
		}
		store = state.NewRedisStore[movie.Movie](infra.Redis, state.RedisOptions{
			Prefix: cfg.Session.Prefix,
			TTL:    cfg.Session.TTL(),
		})
	default:
		store = state.NewMemoryStore[movie.Movie]()
	}

	machine, err := flows.NewMachine(nil)
	if err != nil {
		return nil, err
	}
	svc, err := conversation.New(conversation.Options{
		Store:    store,
		Machine:  machine,
		Fetcher:  conversation.Router{Movies: kp, History: hist},
		Recorder: hist,
		Timeout:  cfg.Kinopoisk.Timeout(),
		PerPage:  cfg.Session.PerPage,
	})
	if err != nil {
		return nil, err
	}

	b, err := bot.New(bot.Deps{
		Config:        cfg.CoreConfig(),
		Conversations: svc,
		Users:         hist,
		Searcher:      kp,
		Locker:        state.NewLocker(),
		SearchTimeout: cfg.Kinopoisk.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	return &App{infra: infra, bot: b}, nil
}

// TelegramRunOptions returns the bot wiring; connections close when the bot stops.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	opts, err := a.bot.TelegramRunOptions()
	if err != nil {
		return tg.RunOptions{}, err
	}
	prevStop := opts.OnStop
	opts.OnStop = func(ctx context.Context, rt tg.Runtime) error {
		var err error
		if prevStop != nil {
			err = prevStop(ctx, rt)
		}
		return errors.Join(err, a.Close())
	}
	return opts, nil
}

// Close releases database and Redis connections.
func (a *App) Close() error {
	return a.infra.Close()
}

// Migrate applies the schema migrations for cfg.
func Migrate(ctx context.Context, cfg *config.Config) error {
	return coredatabase.RunMigrations(ctx, withSchema(cfg.Database))
}

func withSchema(db coredatabase.Config) coredatabase.Config {
	if db.Migrations == nil {
		db.Migrations = migrations.FS
	}
	return db
}
