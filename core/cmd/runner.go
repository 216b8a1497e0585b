// Package cmd is the shared command line entry point: it loads configuration,
// bootstraps a bot and runs it next to the metrics listener.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/kinobot/core/buildinfo"
	coreconfig "github.com/m3rciful/kinobot/core/config"
	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/metrics"
	coretelegram "github.com/m3rciful/kinobot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)
	// Migrate enables the migrate subcommand.
	Migrate func(ctx context.Context, cfg ConfigCarrier) error

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	ServeMetrics   func(ctx context.Context, addr string) error
}

// NewRootCommand builds the CLI. Without a subcommand the bot runs.
func NewRootCommand(name string, opts Options) *cobra.Command {
	var cfgPath string

	run := func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return Run(ctx, resolveConfigPath(cfgPath, opts), opts)
	}

	root := &cobra.Command{
		Use:           name,
		Short:         "Telegram bot",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default from $"+envName(opts)+")")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		RunE:  run,
	})

	if opts.Migrate != nil {
		root.AddCommand(&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := load(resolveConfigPath(cfgPath, opts), opts)
				if err != nil {
					return err
				}
				if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
					return fmt.Errorf("cmd: logger init failed: %w", err)
				}
				defer shutdown(opts)
				return opts.Migrate(cmd.Context(), cfg)
			},
		})
	}
	return root
}

func envName(opts Options) string {
	if opts.ConfigEnvVar != "" {
		return opts.ConfigEnvVar
	}
	return "CONFIG_PATH"
}

func resolveConfigPath(flag string, opts Options) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(envName(opts)); p != "" {
		return p
	}
	return opts.DefaultConfigPath
}

func load(cfgPath string, opts Options) (ConfigCarrier, error) {
	if opts.LoadConfig == nil {
		return nil, fmt.Errorf("cmd: LoadConfig is required")
	}
	if cfgPath == "" {
		return nil, fmt.Errorf("cmd: config path not provided via --config, %s or DefaultConfigPath", envName(opts))
	}
	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return nil, fmt.Errorf("cmd: loaded config is missing core configuration")
	}
	return cfg, nil
}

func shutdown(opts Options) {
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	if err := shutdownLogger(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}

// Run loads configuration, bootstraps the Telegram app and runs the bot and the
// metrics listener until ctx is done or one of them fails.
func Run(ctx context.Context, cfgPath string, opts Options) error {
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}
	cfg, err := load(cfgPath, opts)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer shutdown(opts)

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}

	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "app.ready",
			slog.String("status", "ok"),
			slog.String("version", buildinfo.Version),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "app.shutdown", slog.String("status", "ok"))
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	runBot := opts.RunTelegram
	if runBot == nil {
		runBot = coretelegram.RunTelegram
	}
	serve := opts.ServeMetrics
	if serve == nil {
		serve = metrics.Serve
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The listener follows the bot down.
		defer stop()
		return runBot(gctx, runOpts)
	})
	g.Go(func() error {
		return serve(gctx, cfg.CoreConfig().Metrics.Listen)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
