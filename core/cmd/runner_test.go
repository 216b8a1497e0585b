package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	coretelegram "github.com/m3rciful/kinobot/core/telegram"
)

type carrier struct{ core *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.core }

type app struct{ err error }

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, a.err
}

func baseOptions(cfg *coreconfig.Config) Options {
	return Options{
		LoadConfig:     func(string) (ConfigCarrier, error) { return carrier{core: cfg}, nil },
		Bootstrap:      func(context.Context, ConfigCarrier) (TelegramApp, error) { return app{}, nil },
		ShutdownLogger: func() error { return nil },
		ServeMetrics: func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return nil
		},
	}
}

func TestRunStopsMetricsWhenBotExits(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Metrics.Listen = ":0"
	opts := baseOptions(cfg)
	var started bool
	opts.RunTelegram = func(ctx context.Context, ro coretelegram.RunOptions) error {
		require.NotNil(t, ro.OnStart)
		require.NotNil(t, ro.OnStop)
		started = true
		return ro.OnStop(ctx, coretelegram.Runtime{})
	}

	require.NoError(t, Run(context.Background(), "config.yaml", opts))
	assert.True(t, started)
}

func TestRunPropagatesFailures(t *testing.T) {
	cfg := &coreconfig.Config{}
	boom := errors.New("boom")

	opts := baseOptions(cfg)
	opts.RunTelegram = func(context.Context, coretelegram.RunOptions) error { return boom }
	assert.ErrorIs(t, Run(context.Background(), "config.yaml", opts), boom)

	opts = baseOptions(cfg)
	opts.Bootstrap = func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, boom }
	assert.ErrorIs(t, Run(context.Background(), "config.yaml", opts), boom)

	opts = baseOptions(cfg)
	opts.LoadConfig = func(string) (ConfigCarrier, error) { return carrier{}, nil }
	assert.Error(t, Run(context.Background(), "config.yaml", opts))

	assert.Error(t, Run(context.Background(), "", baseOptions(cfg)))
}

func TestRunCancelled(t *testing.T) {
	opts := baseOptions(&coreconfig.Config{})
	opts.RunTelegram = func(ctx context.Context, _ coretelegram.RunOptions) error {
		<-ctx.Done()
		return ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, Run(ctx, "config.yaml", opts))
}

func TestResolveConfigPath(t *testing.T) {
	opts := Options{ConfigEnvVar: "KINOBOT_CONFIG", DefaultConfigPath: "config.yaml"}
	assert.Equal(t, "config.yaml", resolveConfigPath("", opts))
	t.Setenv("KINOBOT_CONFIG", "/etc/kino.yaml")
	assert.Equal(t, "/etc/kino.yaml", resolveConfigPath("", opts))
	assert.Equal(t, "flag.yaml", resolveConfigPath("flag.yaml", opts))
}

func TestMigrateCommand(t *testing.T) {
	cfg := &coreconfig.Config{}
	opts := baseOptions(cfg)
	var migrated bool
	opts.Migrate = func(context.Context, ConfigCarrier) error {
		migrated = true
		return nil
	}

	root := NewRootCommand("kinobot", opts)
	root.SetArgs([]string{"migrate", "--config", "config.yaml"})
	require.NoError(t, root.Execute())
	assert.True(t, migrated)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["migrate"])
}
