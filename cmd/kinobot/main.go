package main

import (
	"context"
	"fmt"
	"os"

	corecmd "github.com/m3rciful/kinobot/core/cmd"
	"github.com/m3rciful/kinobot/kino/app"
	"github.com/m3rciful/kinobot/kino/config"
)

func main() {
	root := corecmd.NewRootCommand("kinobot", corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(ctx, cfg.(*config.Config), app.Options{})
		},
		Migrate: func(ctx context.Context, cfg corecmd.ConfigCarrier) error {
			return app.Migrate(ctx, cfg.(*config.Config))
		},
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
