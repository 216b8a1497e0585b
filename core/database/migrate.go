package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/kinobot/core/logger"
)

const previewFiles = 6

// RunMigrations applies every pending up migration. A configured
// MigrationsDir wins over the embedded Migrations filesystem.
func RunMigrations(ctx context.Context, cfg Config) error {
	if err := WaitForPostgres(ctx, cfg.DSN(), 30*time.Second); err != nil {
		logger.Error(ctx, "db.migrate", "db.not_ready", slog.String("err", err.Error()))
		return err
	}

	fsys, origin, err := migrationSource(cfg)
	if err != nil {
		return err
	}
	files, err := upFiles(fsys)
	if err != nil {
		return fmt.Errorf("database: list migrations: %w", err)
	}
	preview, more := logger.SummarizeStrings(files, previewFiles)
	logger.Debug(ctx, "db.migrate", "migrate.resolve",
		slog.String("path", origin),
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", more),
	)

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("database: open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		logger.Error(ctx, "db.migrate", "migrate.init", slog.String("err", err.Error()))
		return fmt.Errorf("database: init migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "migrate.apply",
			slog.String("status", "fail"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("database: apply migrations: %w", upErr)
	}

	to, _, _ := m.Version()
	applied := between(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		preview, more := logger.SummarizeStrings(applied, previewFiles)
		logger.Debug(ctx, "db.migrate", "migrate.applied",
			slog.String("files_preview", preview),
			slog.Bool("files_truncated", more),
		)
	}
	logger.Info(ctx, "db.migrate", "migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func migrationSource(cfg Config) (fs.FS, string, error) {
	if dir := strings.TrimSpace(cfg.MigrationsDir); dir != "" {
		return os.DirFS(dir), dir, nil
	}
	if cfg.Migrations != nil {
		return cfg.Migrations, "embedded", nil
	}
	return nil, "", errors.New("database: no migrations source configured")
}

func upFiles(fsys fs.FS) ([]string, error) {
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// fileVersion reads the numeric prefix of a migration file name.
func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// between returns the files with a version in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
