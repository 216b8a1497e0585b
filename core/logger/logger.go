package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/m3rciful/kinobot/core/buildinfo"
	coreconfig "github.com/m3rciful/kinobot/core/config"
)

const writerQueue = 64 * 1024

var (
	initOnce sync.Once

	closeMu sync.Mutex
	closed  bool
	sink    *asyncWriter
	files   []io.Closer

	levelVar      slog.LevelVar
	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. It discards output until InitLogger runs.
	L = slog.New(slog.DiscardHandler)

	// DB logs database-related events.
	DB = L
	// TG logs Telegram transport events.
	TG = L
	// MIG logs database migration events.
	MIG = L
	// TWire logs Telegram wiring steps.
	TWire = L
	// SVCMovies logs movie lookups against the kinopoisk API.
	SVCMovies = L
	// SVCHistory logs search history persistence.
	SVCHistory = L
	// SVCSessions logs conversation session activity.
	SVCSessions = L
)

var components = []struct {
	dst  **slog.Logger
	name string
}{
	{&DB, "db"},
	{&TG, "tg"},
	{&MIG, "db.migrate"},
	{&TWire, "tg.wire"},
	{&SVCMovies, "service.movies"},
	{&SVCHistory, "service.history"},
	{&SVCSessions, "service.sessions"},
}

// settings is the logging section resolved to concrete values.
type settings struct {
	format   logFormat
	order    []string
	level    slog.Level
	profile  string
	num, den int
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		format:  formatJSON,
		order:   defaultKeyOrder,
		level:   slog.LevelInfo,
		profile: "prod",
		num:     1,
		den:     50,
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			s.order = order
		}
	}

	level := strings.TrimSpace(lc.Level)
	if strings.EqualFold(level, "warning") {
		level = "warn"
	}
	if level != "" {
		// Unknown names keep INFO.
		_ = s.level.UnmarshalText([]byte(level))
	}

	if strings.TrimSpace(lc.DebugSample) != "" {
		s.num, s.den = parseRatioSpec(lc.DebugSample)
	}
	return s
}

// InitLogger configures the global structured logger. Only the first call has effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := resolve(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.num, s.den)
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		var outputs []io.Writer
		outputs, files, err = openOutputs(cfg)
		if err != nil {
			return
		}
		sink = newAsyncWriter(outputs, writerQueue)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   sink,
			format:   s.format,
			keyOrder: s.order,
		}))
		slog.SetDefault(L)
		for _, c := range components {
			*c.dst = L.With("component", c.name)
		}

		Info(context.Background(), "app", "startup",
			slog.String("version", buildinfo.String()),
			slog.String("go_version", runtime.Version()),
			slog.String("cfg_profile", s.profile),
			slog.String("log_level", s.level.String()),
		)
	})
	return err
}

// openOutputs writes to stdout and, when a file is configured, to a rotated log file.
func openOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer, error) {
	out := []io.Writer{os.Stdout}
	if cfg == nil {
		return out, nil, nil
	}
	dir, name := strings.TrimSpace(cfg.Logging.Dir), strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || name == "" {
		return out, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir %s: %w", dir, err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}
	return append(out, file), []io.Closer{file}, nil
}

// Shutdown flushes buffered log output and closes opened files.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Flush(), sink.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Background returns context.Background() for call sites outside any update.
func Background() context.Context {
	return context.Background()
}

// LogEvent logs attrs under event. A nil logg falls back to the context logger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns the base logger tagged with a component name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs an event for the named component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug event should be logged.
// TRACE=1 logs all of them.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
