package router

import (
	"cmp"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/metrics"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
	"github.com/m3rciful/kinobot/core/telegram/middleware"
)

// summary logs one "handler.handled" line per routed update and feeds the
// handler duration histogram.
type summary struct {
	handler string
	start   time.Time
	// status and outcome default to ok or fail depending on the returned error.
	status  string
	outcome string
	attrs   []slog.Attr
}

func newSummary(handler string, attrs ...slog.Attr) summary {
	return summary{handler: handler, start: time.Now(), attrs: attrs}
}

// run names the handler in the update context, calls fn and logs how it ended.
func (s summary) run(c tele.Context, fn func() error) error {
	tghelpers.WithHandler(c, s.handler)
	err := fn()
	s.log(c, err)
	return err
}

func (s summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	result := "ok"
	if err != nil {
		result = "fail"
	}
	status, outcome := cmp.Or(s.status, result), cmp.Or(s.outcome, result)

	took := time.Since(s.start)
	metrics.RecordHandler(s.handler, status, took)

	msgs, kb := middleware.GetCounters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", took),
	}, s.attrs...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c interface{ Code() string }
	if errors.As(err, &c) {
		code := strings.TrimSpace(c.Code())
		if code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(err) {
		err = inner
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil {
		return strings.ToUpper(strings.ReplaceAll(t.Name(), " ", "_"))
	}
	return "UNKNOWN_ERROR"
}
