package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
)

var (
	recentMu sync.Mutex
	recent   = expirable.NewLRU[int, struct{}](4096, nil, 10*time.Second)
)

func alreadyLogged(updateID int) bool {
	recentMu.Lock()
	defer recentMu.Unlock()
	if recent.Contains(updateID) {
		return true
	}
	recent.Add(updateID, struct{}{})
	return false
}

// LoggerMiddleware starts the logging context of an update and logs its receipt
// once per update_id, even when the chain is applied on several branches.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set("update_start", time.Now())
		ctx := tghelpers.NewContext(c)

		upd := c.Update()
		if !logger.ShouldSampleDebug() || alreadyLogged(upd.ID) {
			return next(c)
		}

		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("kind", UpdateKind(upd)),
		}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil {
			if user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
		}
		switch {
		case upd.Callback != nil:
			key, payload := callbacks.Parse(upd.Callback)
			if key != "" {
				attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
			}
			if payload != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
			}
		case upd.Query != nil:
			attrs = append(attrs, slog.String("query", logger.SanitizeLimit(upd.Query.Text, 256)))
		case upd.Message != nil:
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
		}
		logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		return next(c)
	}
}
