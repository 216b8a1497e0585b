package middleware

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
)

// UserLocker hands out a per-user lock.
type UserLocker interface {
	Lock(userID int64) (unlock func())
}

// SerializeUser runs updates of the same user one at a time. Telebot dispatches
// every update on its own goroutine, so without this a double tap could advance a
// conversation twice from the same state.
func SerializeUser(locker UserLocker) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if locker == nil || user == nil {
				return next(c)
			}
			start := time.Now()
			unlock := locker.Lock(user.ID)
			defer unlock()
			if waited := time.Since(start); waited > 100*time.Millisecond {
				logger.Debug(tghelpers.BuildContext(c), "tg", "user.lock.wait",
					slog.String("status", "ok"),
					slog.Int64("user_id", user.ID),
					slog.Duration("wait", waited),
				)
			}
			return next(c)
		}
	}
}
