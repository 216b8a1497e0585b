package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
)

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only the configured admin through. With no admin
// configured every caller is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if sender := c.Sender(); opts.AdminID != 0 && sender != nil && sender.ID == opts.AdminID {
				return next(c)
			}
			logger.Info(tghelpers.BuildContext(c), "tg", "access.denied",
				slog.String("status", "skip"),
				slog.Bool("admin_configured", opts.AdminID != 0),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
