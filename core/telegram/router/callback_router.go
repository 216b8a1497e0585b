package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/callbacks"
	"github.com/m3rciful/kinobot/core/telegram/middleware"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Registered handlers must answer the callback themselves.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}

		key, payload := callbacks.Parse(c.Callback())
		sum := newSummary("callback."+normalizeHandlerName(key), slog.String("cb_key", key))
		if payload != "" {
			sum.attrs = append(sum.attrs, slog.String("cb_payload", payload))
		}

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := opts.NotFound
			if fallback == nil {
				fallback = reg.CallbackNotFound()
			}
			sum.outcome = "skip"
			sum.attrs = append(sum.attrs, slog.String("reason", "not_found"))
			return sum.run(c, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return c.Respond()
			})
		}
		return sum.run(c, func() error { return cbHandler(c) })
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
