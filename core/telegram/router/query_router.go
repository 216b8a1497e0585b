package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/middleware"
)

// QueryRoute wraps an inline query handler with the shared middleware and handler summary.
func QueryRoute(h tele.HandlerFunc) tg.Route {
	handler := func(c tele.Context) error {
		return newSummary("inline_query").run(c, func() error { return h(c) })
	}
	return tg.Route{
		Endpoint: tele.OnQuery,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
