package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/commands"
	"github.com/m3rciful/kinobot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for name, def := range reg.Commands() {
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(commandHandler(name, def, opts))),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}

// commandHandler wraps a command with the admin gate and the handler summary.
// Text aliases resolved by TextRoutes go through the same wrapper.
func commandHandler(name string, def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	h := def.Handler
	if def.AdminOnly {
		h = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
			AdminID:  opts.AdminID,
			OnReject: opts.OnAdminReject,
		})(h)
	}
	handlerName := normalizeHandlerName(name)
	return func(c tele.Context) error {
		return newSummary(handlerName).run(c, func() error { return h(c) })
	}
}
