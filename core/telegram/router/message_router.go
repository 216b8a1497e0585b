package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/middleware"
)

// Conversation receives free text that is neither a command nor an alias.
type Conversation interface {
	// HandleText answers c when a dialog with the sender is in progress and reports whether it did.
	HandleText(c tele.Context) (bool, error)
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	// Commands wraps alias hits like CommandRoutes wraps slash commands.
	Commands        CommandRouteOptions
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing. Text is matched
// against command aliases first, then handed to the active conversation, then
// to the fallback.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return commandHandler(key, cmd, opts.Commands)(c)
			}
		}

		if conv != nil {
			sum := newSummary("conversation")
			handled, err := conv.HandleText(c)
			if handled || err != nil {
				sum.log(c, err)
				return err
			}
		}

		fallback := opts.UnknownText
		if fallback == nil && reg != nil {
			fallback = reg.TextFallback()
		}
		return fallbackRun(c, "unknown_text", fallback)
	}

	docHandler := func(c tele.Context) error {
		return fallbackRun(c, "unexpected_document", opts.UnknownDocument)
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}

// fallbackRun answers an update nothing else claimed; without h it is only logged.
func fallbackRun(c tele.Context, name string, h tele.HandlerFunc) error {
	sum := newSummary(name)
	if h == nil {
		sum.status = "skip"
		sum.log(c, nil)
		return nil
	}
	return sum.run(c, func() error { return h(c) })
}
