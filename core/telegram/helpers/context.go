// Package helpers holds small utilities shared by handlers: the per-update
// logging context, outbound send wrappers and chat input parsing.
package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
)

const contextKey = "logger_ctx"

// Meta extracts the identifiers of the update behind c.
func Meta(c tele.Context) logger.UpdateMeta {
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return logger.NewUpdateMeta(c.Update().ID, chatID, userID)
}

// NewContext builds a fresh logging context for the update and caches it on c.
func NewContext(c tele.Context) context.Context {
	ctx := logger.WithMeta(logger.Background(), Meta(c))
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(contextKey, ctx)
	return ctx
}

// BuildContext returns the context cached on c, building it on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(contextKey).(context.Context); ok {
		return ctx
	}
	return NewContext(c)
}

// WithHandler names the handler in the cached context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	c.Set(contextKey, ctx)
	return ctx
}
