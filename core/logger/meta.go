package logger

import (
	"context"
	"fmt"
	"log/slog"
)

type ctxKey int

const (
	keyMeta ctxKey = iota
	keyLogger
)

// UpdateMeta identifies the Telegram update a log line belongs to. The handler
// injects every non-zero field into records logged with the context.
type UpdateMeta struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
	// Flow names the conversation the update advanced, if any.
	Flow string
}

// NewUpdateMeta fills the identifiers and derives the RID from them.
func NewUpdateMeta(updateID int, chatID, userID int64) UpdateMeta {
	return UpdateMeta{
		RID:      BuildRID(updateID, chatID, userID),
		UpdateID: updateID,
		UserID:   userID,
		ChatID:   chatID,
	}
}

// BuildRID returns a correlation identifier in the format updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

func (m UpdateMeta) fields() []slog.Attr {
	attrs := make([]slog.Attr, 0, 6)
	if m.RID != "" {
		attrs = append(attrs, slog.String("rid", m.RID))
	}
	if m.UpdateID != 0 {
		attrs = append(attrs, slog.Int("update_id", m.UpdateID))
	}
	if m.UserID != 0 {
		attrs = append(attrs, slog.Int64("user_id", m.UserID))
	}
	if m.ChatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", m.ChatID))
	}
	if m.Handler != "" {
		attrs = append(attrs, slog.String("handler", m.Handler))
	}
	if m.Flow != "" {
		attrs = append(attrs, slog.String("flow", m.Flow))
	}
	return attrs
}

// WithMeta replaces the update metadata carried by ctx.
func WithMeta(ctx context.Context, m UpdateMeta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, keyMeta, m)
}

// MetaFrom returns the update metadata carried by ctx, or the zero value.
func MetaFrom(ctx context.Context) UpdateMeta {
	if ctx == nil {
		return UpdateMeta{}
	}
	m, _ := ctx.Value(keyMeta).(UpdateMeta)
	return m
}

func update(ctx context.Context, fn func(*UpdateMeta)) context.Context {
	m := MetaFrom(ctx)
	fn(&m)
	return WithMeta(ctx, m)
}

// WithHandler names the handler serving the update. An empty name is ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	return update(ctx, func(m *UpdateMeta) { m.Handler = handler })
}

// WithFlow names the conversation flow for downstream service logs.
func WithFlow(ctx context.Context, flow string) context.Context {
	if flow == "" {
		return ctx
	}
	return update(ctx, func(m *UpdateMeta) { m.Flow = flow })
}

// RIDFrom returns the correlation id carried by ctx.
func RIDFrom(ctx context.Context) string { return MetaFrom(ctx).RID }

// ChatIDFrom returns the chat id carried by ctx.
func ChatIDFrom(ctx context.Context) int64 { return MetaFrom(ctx).ChatID }

// WithLogger stores log in ctx for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, keyLogger, log)
}

// FromContext returns the logger stored in ctx or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if l, ok := ctx.Value(keyLogger).(*slog.Logger); ok {
		return l
	}
	return L
}
