package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
)

// PanicError is what RecoverMiddleware returns in place of a handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("telegram: handler panic: %v", e.Value) }

// Code classifies the error in handler summaries.
func (e *PanicError) Code() string { return "PANIC" }

// RecoverMiddleware turns a handler panic into a *PanicError so the update is
// logged as failed and the bot keeps running.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			pe := &PanicError{Value: r, Stack: debug.Stack()}
			logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
				slog.String("status", "fail"),
				slog.Any("err", r),
				slog.String("stack", string(pe.Stack)),
			)
			err = pe
		}()
		return next(c)
	}
}
