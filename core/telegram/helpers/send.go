package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes the send helpers through d. nil sends inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// deliver hands run to the dispatcher. A full or closed queue degrades to an
// inline call so the reply is not lost.
func deliver(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	job := sender.Job{Action: action, Endpoint: endpoint, Run: run}
	if chat := c.Chat(); chat != nil {
		job.Chat = chat.ID
	}
	err := d.Enqueue(ctx, job)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

func firstMarkup(markup []*tele.ReplyMarkup) *tele.ReplyMarkup {
	if len(markup) == 0 {
		return nil
	}
	return markup[0]
}

// SendText sends plain text. At most one options value is used.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := []any{}
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return deliver(c, "send.text", "sendMessage", func() error {
		return c.Send(text, args...)
	})
}

// SendMD sends text in legacy Markdown with an optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return SendText(c, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: firstMarkup(markup)})
}

// SendPhoto sends a photo by URL with a Markdown caption.
func SendPhoto(c tele.Context, url, caption string, markup ...*tele.ReplyMarkup) error {
	photo := &tele.Photo{File: tele.FromURL(url), Caption: caption}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: firstMarkup(markup)}
	return deliver(c, "send.photo", "sendPhoto", func() error {
		return c.Send(photo, opts)
	})
}

// EditOrSend edits the message behind the callback and sends a new one when the
// edit is rejected. An unchanged message is not an error.
func EditOrSend(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: firstMarkup(markup)}
	err := c.Edit(text, opts)
	if err == nil || errors.Is(err, tele.ErrSameMessageContent) {
		return nil
	}
	logger.Debug(BuildContext(c), "tg", "edit.fallback", slog.String("err", err.Error()))
	return SendText(c, text, opts)
}
