package middleware

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/metrics"
)

const replyStatsKey = "reply_stats"

// replyStats is shared by pointer so every copy of the wrapped context sees the same counts.
type replyStats struct {
	messages int
	keyboard bool
}

// countingContext counts the replies a handler makes through the context.
type countingContext struct {
	tele.Context
	stats *replyStats
}

func (c countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	c.stats.messages++
	c.stats.keyboard = c.stats.keyboard || carriesMarkup(opts)
	metrics.MessagesSent.Inc()
	return nil
}

func carriesMarkup(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what any, opts ...any) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the update by kind and the replies sent while handling it.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.UpdatesTotal.WithLabelValues(UpdateKind(c.Update())).Inc()
		stats := &replyStats{}
		c.Set(replyStatsKey, stats)
		return next(countingContext{Context: c, stats: stats})
	}
}

// GetCounters returns how many replies were sent for the update and whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	stats, ok := c.Get(replyStatsKey).(*replyStats)
	if !ok {
		return 0, false
	}
	return stats.messages, stats.keyboard
}
