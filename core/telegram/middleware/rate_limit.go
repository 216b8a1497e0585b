package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/metrics"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
)

const maxTrackedUsers = 10000

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the sustained gap allowed between two updates of one user.
	Interval time.Duration
	// Burst lets a user send a few updates back to back before Interval applies.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// IdleTTL drops limiters of users not seen for this long.
	IdleTTL time.Duration
}

// userLimiters keeps one token bucket per user; buckets idle for longer than
// the TTL are evicted and start full on the next update.
type userLimiters struct {
	mu    sync.Mutex
	cache *expirable.LRU[int64, *rate.Limiter]
	every rate.Limit
	burst int
}

func (u *userLimiters) allow(userID int64, now time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.cache.Get(userID)
	if !ok {
		l = rate.NewLimiter(u.every, u.burst)
	}
	u.cache.Add(userID, l)
	return l.AllowN(now, 1)
}

// UpdateKind classifies an update for rate limit exclusions and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that throttles updates per user with a token bucket.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	idle := opts.IdleTTL
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	limiters := &userLimiters{
		cache: expirable.NewLRU[int64, *rate.Limiter](maxTrackedUsers, nil, idle),
		every: rate.Every(opts.Interval),
		burst: burst,
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}

			if limiters.allow(user.ID, time.Now()) {
				return next(c)
			}

			metrics.RateLimitedTotal.Inc()
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.Int64("user_id", user.ID),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
