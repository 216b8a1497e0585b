package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	"github.com/m3rciful/kinobot/core/telegram/middleware"
)

// MiddlewareOptions tunes the shared chain.
type MiddlewareOptions struct {
	// OnLimited answers a throttled update.
	OnLimited tele.HandlerFunc
	// Locker serializes updates of one user when set.
	Locker middleware.UserLocker
}

// DefaultMiddlewares returns the chain every bot installs, outermost first:
// recover, the optional per-user rate limit, logging, reply metrics and the
// optional per-user lock. Throttled updates never wait on the lock.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if limit, ok := rateLimit(cfg, opts.OnLimited); ok {
		chain = append(chain, limit)
	}
	chain = append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
	if opts.Locker != nil {
		chain = append(chain, Middleware{Name: "serialize_user", Use: middleware.SerializeUser(opts.Locker)})
	}
	return chain
}

// rateLimit is disabled by a zero interval.
func rateLimit(cfg *coreconfig.Config, onLimited tele.HandlerFunc) (Middleware, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return Middleware{}, false
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[kind] = struct{}{}
	}
	return Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
			Burst:     cfg.RateLimit.Burst,
			Exclude:   exclude,
			OnLimited: onLimited,
		}),
	}, true
}
