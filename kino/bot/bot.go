// Package bot binds the movie conversations to Telegram: commands, menu aliases,
// inline buttons, inline queries and fallbacks.
package bot

import (
	"context"
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/middleware"
	"github.com/m3rciful/kinobot/core/telegram/router"
	"github.com/m3rciful/kinobot/core/telegram/ui"
	"github.com/m3rciful/kinobot/kino/command"
	"github.com/m3rciful/kinobot/kino/conversation"
	"github.com/m3rciful/kinobot/kino/history"
	"github.com/m3rciful/kinobot/kino/movie"
)

// Conversations runs dialogs and result lists.
type Conversations interface {
	Start(ctx context.Context, user conversation.User, name string) (conversation.Reply, error)
	Handle(ctx context.Context, user conversation.User, text string) (conversation.Reply, error)
	Cancel(ctx context.Context, userID int64) (conversation.Reply, error)
	Home(ctx context.Context, userID int64) (conversation.Reply, error)
	Execute(ctx context.Context, user conversation.User, cmd command.Command) (conversation.Reply, error)
}

// Users registers users and reports totals.
type Users interface {
	EnsureUser(ctx context.Context, telegramID int64, username string) (int64, error)
	Stats(ctx context.Context) (history.Stats, error)
}

// Searcher answers inline queries.
type Searcher interface {
	Search(ctx context.Context, name string, limit int) ([]movie.Movie, error)
}

// Deps wires a Bot. Users, Searcher and Locker are optional.
type Deps struct {
	Config        *coreconfig.Config
	Conversations Conversations
	Users         Users
	Searcher      Searcher
	Locker        middleware.UserLocker
	// SearchTimeout bounds one inline query lookup.
	SearchTimeout time.Duration
}

// Bot owns the command registry and the Telegram handlers.
type Bot struct {
	cfg           *coreconfig.Config
	conv          Conversations
	users         Users
	search        Searcher
	locker        middleware.UserLocker
	searchTimeout time.Duration
	reg           *tg.Registry
}

var (
	_ ui.FallbackProvider = (*Bot)(nil)
	_ router.Conversation = (*Bot)(nil)
)

// New registers commands and callbacks.
func New(d Deps) (*Bot, error) {
	if d.Config == nil || d.Conversations == nil {
		return nil, fmt.Errorf("bot: config and conversations are required")
	}
	b := &Bot{
		cfg:           d.Config,
		conv:          d.Conversations,
		users:         d.Users,
		search:        d.Searcher,
		locker:        d.Locker,
		searchTimeout: d.SearchTimeout,
		reg:           tg.NewRegistry(),
	}
	if b.searchTimeout <= 0 {
		b.searchTimeout = 10 * time.Second
	}
	if err := b.registerCommands(); err != nil {
		return nil, err
	}
	for _, key := range []string{command.KeySelect, command.KeyNavigate, command.KeyHome} {
		if err := b.reg.RegisterCallback(key, b.onButton); err != nil {
			return nil, err
		}
	}
	b.reg.SetCallbackNotFound(b.UnknownCallback())
	b.reg.SetTextFallback(b.UnknownText())
	return b, nil
}

// Registry exposes registered commands and callbacks.
func (b *Bot) Registry() *tg.Registry {
	return b.reg
}

// TelegramRunOptions assembles middlewares and routes for the runner.
func (b *Bot) TelegramRunOptions() (tg.RunOptions, error) {
	cmdOpts := router.CommandRouteOptions{
		AdminID:       b.cfg.Telegram.AdminID,
		OnAdminReject: b.UnknownText(),
	}

	routes := router.CommandRoutes(b.reg, cmdOpts)
	routes = append(routes, router.TextRoutes(b, b.reg, router.TextOptions{
		Commands:        cmdOpts,
		UnknownText:     b.UnknownText(),
		UnknownDocument: b.UnknownDocument(),
	})...)
	routes = append(routes, router.CallbackRoute(b.reg, router.CallbackOptions{}))
	if b.search != nil {
		routes = append(routes, router.QueryRoute(b.onInlineQuery))
	}

	return tg.RunOptions{
		Config:   b.cfg,
		Registry: b.reg,
		Middlewares: tg.DefaultMiddlewares(b.cfg, tg.MiddlewareOptions{
			OnLimited: onLimited,
			Locker:    b.locker,
		}),
		Routes: routes,
	}, nil
}
