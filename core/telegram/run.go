package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/netutil"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
	tgsender "github.com/m3rciful/kinobot/core/telegram/sender"
)

const stopTimeout = 10 * time.Second

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint: a command, tele.OnText and so on.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// DispatcherOptions override the sender section of Config.
	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook leaves a registered webhook in place when long polling.
	KeepWebhook bool
	// PrivateDispatcher stops the helpers package from sending through Dispatcher.
	PrivateDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to work with.
type Runtime struct {
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot and serves updates until ctx is done.
// A canceled ctx is a clean shutdown and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config")
	}
	cfg := opts.Config
	rt := Runtime{Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Registry == nil {
		rt.Registry = NewRegistry()
	}

	bot, err := newBot(ctx, cfg, opts.KeepWebhook)
	if err != nil {
		return err
	}

	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(dispatcherOptions(cfg, opts.DispatcherOptions))
	}
	if !opts.PrivateDispatcher {
		tghelpers.SetDispatcher(rt.Dispatcher)
	}
	defer func() {
		rt.Dispatcher.Close()
		if !opts.PrivateDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}()

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	SetupCommands(bot, rt.Registry)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	serve(ctx, bot)

	if opts.OnStop != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if err := opts.OnStop(stopCtx, rt); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newBot creates the telebot instance and logs the update mode.
func newBot(ctx context.Context, cfg *coreconfig.Config, keepWebhook bool) (*tele.Bot, error) {
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen:      cfg.Webhook.Listen,
			Port:        cfg.Webhook.Port,
			URL:         cfg.Webhook.URL,
			SecretToken: cfg.Webhook.SecretToken,
		},
	})

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  netutil.BuildHTTPClient(clientOptions(poller)),
		OnError: logBotError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	took := slog.Duration("duration", logger.RoundMS(time.Since(start)))

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			took,
		)
	case *tele.LongPoller:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", "polling"),
			slog.Duration("timeout", p.Timeout),
			took,
		)
		if !keepWebhook {
			removeWebhook(ctx, bot)
		}
	}
	return bot, nil
}

// removeWebhook clears a webhook left by a previous deployment; Telegram
// refuses getUpdates while one is set.
func removeWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "webhook.delete",
			slog.String("status", "fail"),
			slog.String("err", tgsender.Sanitize(err)),
		)
		return
	}
	logger.Info(ctx, "tg", "webhook.delete", slog.String("status", "ok"))
}

// serve blocks until the poller stops on its own or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
	case <-done:
	}
}

// dispatcherOptions fills unset values from the sender section of cfg.
func dispatcherOptions(cfg *coreconfig.Config, o tgsender.Options) tgsender.Options {
	if o.Workers == 0 {
		o.Workers = cfg.Sender.Workers
	}
	if o.QueueSize == 0 {
		o.QueueSize = cfg.Sender.QueueSize
	}
	if o.PerSecond == 0 {
		o.PerSecond = cfg.Sender.PerSecond
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = cfg.Sender.MaxRetries
	}
	return o
}

// clientOptions stretches the HTTP timeouts past the long poll window.
func clientOptions(p tele.Poller) netutil.ClientOptions {
	lp, ok := p.(*tele.LongPoller)
	if !ok || lp.Timeout <= 0 {
		return netutil.ClientOptions{}
	}
	return netutil.ClientOptions{
		ResponseTimeout: lp.Timeout + 10*time.Second,
		Timeout:         lp.Timeout + 30*time.Second,
	}
}

// logBotError receives errors returned by handlers after their summary was logged.
func logBotError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Debug(ctx, "tg", "tg.error",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(tgsender.Sanitize(err), 256)),
	)
}
