package telegram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/telegram/commands"
)

// ErrDuplicate is returned when a command or callback key is registered twice.
var ErrDuplicate = errors.New("telegram: already registered")

// Registry maps slash commands, their text aliases and callback keys to handlers.
// Registration happens during wiring; lookups are safe from any goroutine.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	onUnknownCallback tele.HandlerFunc
	onUnknownText     tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		commands:          map[string]commands.Command{},
		aliases:           map[string]string{},
		callbacks:         map[string]tele.HandlerFunc{},
		onUnknownCallback: answerUnsupported,
	}
}

func answerUnsupported(c tele.Context) error {
	return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
}

func wireWarn(event string, attrs ...slog.Attr) {
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, event, attrs...)
}

// foldAlias makes alias matching ignore case and surrounding spaces.
func foldAlias(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RegisterCommand adds cmd under name, which must start with "/". Aliases that
// already point at another command are skipped with a warning.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case r == nil || cmd.Handler == nil || cmd.Description == "" || name == "":
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return fmt.Errorf("telegram: invalid command %q", name)
	case !strings.HasPrefix(name, "/"):
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "no_slash_prefix"))
		return fmt.Errorf("telegram: command %q must start with /", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		wireWarn("register.command.duplicate", slog.String("name", name))
		return fmt.Errorf("%w: command %s", ErrDuplicate, name)
	}
	r.commands[name] = cmd

	for _, alias := range cmd.Aliases {
		key := foldAlias(alias)
		if key == "" {
			continue
		}
		if owner, taken := r.aliases[key]; taken {
			wireWarn("register.alias.duplicate",
				slog.String("name", name),
				slog.String("alias", alias),
				slog.String("owner", owner),
			)
			continue
		}
		r.aliases[key] = name
	}
	return nil
}

// ListCommands returns the command menu sorted by Order, then name, with the
// leading slash dropped as Telegram expects. visibleOnly leaves out hidden and
// admin-only commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Collect(maps.Keys(r.commands))
	if visibleOnly {
		names = slices.DeleteFunc(names, func(n string) bool { return !r.commands[n].Visible() })
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Or(cmp.Compare(r.commands[a].Order, r.commands[b].Order), strings.Compare(a, b))
	})

	menu := make([]tele.Command, len(names))
	for i, n := range names {
		menu[i] = tele.Command{Text: n[1:], Description: r.commands[n].Description}
	}
	return menu
}

// LookupCommand resolves message text to a command. Slash text matches by
// name, ignoring arguments and a @botname suffix; other text must be an alias.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", commands.Command{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.aliases[foldAlias(text)]
	if text[0] == '/' {
		name, _, _ = strings.Cut(strings.Fields(text)[0], "@")
		_, ok = r.commands[name]
	}
	if !ok {
		return "", commands.Command{}, false
	}
	return name, r.commands[name], true
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// RegisterCallback binds a callback key to h.
func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	if r == nil || key == "" || h == nil {
		wireWarn("register.callback.skip", slog.String("key", key), slog.Bool("handler_nil", h == nil))
		return fmt.Errorf("telegram: invalid callback registration %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		wireWarn("register.callback.duplicate", slog.String("key", key))
		return fmt.Errorf("%w: callback %s", ErrDuplicate, key)
	}
	r.callbacks[key] = h
	return nil
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered callback keys in order.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the answer for unknown callback keys. nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.onUnknownCallback = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onUnknownCallback
}

// SetTextFallback sets the handler for text no command, alias or dialog claimed.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.onUnknownText = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onUnknownText
}

// CommandSetter is the part of tele.Bot that publishes the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the visible commands. A failure is logged, not returned:
// the bot works without a menu.
func SetupCommands(bot CommandSetter, reg *Registry) {
	ctx := context.Background()
	menu := reg.ListCommands(true)
	if err := bot.SetCommands(menu); err != nil {
		logger.LogEvent(ctx, logger.TWire, slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()))
		return
	}
	logger.LogEvent(ctx, logger.TWire, slog.LevelInfo, "register.commands.set",
		slog.String("status", "ok"),
		slog.Int("count", len(menu)),
	)
}
