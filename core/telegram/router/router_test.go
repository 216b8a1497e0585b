package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/kinobot/core/telegram"
	"github.com/m3rciful/kinobot/core/telegram/callbacks"
	"github.com/m3rciful/kinobot/core/telegram/commands"
)

type fakeCtx struct {
	tele.Context
	text      string
	user      *tele.User
	cb        *tele.Callback
	store     map[string]any
	responded int
}

func newCtx(text string) *fakeCtx {
	return &fakeCtx{text: text, user: &tele.User{ID: 7}, store: map[string]any{}}
}

func (f *fakeCtx) Text() string             { return f.text }
func (f *fakeCtx) Sender() *tele.User       { return f.user }
func (f *fakeCtx) Chat() *tele.Chat         { return &tele.Chat{ID: f.user.ID, Type: tele.ChatPrivate} }
func (f *fakeCtx) Callback() *tele.Callback { return f.cb }
func (f *fakeCtx) Get(key string) any       { return f.store[key] }
func (f *fakeCtx) Set(key string, val any)  { f.store[key] = val }
func (f *fakeCtx) Respond(...*tele.CallbackResponse) error {
	f.responded++
	return nil
}

func (f *fakeCtx) Update() tele.Update {
	if f.cb != nil {
		return tele.Update{ID: 1, Callback: f.cb}
	}
	return tele.Update{ID: 1, Message: &tele.Message{Text: f.text}}
}

type fakeConv struct {
	handled bool
	err     error
	seen    []string
}

func (f *fakeConv) HandleText(c tele.Context) (bool, error) {
	f.seen = append(f.seen, c.Text())
	return f.handled, f.err
}

func textHandler(t *testing.T, conv Conversation, reg *tg.Registry, opts TextOptions) tele.HandlerFunc {
	t.Helper()
	routes := TextRoutes(conv, reg, opts)
	require.Len(t, routes, 2)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)
	return routes[0].Handler
}

func TestTextRoutesAliasFirst(t *testing.T) {
	reg := tg.NewRegistry()
	var started int
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{
		Handler:     func(tele.Context) error { started++; return nil },
		Description: "start",
		Aliases:     []string{"Привет"},
	}))
	conv := &fakeConv{handled: true}
	h := textHandler(t, conv, reg, TextOptions{})

	require.NoError(t, h(newCtx("привет")))
	assert.Equal(t, 1, started)
	assert.Empty(t, conv.seen)

	require.NoError(t, h(newCtx("Матрица")))
	assert.Equal(t, []string{"Матрица"}, conv.seen)
}

func TestTextRoutesFallback(t *testing.T) {
	var unknown []string
	opts := TextOptions{UnknownText: func(c tele.Context) error {
		unknown = append(unknown, c.Text())
		return nil
	}}

	h := textHandler(t, &fakeConv{}, tg.NewRegistry(), opts)
	require.NoError(t, h(newCtx("что-то")))
	assert.Equal(t, []string{"что-то"}, unknown)

	boom := errors.New("boom")
	h = textHandler(t, &fakeConv{err: boom}, tg.NewRegistry(), opts)
	assert.ErrorIs(t, h(newCtx("ещё")), boom)
	assert.Len(t, unknown, 1)
}

func TestTextRoutesAdminAlias(t *testing.T) {
	reg := tg.NewRegistry()
	var ran, rejected int
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{
		Handler:     func(tele.Context) error { ran++; return nil },
		Description: "stats",
		AdminOnly:   true,
		Aliases:     []string{"статистика"},
	}))
	opts := TextOptions{Commands: CommandRouteOptions{
		AdminID:       1,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	}}
	h := textHandler(t, nil, reg, opts)

	require.NoError(t, h(newCtx("статистика")))
	assert.Zero(t, ran)
	assert.Equal(t, 1, rejected)

	admin := newCtx("статистика")
	admin.user = &tele.User{ID: 1}
	require.NoError(t, h(admin))
	assert.Equal(t, 1, ran)
}

func TestCallbackRoute(t *testing.T) {
	reg := tg.NewRegistry()
	var payloads []string
	require.NoError(t, reg.RegisterCallback("page_nav", func(c tele.Context) error {
		payloads = append(payloads, callbacks.Payload(c))
		return c.Respond()
	}))
	route := CallbackRoute(reg, CallbackOptions{})
	assert.Equal(t, tele.OnCallback, route.Endpoint)

	c := newCtx("")
	c.cb = &tele.Callback{Data: callbacks.Data("page_nav", "next")}
	require.NoError(t, route.Handler(c))
	assert.Equal(t, []string{"next"}, payloads)
	assert.Equal(t, 1, c.responded)

	c = newCtx("")
	c.cb = &tele.Callback{Data: callbacks.Data("gone", "")}
	require.NoError(t, route.Handler(c))
	assert.Equal(t, 1, c.responded)
}

func TestCommandRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{Handler: func(tele.Context) error { return nil }, Description: "h"}))
	routes := CommandRoutes(reg, CommandRouteOptions{})
	require.Len(t, routes, 1)
	assert.Equal(t, "/help", routes[0].Endpoint)
	assert.NoError(t, routes[0].Handler(newCtx("/help")))
	assert.Nil(t, CommandRoutes(nil, CommandRouteOptions{}))
}

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "KINOPOISK_HTTP_500", deriveErrorCode(codeErr("kinopoisk_http_500")))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("x")))
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
	assert.Equal(t, "movie_search", normalizeHandlerName("/Movie_Search"))
}

type codeErr string

func (e codeErr) Error() string { return string(e) }
func (e codeErr) Code() string  { return string(e) }
