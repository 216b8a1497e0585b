package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	"github.com/m3rciful/kinobot/core/telegram/callbacks"
	"github.com/m3rciful/kinobot/core/telegram/state"
	"github.com/m3rciful/kinobot/kino/command"
	"github.com/m3rciful/kinobot/kino/conversation"
	"github.com/m3rciful/kinobot/kino/flows"
	"github.com/m3rciful/kinobot/kino/history"
	"github.com/m3rciful/kinobot/kino/movie"
)

type sent struct {
	what any
	opts []any
}

type fakeCtx struct {
	tele.Context
	user      *tele.User
	text      string
	cb        *tele.Callback
	query     *tele.Query
	store     map[string]any
	sent      []sent
	edited    []sent
	responses []*tele.CallbackResponse
	answer    *tele.QueryResponse
}

func newCtx(text string) *fakeCtx {
	return &fakeCtx{user: &tele.User{ID: 42, Username: "neo"}, text: text, store: map[string]any{}}
}

func buttonCtx(cmd command.Command) *fakeCtx {
	c := newCtx("")
	key, payload := command.Payload(cmd)
	c.cb = &tele.Callback{Data: callbacks.Data(key, payload)}
	return c
}

func (f *fakeCtx) Sender() *tele.User       { return f.user }
func (f *fakeCtx) Text() string             { return f.text }
func (f *fakeCtx) Chat() *tele.Chat         { return &tele.Chat{ID: f.user.ID, Type: tele.ChatPrivate} }
func (f *fakeCtx) Callback() *tele.Callback { return f.cb }
func (f *fakeCtx) Query() *tele.Query       { return f.query }
func (f *fakeCtx) Get(key string) any       { return f.store[key] }
func (f *fakeCtx) Set(key string, val any)  { f.store[key] = val }

func (f *fakeCtx) Update() tele.Update {
	switch {
	case f.cb != nil:
		return tele.Update{ID: 1, Callback: f.cb}
	case f.query != nil:
		return tele.Update{ID: 1, Query: f.query}
	}
	return tele.Update{ID: 1, Message: &tele.Message{Text: f.text}}
}

func (f *fakeCtx) Send(what any, opts ...any) error {
	f.sent = append(f.sent, sent{what: what, opts: opts})
	return nil
}

func (f *fakeCtx) Edit(what any, opts ...any) error {
	f.edited = append(f.edited, sent{what: what, opts: opts})
	return nil
}

func (f *fakeCtx) Respond(resp ...*tele.CallbackResponse) error {
	r := &tele.CallbackResponse{}
	if len(resp) > 0 && resp[0] != nil {
		r = resp[0]
	}
	f.responses = append(f.responses, r)
	return nil
}

func (f *fakeCtx) Answer(resp *tele.QueryResponse) error {
	f.answer = resp
	return nil
}

func (f *fakeCtx) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)
	s, ok := f.sent[len(f.sent)-1].what.(string)
	require.True(t, ok)
	return s
}

func markupOf(opts []any) *tele.ReplyMarkup {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			return v.ReplyMarkup
		case *tele.ReplyMarkup:
			return v
		}
	}
	return nil
}

type fakeFetcher struct {
	movies  []movie.Movie
	err     error
	queries []conversation.Query
}

func (f *fakeFetcher) Fetch(_ context.Context, q conversation.Query) ([]movie.Movie, error) {
	f.queries = append(f.queries, q)
	return f.movies, f.err
}

type fakeUsers struct {
	ensured []int64
	err     error
}

func (f *fakeUsers) EnsureUser(_ context.Context, id int64, _ string) (int64, error) {
	f.ensured = append(f.ensured, id)
	return 1, f.err
}

func (f *fakeUsers) Stats(context.Context) (history.Stats, error) {
	return history.Stats{Users: 3, Entries: 40, Today: 5}, nil
}

type fakeSearch struct{ movies []movie.Movie }

func (f fakeSearch) Search(context.Context, string, int) ([]movie.Movie, error) {
	return f.movies, nil
}

func films(n int) []movie.Movie {
	out := make([]movie.Movie, n)
	for i := range out {
		out[i] = movie.Movie{Name: fmt.Sprintf("Фильм %d", i+1), Rating: "7.5", Year: "1999"}
	}
	return out
}

type fixture struct {
	bot     *Bot
	fetcher *fakeFetcher
	users   *fakeUsers
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	machine, err := flows.NewMachine(func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) })
	require.NoError(t, err)
	fetcher := &fakeFetcher{movies: films(8)}
	fetcher.movies[6].PosterURL = "https://img.example/7.jpg"
	svc, err := conversation.New(conversation.Options{
		Store:   state.NewMemoryStore[movie.Movie](),
		Machine: machine,
		Fetcher: fetcher,
	})
	require.NoError(t, err)

	users := &fakeUsers{}
	cfg := &coreconfig.Config{}
	cfg.Telegram.AdminID = 1
	b, err := New(Deps{
		Config:        cfg,
		Conversations: svc,
		Users:         users,
		Searcher:      fakeSearch{movies: films(3)},
		Locker:        state.NewLocker(),
	})
	require.NoError(t, err)
	return fixture{bot: b, fetcher: fetcher, users: users}
}

func (fx fixture) run(t *testing.T, text string) *fakeCtx {
	t.Helper()
	c := newCtx(text)
	if _, cmd, ok := fx.bot.Registry().LookupCommand(text); ok {
		require.NoError(t, cmd.Handler(c))
		return c
	}
	handled, err := fx.bot.HandleText(c)
	require.NoError(t, err)
	require.True(t, handled, text)
	return c
}

func TestStartRegistersUser(t *testing.T) {
	fx := newFixture(t)
	c := fx.run(t, "Привет")
	assert.Equal(t, []int64{42}, fx.users.ensured)
	assert.Equal(t, msgWelcome, c.lastText(t))
	kb := markupOf(c.sent[0].opts)
	require.NotNil(t, kb)
	assert.Len(t, kb.ReplyKeyboard, 6)
	assert.Equal(t, menuPlaceholder, kb.Placeholder)
}

func TestStartFailsWhenUserNotStored(t *testing.T) {
	fx := newFixture(t)
	fx.users.err = errors.New("db down")
	_, cmd, ok := fx.bot.Registry().LookupCommand("/start")
	require.True(t, ok)
	c := newCtx("/start")
	assert.Error(t, cmd.Handler(c))
	assert.Equal(t, msgStartError, c.lastText(t))
}

func TestSearchFlowAndPaging(t *testing.T) {
	fx := newFixture(t)

	c := fx.run(t, LabelSearch)
	assert.Equal(t, "Введите название фильма/сериала:", c.lastText(t))
	assert.Equal(t, flows.LabelCancel, markupOf(c.sent[0].opts).ReplyKeyboard[0][0].Text)

	c = fx.run(t, "Матрица")
	assert.Equal(t, "Сколько вариантов вы хотите получить?", c.lastText(t))

	c = fx.run(t, "8")
	require.Len(t, fx.fetcher.queries, 1)
	assert.Equal(t, "Матрица", fx.fetcher.queries[0].Name)
	assert.True(t, strings.HasPrefix(c.lastText(t), "Найдено фильмов: 8\n\n1. Фильм 1"))
	kb := markupOf(c.sent[0].opts)
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 5)
	assert.Equal(t, LabelNext, kb.InlineKeyboard[3][0].Text)
	assert.Equal(t, flows.LabelToMain, kb.InlineKeyboard[4][0].Text)
	assert.Equal(t, command.KeyHome, kb.InlineKeyboard[4][0].Unique)

	prev := buttonCtx(command.Navigate{Direction: command.Previous})
	require.NoError(t, fx.bot.onButton(prev))
	require.Len(t, prev.responses, 1)
	assert.Equal(t, conversation.MsgNoPrevious, prev.responses[0].Text)
	assert.True(t, prev.responses[0].ShowAlert)

	next := buttonCtx(command.Navigate{Direction: command.Next})
	require.NoError(t, fx.bot.onButton(next))
	require.Len(t, next.edited, 1)
	assert.Contains(t, next.edited[0].what, "7. Фильм 7")
	kb = markupOf(next.edited[0].opts)
	require.NotNil(t, kb)
	assert.Equal(t, LabelPrevious, kb.InlineKeyboard[1][0].Text)

	pick := buttonCtx(command.Select{Index: 6})
	require.NoError(t, fx.bot.onButton(pick))
	require.Len(t, pick.responses, 1)
	assert.Equal(t, "Вы выбрали фильм Фильм 7", pick.responses[0].Text)
	require.Len(t, pick.sent, 1)
	photo, ok := pick.sent[0].what.(*tele.Photo)
	require.True(t, ok)
	assert.Contains(t, photo.Caption, "*Название:* Фильм 7")

	plain := buttonCtx(command.Select{Index: 0})
	require.NoError(t, fx.bot.onButton(plain))
	assert.Contains(t, plain.lastText(t), "*Название:* Фильм 1")
}

func TestHomeButtonLeavesResults(t *testing.T) {
	fx := newFixture(t)
	fx.run(t, LabelSearch)
	fx.run(t, "Матрица")
	fx.run(t, "8")

	home := buttonCtx(command.Home{})
	require.NoError(t, fx.bot.onButton(home))
	require.Len(t, home.responses, 1)
	assert.Equal(t, conversation.MsgMenu, home.lastText(t))
	kb := markupOf(home.sent[0].opts)
	require.NotNil(t, kb)
	assert.Equal(t, LabelSearch, kb.ReplyKeyboard[0][0].Text)

	next := buttonCtx(command.Navigate{Direction: command.Next})
	require.NoError(t, fx.bot.onButton(next))
	require.Len(t, next.responses, 1)
	assert.Equal(t, conversation.MsgUnavailable, next.responses[0].Text)
}

func TestOversizedCaptionSendsTextCard(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.movies[0].PosterURL = "https://img.example/1.jpg"
	fx.fetcher.movies[0].Name = strings.Repeat("Ф", movie.CaptionLimit)
	fx.run(t, LabelSearch)
	fx.run(t, "Матрица")
	fx.run(t, "8")

	pick := buttonCtx(command.Select{Index: 0})
	require.NoError(t, fx.bot.onButton(pick))
	require.Len(t, pick.sent, 1)
	_, isPhoto := pick.sent[0].what.(*tele.Photo)
	assert.False(t, isPhoto)
	assert.Contains(t, pick.lastText(t), "*Название:* ФФФ")
}

func TestNotFoundShowsMenu(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.movies = nil
	fx.run(t, LabelGenre)
	fx.run(t, "Драма")
	c := fx.run(t, "5")
	assert.Equal(t, conversation.MsgNotFound, c.lastText(t))
	assert.Equal(t, "драма", fx.fetcher.queries[0].Genre)
}

func TestFetchFailureStillAnswers(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.err = errors.New("upstream")
	fx.run(t, "/movie_search")
	fx.run(t, "Матрица")

	c := newCtx("3")
	handled, err := fx.bot.HandleText(c)
	assert.True(t, handled)
	assert.Error(t, err)
	assert.Equal(t, conversation.MsgFailed, c.lastText(t))
}

func TestValidationReprompts(t *testing.T) {
	fx := newFixture(t)
	fx.run(t, "/movie_by_rating")
	c := fx.run(t, "11")
	assert.NotEmpty(t, c.lastText(t))
	assert.Nil(t, markupOf(c.sent[0].opts))

	c = fx.run(t, "7-8")
	assert.Equal(t, "Хотите выбрать жанр фильма?", c.lastText(t))
	c = fx.run(t, "может быть")
	assert.Equal(t, flows.ChoiceHint, c.lastText(t))
}

func TestCancelAndHome(t *testing.T) {
	fx := newFixture(t)
	c := fx.run(t, "Отмена")
	assert.Equal(t, conversation.MsgNothingToDo, c.lastText(t))

	fx.run(t, LabelHighBudget)
	c = fx.run(t, "cancel")
	assert.Equal(t, conversation.MsgCancelled, c.lastText(t))

	fx.run(t, LabelLowBudget)
	c = fx.run(t, "На главную")
	assert.Equal(t, conversation.MsgMenu, c.lastText(t))

	handled, err := fx.bot.HandleText(newCtx("1000"))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestButtonsWithoutResults(t *testing.T) {
	fx := newFixture(t)
	c := buttonCtx(command.Navigate{Direction: command.Next})
	require.NoError(t, fx.bot.onButton(c))
	require.Len(t, c.responses, 1)
	assert.Equal(t, conversation.MsgUnavailable, c.responses[0].Text)

	c = newCtx("")
	c.cb = &tele.Callback{Data: callbacks.Data(command.KeySelect, "x")}
	assert.Error(t, fx.bot.onButton(c))
	assert.True(t, c.responses[0].ShowAlert)
}

func TestStatsAndHelp(t *testing.T) {
	fx := newFixture(t)
	c := fx.run(t, "/stats")
	assert.Equal(t, "Пользователей: 3\nЗаписей в истории: 40\nЗа сегодня: 5", c.lastText(t))

	c = fx.run(t, "/help")
	assert.Equal(t, msgHelp, c.lastText(t))

	c = newCtx("абракадабра")
	require.NoError(t, fx.bot.UnknownText()(c))
	assert.Equal(t, msgUnknown, c.lastText(t))
}

func TestInlineQuery(t *testing.T) {
	fx := newFixture(t)
	c := newCtx("")
	c.query = &tele.Query{Text: "Фи"}
	require.NoError(t, fx.bot.onInlineQuery(c))
	require.NotNil(t, c.answer)
	assert.Len(t, c.answer.Results, 3)

	c.query = &tele.Query{Text: "Ф"}
	require.NoError(t, fx.bot.onInlineQuery(c))
	assert.Empty(t, c.answer.Results)
}

func TestTelegramRunOptions(t *testing.T) {
	fx := newFixture(t)
	opts, err := fx.bot.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, fx.bot.Registry(), opts.Registry)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, e := range []any{tele.OnText, tele.OnDocument, tele.OnCallback, tele.OnQuery, "/start", "/history", "/stats"} {
		assert.True(t, endpoints[e], e)
	}

	names := make([]string, 0, len(opts.Middlewares))
	for _, m := range opts.Middlewares {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "serialize_user")

	_, err = New(Deps{})
	assert.Error(t, err)
}
