package middleware

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type fakeCtx struct {
	tele.Context
	user  *tele.User
	upd   tele.Update
	store map[string]any
	sent  int
}

func newCtx(userID int64) *fakeCtx {
	return &fakeCtx{
		user:  &tele.User{ID: userID},
		upd:   tele.Update{ID: 1, Message: &tele.Message{Text: "hi"}},
		store: map[string]any{},
	}
}

func (f *fakeCtx) Sender() *tele.User      { return f.user }
func (f *fakeCtx) Chat() *tele.Chat        { return &tele.Chat{ID: f.user.ID, Type: tele.ChatPrivate} }
func (f *fakeCtx) Update() tele.Update     { return f.upd }
func (f *fakeCtx) Text() string            { return "hi" }
func (f *fakeCtx) Get(key string) any      { return f.store[key] }
func (f *fakeCtx) Set(key string, val any) { f.store[key] = val }

func (f *fakeCtx) Send(any, ...any) error {
	f.sent++
	return nil
}

func ok(tele.Context) error { return nil }

func TestAdminOnly(t *testing.T) {
	var rejected int
	mw := AdminOnlyMiddleware(AdminOptions{AdminID: 1, OnReject: func(tele.Context) error {
		rejected++
		return nil
	}})
	var passed int
	h := mw(func(tele.Context) error {
		passed++
		return nil
	})

	require.NoError(t, h(newCtx(1)))
	require.NoError(t, h(newCtx(2)))
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, rejected)

	none := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error {
		t.Fatal("handler must not run without an admin")
		return nil
	})
	require.NoError(t, none(newCtx(0)))
}

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newCtx(1))

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.Equal(t, "PANIC", pe.Code())
	assert.NotEmpty(t, pe.Stack)

	assert.NoError(t, RecoverMiddleware(ok)(newCtx(1)))
}

func TestRateLimit(t *testing.T) {
	var limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Burst:     2,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	var passed int
	h := mw(func(tele.Context) error {
		passed++
		return nil
	})

	for range 3 {
		require.NoError(t, h(newCtx(7)))
	}
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, limited)

	require.NoError(t, h(newCtx(8)))
	assert.Equal(t, 3, passed)

	cb := newCtx(7)
	cb.upd = tele.Update{ID: 2, Callback: &tele.Callback{Data: "x"}}
	require.NoError(t, h(cb))
	assert.Equal(t, 4, passed)
}

func TestRateLimitDisabled(t *testing.T) {
	var passed int
	h := RateLimitMiddleware(RateLimitOptions{})(func(tele.Context) error {
		passed++
		return nil
	})
	for range 5 {
		require.NoError(t, h(newCtx(7)))
	}
	assert.Equal(t, 5, passed)
}

type countingLocker struct {
	mu    sync.Mutex
	locks map[int64]int
}

func (l *countingLocker) Lock(id int64) func() {
	l.mu.Lock()
	l.locks[id]++
	l.mu.Unlock()
	return func() {}
}

func TestSerializeUser(t *testing.T) {
	locker := &countingLocker{locks: map[int64]int{}}
	h := SerializeUser(locker)(ok)
	require.NoError(t, h(newCtx(3)))
	require.NoError(t, h(newCtx(3)))
	assert.Equal(t, 2, locker.locks[3])

	assert.NoError(t, SerializeUser(nil)(ok)(newCtx(3)))
}

func TestMessageMetricsCountsReplies(t *testing.T) {
	c := newCtx(5)
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		if err := c.Send("one"); err != nil {
			return err
		}
		return c.Send("two", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
	})
	require.NoError(t, h(c))

	msgs, kb := GetCounters(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
	assert.Equal(t, 2, c.sent)
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", UpdateKind(tele.Update{Callback: &tele.Callback{}}))
	assert.Equal(t, "message", UpdateKind(tele.Update{Message: &tele.Message{}}))
	assert.Equal(t, "inline_query", UpdateKind(tele.Update{Query: &tele.Query{}}))
	assert.Equal(t, "other", UpdateKind(tele.Update{}))
}
