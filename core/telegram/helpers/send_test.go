package helpers

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/telegram/sender"
)

type sent struct {
	what any
	opts []any
}

type fakeCtx struct {
	tele.Context

	mu      sync.Mutex
	store   map[string]any
	sent    []sent
	editErr error
	edits   int
}

func newFake() *fakeCtx {
	return &fakeCtx{store: map[string]any{}}
}

func (f *fakeCtx) Chat() *tele.Chat      { return &tele.Chat{ID: 42} }
func (f *fakeCtx) Sender() *tele.User    { return &tele.User{ID: 7} }
func (f *fakeCtx) Update() tele.Update   { return tele.Update{ID: 3} }
func (f *fakeCtx) Get(key string) any    { return f.store[key] }
func (f *fakeCtx) Set(key string, v any) { f.store[key] = v }

func (f *fakeCtx) Send(what any, opts ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{what: what, opts: opts})
	return nil
}

func (f *fakeCtx) Edit(any, ...any) error {
	f.edits++
	return f.editErr
}

func TestSendInlineWithoutDispatcher(t *testing.T) {
	SetDispatcher(nil)
	c := newFake()

	require.NoError(t, SendText(c, "plain"))
	require.NoError(t, SendMD(c, "*bold*", &tele.ReplyMarkup{}))
	require.Len(t, c.sent, 2)
	assert.Empty(t, c.sent[0].opts)

	opts, ok := c.sent[1].opts[0].(*tele.SendOptions)
	require.True(t, ok)
	assert.Equal(t, tele.ModeMarkdown, opts.ParseMode)
	assert.NotNil(t, opts.ReplyMarkup)
}

func TestSendThroughDispatcher(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1, PerSecond: 1000})
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })

	c := newFake()
	require.NoError(t, SendPhoto(c, "https://img.example/p.jpg", "caption"))
	d.Close()

	require.Len(t, c.sent, 1)
	photo, ok := c.sent[0].what.(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "caption", photo.Caption)
}

func TestSendFallsBackWhenQueueClosed(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	d.Close()
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })

	c := newFake()
	require.NoError(t, SendText(c, "still delivered"))
	assert.Len(t, c.sent, 1)
}

func TestEditOrSend(t *testing.T) {
	SetDispatcher(nil)

	c := newFake()
	require.NoError(t, EditOrSend(c, "page 2"))
	assert.Equal(t, 1, c.edits)
	assert.Empty(t, c.sent)

	c.editErr = tele.ErrSameMessageContent
	require.NoError(t, EditOrSend(c, "page 2"))
	assert.Empty(t, c.sent)

	c.editErr = errors.New("message can't be edited")
	require.NoError(t, EditOrSend(c, "page 2"))
	assert.Len(t, c.sent, 1)
}

func TestBuildContextIsCached(t *testing.T) {
	c := newFake()
	ctx := BuildContext(c)
	assert.Equal(t, int64(42), logger.ChatIDFrom(ctx))
	assert.Equal(t, ctx, BuildContext(c))

	ctx = WithHandler(c, "/start")
	assert.Equal(t, "/start", logger.MetaFrom(ctx).Handler)
	assert.Equal(t, "/start", logger.MetaFrom(BuildContext(c)).Handler)
}
