package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func fastOptions() Options {
	return Options{Workers: 3, QueueSize: 32, PerSecond: 1000, RetryBackoff: time.Millisecond}
}

func TestDispatcherKeepsChatOrder(t *testing.T) {
	d := NewDispatcher(fastOptions())

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 10; i++ {
		for _, chat := range []int64{1, 2, -3} {
			chat, i := chat, i
			err := d.Enqueue(context.Background(), Job{Chat: chat, Action: "send.text", Run: func() error {
				mu.Lock()
				defer mu.Unlock()
				got[chat] = append(got[chat], i)
				return nil
			}})
			require.NoError(t, err)
		}
	}
	d.Close()

	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	for _, chat := range []int64{1, 2, -3} {
		assert.Equal(t, want, got[chat], "chat %d", chat)
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 2
	d := NewDispatcher(opts)

	var calls int
	require.NoError(t, d.Enqueue(context.Background(), Job{Chat: 7, Action: "send.text", Run: func() error {
		calls++
		if calls < 3 {
			return timeoutErr{}
		}
		return nil
	}}))

	var permanent int
	require.NoError(t, d.Enqueue(context.Background(), Job{Chat: 7, Action: "send.text", Run: func() error {
		permanent++
		return errors.New("chat not found")
	}}))
	d.Close()

	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, permanent)
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(fastOptions())
	d.Close()
	d.Close()

	err := d.Enqueue(context.Background(), Job{Run: func() error { return nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, d.Enqueue(context.Background(), Job{}))
}

func TestDispatcherQueueFull(t *testing.T) {
	opts := fastOptions()
	opts.Workers = 1
	opts.QueueSize = 1
	d := NewDispatcher(opts)

	release := make(chan struct{})
	started := make(chan struct{})
	block := func() error {
		close(started)
		<-release
		return nil
	}
	require.NoError(t, d.Enqueue(context.Background(), Job{Run: block}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), Job{Run: func() error { return nil }}))
	assert.ErrorIs(t, d.Enqueue(context.Background(), Job{Run: func() error { return nil }}), ErrQueueFull)

	close(release)
	d.Close()
}

func TestBackoff(t *testing.T) {
	delay, ok := backoff(tele.FloodError{RetryAfter: 3}, time.Second, 1)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, delay)

	delay, ok = backoff(tele.FloodError{RetryAfter: 600}, time.Second, 1)
	assert.True(t, ok)
	assert.Equal(t, maxFloodWait, delay)

	delay, ok = backoff(timeoutErr{}, time.Second, 2)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)

	_, ok = backoff(errors.New("bad request"), time.Second, 1)
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"":        nil,
		"timeout": fmt.Errorf("send: %w", context.DeadlineExceeded),
		"flood":   tele.FloodError{RetryAfter: 1},
		"dns":     &net.DNSError{Err: "no such host", Name: "api.telegram.org"},
		"dial":    &net.OpError{Op: "dial", Err: errors.New("refused")},
		"unknown": errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Classify(err), "%v", err)
	}
	assert.Equal(t, "timeout", Classify(timeoutErr{}))
}

func TestSanitize(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_cc/sendMessage": EOF`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF`, Sanitize(err))
	assert.Empty(t, Sanitize(nil))
}
