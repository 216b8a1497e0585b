package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	tgsender "github.com/m3rciful/kinobot/core/telegram/sender"
)

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{})
	lp, ok := p.(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, defaultLongPollTimeout, lp.Timeout)
	assert.Contains(t, lp.AllowedUpdates, "inline_query")

	p = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 25})
	assert.Equal(t, 25*time.Second, p.(*tele.LongPoller).Timeout)

	p = BuildPoller(PollerOptions{
		RunMode: " Webhook ",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook", SecretToken: "s3cret"},
	})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example.com/hook", wh.Endpoint.PublicURL)
	assert.Equal(t, "s3cret", wh.SecretToken)
}

func TestDispatcherOptionsFromConfig(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Sender.Workers = 2
	cfg.Sender.PerSecond = 20

	o := dispatcherOptions(cfg, tgsender.Options{Workers: 8})
	assert.Equal(t, 8, o.Workers)
	assert.Equal(t, 20, o.PerSecond)
	assert.Zero(t, o.QueueSize)
}

func TestClientOptionsCoverLongPoll(t *testing.T) {
	opts := clientOptions(&tele.LongPoller{Timeout: 30 * time.Second})
	assert.Greater(t, opts.ResponseTimeout, 30*time.Second)
	assert.Greater(t, opts.Timeout, opts.ResponseTimeout)

	assert.Zero(t, clientOptions(&tele.Webhook{}))
}
