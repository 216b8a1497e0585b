package telegram

import (
	"net"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/kinobot/core/config"
)

const defaultLongPollTimeout = 10 * time.Second

// allowedUpdates are the update kinds routed by the core; Telegram drops the rest.
var allowedUpdates = []string{"message", "callback_query", "inline_query"}

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Listen      string
	Port        int
	URL         string
	SecretToken string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns a webhook listener for the webhook run mode and a long poller otherwise.
func BuildPoller(opts PollerOptions) tele.Poller {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(opts.Webhook.Listen, strconv.Itoa(opts.Webhook.Port)),
			SecretToken:    opts.Webhook.SecretToken,
			AllowedUpdates: allowedUpdates,
			Endpoint:       &tele.WebhookEndpoint{PublicURL: opts.Webhook.URL},
		}
	}

	timeout := time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultLongPollTimeout
	}
	return &tele.LongPoller{Timeout: timeout, AllowedUpdates: allowedUpdates}
}
