package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesEnvOverlay(t *testing.T) {
	path := writeFile(t, `
telegram:
  token: from-file
  run_mode: polling
rate_limit:
  interval_ms: 500
  exclude_updates: [" Callback "]
metrics:
  listen: " :9090 "
`)
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestNormalizeErrors(t *testing.T) {
	cases := map[string]Config{
		"missing token": {},
		"bad run mode":  {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"webhook without url": {
			Telegram: TelegramConfig{Token: "t", RunMode: RunModeWebhook},
		},
		"bad exclude": {
			Telegram:  TelegramConfig{Token: "t"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}},
		},
		"negative interval": {
			Telegram:  TelegramConfig{Token: "t"},
			RateLimit: RateLimitConfig{IntervalMS: -1},
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, Normalize(&cfg))
		})
	}
	require.Error(t, Normalize(nil))
}

func TestNormalizeWebhook(t *testing.T) {
	cfg := Config{
		Telegram: TelegramConfig{Token: "t", RunMode: "WEBHOOK"},
		Webhook:  WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443},
	}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)
}

func TestDecodeMissingFile(t *testing.T) {
	var cfg Config
	err := Decode(filepath.Join(t.TempDir(), "absent.yaml"), &cfg)
	require.Error(t, err)
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	cfg := Config{
		Telegram:  TelegramConfig{RunMode: RunModeWebhook},
		RateLimit: RateLimitConfig{Burst: -1, ExcludeUpdates: []string{"poll"}},
		Sender:    SenderConfig{MaxRetries: -1},
	}
	err := Normalize(&cfg)
	require.Error(t, err)
	for _, want := range []string{"BOT_TOKEN", "webhook.url", "webhook.port", "exclude_updates", "burst", "sender"} {
		assert.ErrorContains(t, err, want)
	}
}
