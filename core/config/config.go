// Package config holds the configuration sections shared by every bot built on
// the core: Telegram transport, logging, rate limiting, metrics and sending.
// Values come from a YAML file with environment variables layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

// TelegramConfig holds Telegram bot related settings that are common for all bots.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds of 0 selects the poller default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	// SecretToken is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// Rotation of BotFile; zero values keep the rotation defaults.
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
	// Profile is the deployment profile: dev, debug or prod.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig throttles incoming updates per user. ExcludeUpdates lists
// update kinds that bypass the limiter.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// MetricsConfig controls the Prometheus listener. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// SenderConfig tunes the outbound message dispatcher. Zero values fall back to defaults.
type SenderConfig struct {
	Workers   int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	QueueSize int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	// PerSecond caps outbound calls across all chats.
	PerSecond  int `yaml:"per_second" envconfig:"SENDER_PER_SECOND"`
	MaxRetries int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Sender    SenderConfig    `yaml:"sender"`
}

// Decode fills dst from a YAML file and then overlays environment variables.
// Bots embedding Config use it to load their own sections in one pass.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parse YAML: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config: process env: %w", err)
	}
	return nil
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults. Every invalid field is reported.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	return errors.Join(
		cfg.normalizeTransport(),
		cfg.RateLimit.normalize(),
		cfg.Sender.validate(),
		cfg.Metrics.normalize(),
	)
}

func (cfg *Config) normalizeTransport() error {
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("config: telegram token is required (BOT_TOKEN)"))
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		mode = RunModeLongpoll
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			errs = append(errs, errors.New("config: telegram.longpoll_timeout_seconds must be >= 0"))
		}
	case RunModeWebhook:
		errs = append(errs, cfg.Webhook.validate())
	default:
		errs = append(errs, fmt.Errorf("config: invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode))
	}
	cfg.Telegram.RunMode = mode
	return errors.Join(errs...)
}

func (w WebhookConfig) validate() error {
	var errs []error
	if strings.TrimSpace(w.URL) == "" {
		errs = append(errs, errors.New("config: webhook.url is required in webhook mode"))
	}
	if strings.TrimSpace(w.Listen) == "" {
		errs = append(errs, errors.New("config: webhook.listen is required in webhook mode"))
	}
	if w.Port <= 0 {
		errs = append(errs, errors.New("config: webhook.port must be > 0 in webhook mode"))
	}
	return errors.Join(errs...)
}

func (r *RateLimitConfig) normalize() error {
	var errs []error
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch {
		case kind == "":
		case slices.Contains(updateKinds, kind):
			kinds = append(kinds, kind)
		default:
			errs = append(errs, fmt.Errorf("config: invalid rate_limit.exclude_updates value %q; allowed: %s",
				v, strings.Join(updateKinds, ", ")))
		}
	}
	r.ExcludeUpdates = kinds
	if r.IntervalMS < 0 {
		errs = append(errs, errors.New("config: rate_limit.interval_ms must be >= 0"))
	}
	if r.Burst < 0 {
		errs = append(errs, errors.New("config: rate_limit.burst must be >= 0"))
	}
	return errors.Join(errs...)
}

func (s SenderConfig) validate() error {
	if s.Workers < 0 || s.QueueSize < 0 || s.PerSecond < 0 || s.MaxRetries < 0 {
		return errors.New("config: sender values must be >= 0")
	}
	return nil
}

func (m *MetricsConfig) normalize() error {
	m.Listen = strings.TrimSpace(m.Listen)
	return nil
}
