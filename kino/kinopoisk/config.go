package kinopoisk

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public kinopoisk.dev endpoint.
const DefaultBaseURL = "https://api.kinopoisk.dev/"

// Config controls the API client.
type Config struct {
	BaseURL string `yaml:"base_url" envconfig:"KINOPOISK_BASE_URL"`
	APIKey  string `yaml:"api_key" envconfig:"KINOPOISK_API_KEY"`
	// TimeoutMS bounds a whole fetch, retries included.
	TimeoutMS int `yaml:"timeout_ms" envconfig:"KINOPOISK_TIMEOUT_MS"`
	// RPS caps outgoing requests per second; Burst allows short spikes.
	RPS   float64 `yaml:"rps" envconfig:"KINOPOISK_RPS"`
	Burst int     `yaml:"burst" envconfig:"KINOPOISK_BURST"`

	CacheSize       int `yaml:"cache_size" envconfig:"KINOPOISK_CACHE_SIZE"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" envconfig:"KINOPOISK_CACHE_TTL_SECONDS"`
}

// Normalize fills defaults and validates the API settings.
func (c *Config) Normalize() error {
	if c == nil {
		return fmt.Errorf("kinopoisk: nil config")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("kinopoisk: api key is required (KINOPOISK_API_KEY)")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("kinopoisk: invalid base_url %q", c.BaseURL)
	}
	if !strings.HasSuffix(c.BaseURL, "/") {
		c.BaseURL += "/"
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 15000
	}
	if c.RPS <= 0 {
		c.RPS = 5
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.CacheSize < 0 || c.CacheTTLSeconds < 0 {
		return fmt.Errorf("kinopoisk: cache settings must be >= 0")
	}
	if c.CacheSize == 0 {
		c.CacheSize = 512
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 600
	}
	return nil
}

// Timeout returns the fetch deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// CacheTTL returns how long a response stays cached.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
