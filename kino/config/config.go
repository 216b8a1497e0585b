// Package config loads the movie bot configuration: the shared core sections plus
// storage, session and movie API settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/kinobot/core/config"
	coredatabase "github.com/m3rciful/kinobot/core/database"
	"github.com/m3rciful/kinobot/kino/kinopoisk"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// SessionConfig selects where conversations are kept.
type SessionConfig struct {
	Backend    string `yaml:"backend" envconfig:"SESSION_BACKEND"`
	TTLMinutes int    `yaml:"ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
	Prefix     string `yaml:"prefix" envconfig:"SESSION_PREFIX"`
	PerPage    int    `yaml:"per_page" envconfig:"SESSION_PER_PAGE"`
}

// TTL returns how long an untouched session survives in Redis.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config      `yaml:"database"`
	Redis     coredatabase.RedisConfig `yaml:"redis"`
	Kinopoisk kinopoisk.Config         `yaml:"kinopoisk"`
	Session   SessionConfig            `yaml:"session"`
}

// CoreConfig exposes the embedded core section to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, applies environment overrides and validates every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates sections and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Kinopoisk.Normalize(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	s := &c.Session
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	switch s.Backend {
	case "":
		s.Backend = SessionMemory
	case SessionMemory:
	case SessionRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			return fmt.Errorf("config: redis.url is required for the redis session backend (REDIS_URL)")
		}
	default:
		return fmt.Errorf("config: unknown session.backend %q", s.Backend)
	}
	if s.TTLMinutes < 0 || s.PerPage < 0 {
		return fmt.Errorf("config: session ttl_minutes and per_page must be >= 0")
	}
	if s.TTLMinutes == 0 {
		s.TTLMinutes = 24 * 60
	}
	return nil
}
