package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/kinobot/core/logger"
)

const (
	defaultKeyPrefix     = "session:"
	defaultSessionTTL    = 24 * time.Hour
	defaultUpdateRetries = 5
)

// RedisOptions configures RedisStore.
type RedisOptions struct {
	Prefix  string
	TTL     time.Duration
	Retries int
}

// RedisStore keeps sessions as JSON values with a sliding TTL.
type RedisStore[T any] struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	retries int
}

// NewRedisStore wraps a go-redis client.
func NewRedisStore[T any](client redis.UniversalClient, opts RedisOptions) *RedisStore[T] {
	s := &RedisStore[T]{
		client:  client,
		prefix:  opts.Prefix,
		ttl:     opts.TTL,
		retries: opts.Retries,
	}
	if s.prefix == "" {
		s.prefix = defaultKeyPrefix
	}
	if s.ttl <= 0 {
		s.ttl = defaultSessionTTL
	}
	if s.retries <= 0 {
		s.retries = defaultUpdateRetries
	}
	return s
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore[T]) key(userID int64) string {
	return fmt.Sprintf("%s%d", s.prefix, userID)
}

// Load returns the stored session or a fresh idle one.
func (s *RedisStore[T]) Load(ctx context.Context, userID int64) (*Session[T], error) {
	return s.read(ctx, s.client, s.key(userID))
}

// Save overwrites the session and refreshes its TTL.
func (s *RedisStore[T]) Save(ctx context.Context, userID int64, sess *Session[T]) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("state: save session: %w", err)
	}
	return nil
}

// Update runs fn inside a WATCH/MULTI transaction, retrying when the key changes underneath.
func (s *RedisStore[T]) Update(ctx context.Context, userID int64, fn func(*Session[T]) error) error {
	key := s.key(userID)
	txf := func(tx *redis.Tx) error {
		sess, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("state: encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= s.retries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		logger.Debug(ctx, "state", "session.update",
			slog.String("status", "retry"),
			slog.Int64("user_id", userID),
			slog.Int("attempts", attempt),
		)
	}
	logger.Warn(ctx, "state", "session.update",
		slog.String("status", "fail"),
		slog.Int64("user_id", userID),
		slog.Int("attempts", s.retries),
	)
	return ErrConflict
}

// Clear deletes the session key.
func (s *RedisStore[T]) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("state: clear session: %w", err)
	}
	return nil
}

func (s *RedisStore[T]) read(ctx context.Context, g stringGetter, key string) (*Session[T], error) {
	data, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSession[T](), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: load session: %w", err)
	}
	sess := NewSession[T]()
	if err := json.Unmarshal(data, sess); err != nil {
		// A stale or foreign payload must not wedge the user; start over.
		logger.Warn(ctx, "state", "session.decode",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return NewSession[T](), nil
	}
	if sess.State == "" {
		sess.State = StateIdle
	}
	return sess, nil
}
