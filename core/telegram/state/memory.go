package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m3rciful/kinobot/core/logger"
)

// MemoryStore keeps sessions in process memory. Suitable for tests and single-instance deployments.
type MemoryStore[T any] struct {
	mu       sync.Mutex
	sessions map[int64]*Session[T]
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{sessions: make(map[int64]*Session[T])}
}

// Load returns a copy of the stored session or a fresh idle one.
func (m *MemoryStore[T]) Load(_ context.Context, userID int64) (*Session[T], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(userID), nil
}

// Save replaces the stored session with a copy of sess.
func (m *MemoryStore[T]) Save(_ context.Context, userID int64, sess *Session[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = sess.Clone()
	return nil
}

// Update runs fn on a copy while holding the store lock and commits it on success.
func (m *MemoryStore[T]) Update(ctx context.Context, userID int64, fn func(*Session[T]) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.get(userID)
	if err := fn(sess); err != nil {
		return err
	}
	m.sessions[userID] = sess
	logger.Debug(ctx, "state", "session.update",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(sess.State)),
	)
	return nil
}

// Clear removes the session for a user.
func (m *MemoryStore[T]) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *MemoryStore[T]) get(userID int64) *Session[T] {
	if sess, ok := m.sessions[userID]; ok {
		return sess.Clone()
	}
	return NewSession[T]()
}
