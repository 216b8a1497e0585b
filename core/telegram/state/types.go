package state

import (
	"context"
	"errors"
	"maps"

	"github.com/m3rciful/kinobot/core/paging"
)

// State identifies a finite-state-machine step used in conversations.
// Active states are spelled "<flow>.<field>".
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// ErrConflict is returned when a session update keeps losing concurrent races.
var ErrConflict = errors.New("state: session update conflict")

// Conversation is the dialog part of a session: the current step and the answers collected so far.
type Conversation struct {
	State State             `json:"state"`
	Flow  string            `json:"flow,omitempty"`
	Draft map[string]string `json:"draft,omitempty"`
}

// Active reports whether a flow is in progress.
func (c *Conversation) Active() bool {
	return c.State != "" && c.State != StateIdle
}

// Reset drops the flow and its draft.
func (c *Conversation) Reset() {
	c.State = StateIdle
	c.Flow = ""
	c.Draft = nil
}

// Session stores conversation state and the last result set browsed by a user.
type Session[T any] struct {
	Conversation
	Pages *paging.Paginator[T] `json:"pages,omitempty"`
}

// NewSession returns an idle session.
func NewSession[T any]() *Session[T] {
	return &Session[T]{Conversation: Conversation{State: StateIdle}}
}

// Clone returns a copy that shares no mutable state with s.
func (s *Session[T]) Clone() *Session[T] {
	cp := &Session[T]{
		Conversation: Conversation{
			State: s.State,
			Flow:  s.Flow,
			Draft: maps.Clone(s.Draft),
		},
		Pages: s.Pages.Clone(),
	}
	if cp.State == "" {
		cp.State = StateIdle
	}
	return cp
}

// Store persists sessions keyed by Telegram user id.
// Load never returns a nil session: unknown users get an idle one.
type Store[T any] interface {
	Load(ctx context.Context, userID int64) (*Session[T], error)
	Save(ctx context.Context, userID int64, sess *Session[T]) error
	// Update applies fn atomically. Nothing is written when fn returns an error.
	Update(ctx context.Context, userID int64, fn func(*Session[T]) error) error
	Clear(ctx context.Context, userID int64) error
}
