// Package conversation runs one user turn: it advances the active flow, fetches results when
// the flow completes and moves through the stored result list.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/metrics"
	"github.com/m3rciful/kinobot/core/paging"
	"github.com/m3rciful/kinobot/core/telegram/flow"
	"github.com/m3rciful/kinobot/core/telegram/state"
	"github.com/m3rciful/kinobot/kino/command"
	"github.com/m3rciful/kinobot/kino/flows"
	"github.com/m3rciful/kinobot/kino/movie"
	"github.com/m3rciful/kinobot/kino/validate"
)

// DefaultPerPage matches the selection keyboard layout.
const DefaultPerPage = 6

// ErrFetchTimeout is returned when the fetch does not finish within the configured timeout.
var ErrFetchTimeout = errors.New("conversation: fetch timed out")

// Recorder stores movies shown to a user.
type Recorder interface {
	Record(ctx context.Context, telegramID int64, username string, movies []movie.Movie) error
}

// User identifies who is talking.
type User struct {
	ID       int64
	Username string
}

// Options wires a Service.
type Options struct {
	Store    state.Store[movie.Movie]
	Machine  *flow.Machine
	Fetcher  Fetcher
	Recorder Recorder
	Timeout  time.Duration
	PerPage  int
}

// Service is safe for concurrent use; turns of one user must be serialized by the caller.
type Service struct {
	store    state.Store[movie.Movie]
	machine  *flow.Machine
	fetcher  Fetcher
	recorder Recorder
	timeout  time.Duration
	perPage  int
}

// New validates options and fills defaults.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Machine == nil || opts.Fetcher == nil {
		return nil, fmt.Errorf("conversation: store, machine and fetcher are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	return &Service{
		store:    opts.Store,
		machine:  opts.Machine,
		fetcher:  opts.Fetcher,
		recorder: opts.Recorder,
		timeout:  opts.Timeout,
		perPage:  opts.PerPage,
	}, nil
}

// Start begins flow name for the user and returns its first prompt.
func (s *Service) Start(ctx context.Context, user User, name string) (Reply, error) {
	var out flow.Outcome
	err := s.store.Update(ctx, user.ID, func(sess *state.Session[movie.Movie]) error {
		var err error
		out, err = s.machine.Start(ctx, &sess.Conversation, name)
		return err
	})
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: start %s: %w", name, err)
	}
	return Reply{Text: out.Prompt, Keyboard: Keyboard(out.Keyboard)}, nil
}

// Handle feeds text into the active flow. It returns flow.ErrNotActive when there is none.
// On a failed fetch the returned Reply is still meant for the user and err says what went wrong.
func (s *Service) Handle(ctx context.Context, user User, text string) (Reply, error) {
	var (
		out    flow.Outcome
		advErr error
	)
	err := s.store.Update(ctx, user.ID, func(sess *state.Session[movie.Movie]) error {
		out, advErr = s.machine.Advance(ctx, &sess.Conversation, text)
		if errors.Is(advErr, flow.ErrNotActive) {
			return advErr
		}
		if out.Reset || out.Done {
			sess.Pages = nil
		}
		return nil
	})
	if errors.Is(err, flow.ErrNotActive) {
		return Reply{}, err
	}
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: advance: %w", err)
	}

	switch {
	case advErr == nil:
	case errors.Is(advErr, flow.ErrUnrecognizedChoice):
		return Reply{Text: flows.ChoiceHint, Keyboard: flows.KeyboardYesNo}, nil
	default:
		var verr *validate.Error
		if errors.As(advErr, &verr) {
			logger.LogEvent(ctx, logger.SVCSessions, slog.LevelDebug, "flow.rejected",
				slog.String("status", "ok"),
				slog.String("flow", out.Flow),
				slog.String("err_code", verr.Code()),
			)
			return Reply{Text: verr.Message}, nil
		}
		// The session was reset because its state no longer exists.
		logger.LogEvent(ctx, logger.SVCSessions, slog.LevelWarn, "flow.stale",
			slog.String("status", "fail"),
			slog.String("err", advErr.Error()),
		)
		return Reply{Text: MsgMenu, Keyboard: KeyboardMain}, nil
	}

	switch {
	case out.Reset:
		return Reply{Text: MsgCancelled, Keyboard: KeyboardMain}, nil
	case out.Done:
		return s.complete(ctx, user, out)
	}
	return Reply{Text: out.Prompt, Keyboard: Keyboard(out.Keyboard)}, nil
}

func (s *Service) complete(ctx context.Context, user User, out flow.Outcome) (Reply, error) {
	ctx = logger.WithFlow(ctx, out.Flow)
	start := time.Now()
	failed := Reply{Text: MsgFailed, Keyboard: KeyboardMain}

	q, err := QueryFromDraft(user.ID, out.Flow, out.Draft)
	if err != nil {
		metrics.RecordFlow(out.Flow, "fail")
		return failed, err
	}

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	movies, err := s.fetcher.Fetch(fctx, q)
	timedOut := errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	attrs := []slog.Attr{
		slog.String("flow", out.Flow),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		outcome := "fail"
		if timedOut {
			outcome = "timeout"
			err = fmt.Errorf("%w after %s: %w", ErrFetchTimeout, s.timeout, err)
		} else {
			err = fmt.Errorf("conversation: fetch %s: %w", out.Flow, err)
		}
		metrics.RecordFlow(out.Flow, outcome)
		logger.LogEvent(ctx, logger.SVCSessions, slog.LevelWarn, "flow.fetch",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return failed, err
	}

	if len(movies) == 0 {
		metrics.RecordFlow(out.Flow, "empty")
		logger.LogEvent(ctx, logger.SVCSessions, slog.LevelInfo, "flow.fetch",
			append(attrs, slog.String("status", "ok"), slog.Int("movies", 0))...)
		return Reply{Text: MsgNotFound, Keyboard: KeyboardMain}, nil
	}

	pages, err := paging.New(movies, s.perPage)
	if err != nil {
		return failed, err
	}
	err = s.store.Update(ctx, user.ID, func(sess *state.Session[movie.Movie]) error {
		sess.Pages = pages
		return nil
	})
	if err != nil {
		metrics.RecordFlow(out.Flow, "fail")
		return failed, fmt.Errorf("conversation: save results: %w", err)
	}

	if out.Flow != flows.History && s.recorder != nil {
		if err := s.recorder.Record(ctx, user.ID, user.Username, movies); err != nil {
			logger.LogEvent(ctx, logger.SVCHistory, slog.LevelWarn, "history.record",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}

	metrics.RecordFlow(out.Flow, "ok")
	logger.LogEvent(ctx, logger.SVCSessions, slog.LevelInfo, "flow.fetch",
		append(attrs, slog.String("status", "ok"), slog.Int("movies", len(movies)))...)
	return Reply{Page: viewOf(pages)}, nil
}

// Cancel drops the flow and the result list.
func (s *Service) Cancel(ctx context.Context, userID int64) (Reply, error) {
	var had bool
	err := s.store.Update(ctx, userID, func(sess *state.Session[movie.Movie]) error {
		had = sess.Active() || sess.Pages != nil
		sess.Reset()
		sess.Pages = nil
		return nil
	})
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: cancel: %w", err)
	}
	if !had {
		return Reply{Text: MsgNothingToDo, Keyboard: KeyboardMain}, nil
	}
	return Reply{Text: MsgCancelled, Keyboard: KeyboardMain}, nil
}

// Home drops the flow and the result list and shows the menu.
func (s *Service) Home(ctx context.Context, userID int64) (Reply, error) {
	if err := s.store.Clear(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("conversation: home: %w", err)
	}
	return Reply{Text: MsgMenu, Keyboard: KeyboardMain}, nil
}

// Execute applies a decoded inline button command.
func (s *Service) Execute(ctx context.Context, user User, cmd command.Command) (Reply, error) {
	switch c := cmd.(type) {
	case command.Navigate:
		return s.navigate(ctx, user.ID, c.Direction)
	case command.Select:
		return s.selectMovie(ctx, user.ID, c.Index)
	case command.Home:
		return s.Home(ctx, user.ID)
	}
	return Reply{}, fmt.Errorf("conversation: unsupported command %T", cmd)
}

func (s *Service) navigate(ctx context.Context, userID int64, dir command.Direction) (Reply, error) {
	var reply Reply
	err := s.store.Update(ctx, userID, func(sess *state.Session[movie.Movie]) error {
		if sess.Pages == nil {
			reply = Reply{Text: MsgUnavailable, Alert: true}
			return nil
		}
		var err error
		if dir == command.Previous {
			err = sess.Pages.Previous()
		} else {
			err = sess.Pages.Next()
		}
		switch {
		case errors.Is(err, paging.ErrNoNextPage):
			reply = Reply{Text: MsgNoNext, Alert: true}
		case errors.Is(err, paging.ErrNoPreviousPage):
			reply = Reply{Text: MsgNoPrevious, Alert: true}
		default:
			reply = Reply{Page: viewOf(sess.Pages), Edit: true}
		}
		return nil
	})
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: navigate: %w", err)
	}
	return reply, nil
}

func (s *Service) selectMovie(ctx context.Context, userID int64, index int) (Reply, error) {
	sess, err := s.store.Load(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: select: %w", err)
	}
	if sess.Pages == nil {
		return Reply{Text: MsgUnavailable, Alert: true}, nil
	}
	m, err := sess.Pages.At(index)
	if err != nil {
		return Reply{Text: MsgBadSelect, Alert: true}, nil
	}
	return Reply{Text: "Вы выбрали фильм " + m.Name, Movie: &m}, nil
}
