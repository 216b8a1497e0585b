// Package history stores the movies shown to each user, grouped by day.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/kino/movie"
)

// DayLayout is the storage form of History.created_on.
const DayLayout = "2006-01-02"

// Stats summarizes the store for the admin command.
type Stats struct {
	Users   int `db:"users"`
	Entries int `db:"entries"`
	Today   int `db:"today"`
}

// Repository persists users and their search history with sqlx.
// Queries are written with ? placeholders and rebound for the driver in use.
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository wraps an open database handle.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// EnsureUser registers the Telegram user or refreshes the stored username and returns the row id.
func (r *Repository) EnsureUser(ctx context.Context, telegramID int64, username string) (int64, error) {
	return ensureUser(ctx, r.db, telegramID, username)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func ensureUser(ctx context.Context, q queryer, telegramID int64, username string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, q.Rebind(
		`INSERT INTO users (telegram_id, username) VALUES (?, ?)
		 ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username
		 RETURNING id`), telegramID, username)
	if err != nil {
		return 0, fmt.Errorf("history: ensure user: %w", err)
	}
	return id, nil
}

// Record saves movies as seen today by the user in one transaction.
func (r *Repository) Record(ctx context.Context, telegramID int64, username string, movies []movie.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	userID, err := ensureUser(ctx, tx, telegramID, username)
	if err != nil {
		return err
	}

	day := r.now().Format(DayLayout)
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(
		`INSERT INTO history (user_id, created_on, name, description, rating, year, genres, age_rating, poster_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("history: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range movies {
		if _, err := stmt.ExecContext(ctx, userID, day,
			m.Name, m.Description, m.Rating, m.Year, m.Genres, m.AgeRating, m.PosterURL); err != nil {
			return fmt.Errorf("history: insert %q: %w", m.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}

	logger.LogEvent(ctx, logger.SVCHistory, slog.LevelDebug, "history.record",
		slog.String("status", "ok"),
		slog.Int("movies", len(movies)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// ByDate returns the movies recorded for the user on day, oldest first.
func (r *Repository) ByDate(ctx context.Context, telegramID int64, day time.Time) ([]movie.Movie, error) {
	var out []movie.Movie
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(
		`SELECT h.name, h.description, h.rating, h.year, h.genres, h.age_rating, h.poster_url
		   FROM history h
		   JOIN users u ON u.id = h.user_id
		  WHERE u.telegram_id = ? AND h.created_on = ?
		  ORDER BY h.id`), telegramID, day.Format(DayLayout))
	if err != nil {
		return nil, fmt.Errorf("history: by date: %w", err)
	}
	return out, nil
}

// Stats counts users and history rows.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.GetContext(ctx, &s, r.db.Rebind(
		`SELECT (SELECT COUNT(*) FROM users) AS users,
		        (SELECT COUNT(*) FROM history) AS entries,
		        (SELECT COUNT(*) FROM history WHERE created_on = ?) AS today`),
		r.now().Format(DayLayout))
	if err != nil {
		return Stats{}, fmt.Errorf("history: stats: %w", err)
	}
	return s, nil
}
