package conversation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/m3rciful/kinobot/core/telegram/flow"
	"github.com/m3rciful/kinobot/kino/flows"
	"github.com/m3rciful/kinobot/kino/kinopoisk"
	"github.com/m3rciful/kinobot/kino/movie"
)

// Query is a completed draft in typed form.
type Query struct {
	UserID int64
	Flow   string
	Name   string
	Genre  string
	Rating string
	Budget string
	Count  int
	Date   time.Time
}

// QueryFromDraft converts the validated answers of a finished flow.
func QueryFromDraft(userID int64, name string, d flow.Draft) (Query, error) {
	q := Query{
		UserID: userID,
		Flow:   name,
		Name:   d[flows.FieldName],
		Genre:  d[flows.FieldGenre],
		Rating: d[flows.FieldRating],
		Budget: d[flows.FieldBudget],
	}
	if name == flows.History {
		day, err := time.ParseInLocation(flows.DateLayout, d[flows.FieldDate], time.Local)
		if err != nil {
			return Query{}, fmt.Errorf("conversation: bad date in draft: %w", err)
		}
		q.Date = day
		return q, nil
	}
	n, err := strconv.Atoi(d[flows.FieldCount])
	if err != nil {
		return Query{}, fmt.Errorf("conversation: bad count in draft: %w", err)
	}
	q.Count = n
	return q, nil
}

// Fetcher resolves a query into movies.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]movie.Movie, error)
}

// MovieSource is the movie API.
type MovieSource interface {
	Search(ctx context.Context, name string, limit int) ([]movie.Movie, error)
	Discover(ctx context.Context, f kinopoisk.Filter, limit int) ([]movie.Movie, error)
}

// HistorySource reads previously shown movies.
type HistorySource interface {
	ByDate(ctx context.Context, telegramID int64, day time.Time) ([]movie.Movie, error)
}

// Router sends each flow to the source that can answer it.
type Router struct {
	Movies  MovieSource
	History HistorySource
}

// Fetch implements Fetcher.
func (r Router) Fetch(ctx context.Context, q Query) ([]movie.Movie, error) {
	switch q.Flow {
	case flows.Search:
		return r.Movies.Search(ctx, q.Name, q.Count)
	case flows.Genre, flows.Rating, flows.LowBudget, flows.HighBudget:
		return r.Movies.Discover(ctx, kinopoisk.Filter{
			Rating: q.Rating,
			Genre:  q.Genre,
			Budget: q.Budget,
		}, q.Count)
	case flows.History:
		return r.History.ByDate(ctx, q.UserID, q.Date)
	}
	return nil, fmt.Errorf("conversation: no source for flow %q", q.Flow)
}
