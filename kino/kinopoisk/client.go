// Package kinopoisk is a small client for the kinopoisk.dev movie API.
package kinopoisk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/metrics"
	"github.com/m3rciful/kinobot/core/netutil"
	"github.com/m3rciful/kinobot/kino/movie"
)

const (
	endpointSearch = "v1.4/movie/search"
	endpointMovie  = "v1.4/movie"

	maxBody = 4 << 20
)

// ErrUnauthorized is returned when the API rejects the key.
var ErrUnauthorized = errors.New("kinopoisk: unauthorized")

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kinopoisk: %s: unexpected status %d", e.Endpoint, e.Status)
}

// Code is used by handler summaries as err_code.
func (e *StatusError) Code() string {
	return "kinopoisk_http_" + strconv.Itoa(e.Status)
}

// Filter narrows discovery queries. Empty fields are not sent.
type Filter struct {
	// Rating is an IMDb value or range such as "7" or "7.2-8".
	Rating string
	Genre  string
	// Budget is a "min-max" range in dollars.
	Budget string
}

func (f Filter) apply(q url.Values) {
	if f.Rating != "" {
		q.Set("rating.imdb", f.Rating)
	}
	if f.Genre != "" {
		q.Set("genres.name", f.Genre)
	}
	if f.Budget != "" {
		q.Set("budget.value", f.Budget)
	}
}

type cached struct {
	movies []movie.Movie
	pages  int
}

// Client queries kinopoisk.dev with throttling and a response cache.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cache   *expirable.LRU[string, cached]
	intn    func(n int) int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default retrying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRand replaces the random page picker; intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(c *Client) {
		if intn != nil {
			c.intn = intn
		}
	}
}

// New builds a client from a normalized config.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg: cfg,
		http: netutil.BuildHTTPClient(netutil.ClientOptions{
			Timeout:     cfg.Timeout(),
			Retries:     2,
			Backoff:     500 * time.Millisecond,
			RetryStatus: true,
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cache:   expirable.NewLRU[string, cached](cfg.CacheSize, nil, cfg.CacheTTL()),
		intn:    rand.IntN,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Timeout returns the configured fetch deadline.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout()
}

// Search looks movies up by title.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]movie.Movie, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("query", name)
	res, err := c.get(ctx, endpointSearch, q)
	if err != nil {
		return nil, err
	}
	return res.movies, nil
}

// Discover lists movies matching f. The first request learns how many pages exist;
// the result is then taken from a random page so repeated queries vary.
func (c *Client) Discover(ctx context.Context, f Filter, limit int) ([]movie.Movie, error) {
	q := url.Values{}
	q.Set("page", "1")
	q.Set("limit", strconv.Itoa(limit))
	f.apply(q)

	first, err := c.get(ctx, endpointMovie, q)
	if err != nil {
		return nil, err
	}
	if first.pages <= 1 {
		return first.movies, nil
	}

	n := c.intn(first.pages) + 1
	if n == 1 {
		return first.movies, nil
	}
	q.Set("page", strconv.Itoa(n))
	res, err := c.get(ctx, endpointMovie, q)
	if err != nil {
		return nil, err
	}
	logger.LogEvent(ctx, logger.SVCMovies, slog.LevelDebug, "kinopoisk.random_page",
		slog.Int("page", n),
		slog.Int("pages", first.pages),
	)
	return res.movies, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values) (cached, error) {
	target := c.cfg.BaseURL + endpoint + "?" + q.Encode()
	if hit, ok := c.cache.Get(target); ok {
		metrics.RecordCache(true)
		logger.LogEvent(ctx, logger.SVCMovies, slog.LevelDebug, "kinopoisk.request",
			slog.String("status", "ok"),
			slog.String("op", endpoint),
			slog.String("cache", "hit"),
			slog.Int("count", len(hit.movies)),
		)
		return hit, nil
	}
	metrics.RecordCache(false)

	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return cached{}, fmt.Errorf("kinopoisk: throttle: %w", err)
	}

	res, err := c.do(ctx, endpoint, target)
	status := "ok"
	if err != nil {
		status = "fail"
	}
	metrics.RecordAPIRequest(endpoint, status)

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("op", endpoint),
		slog.String("cache", "miss"),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.LogEvent(ctx, logger.SVCMovies, slog.LevelWarn, "kinopoisk.request", attrs...)
		return cached{}, err
	}
	attrs = append(attrs, slog.Int("count", len(res.movies)), slog.Int("pages", res.pages))
	logger.LogEvent(ctx, logger.SVCMovies, slog.LevelInfo, "kinopoisk.request", attrs...)

	c.cache.Add(target, res)
	return res, nil
}

func (c *Client) do(ctx context.Context, endpoint, target string) (cached, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return cached{}, fmt.Errorf("kinopoisk: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return cached{}, fmt.Errorf("kinopoisk: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return cached{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return cached{}, &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	var p page
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&p); err != nil {
		return cached{}, fmt.Errorf("kinopoisk: %s: decode: %w", endpoint, err)
	}
	return cached{movies: toMovies(p.Docs), pages: p.Pages}, nil
}
