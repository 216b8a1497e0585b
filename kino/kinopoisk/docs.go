package kinopoisk

import (
	"strconv"
	"strings"

	"github.com/m3rciful/kinobot/kino/movie"
)

// MaxDescription is the longest description kept; Telegram photo captions cap at 1024 runes.
const MaxDescription = 950

type page struct {
	Docs  []doc `json:"docs"`
	Total int   `json:"total"`
	Limit int   `json:"limit"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
}

type named struct {
	Name string `json:"name"`
}

type doc struct {
	Name            string   `json:"name"`
	AlternativeName string   `json:"alternativeName"`
	Names           []named  `json:"names"`
	Description     string   `json:"description"`
	ShortDesc       string   `json:"shortDescription"`
	Year            int      `json:"year"`
	AgeRating       *int     `json:"ageRating"`
	Genres          []named  `json:"genres"`
	Rating          *ratings `json:"rating"`
	Poster          *poster  `json:"poster"`
}

type ratings struct {
	IMDb *float64 `json:"imdb"`
	KP   *float64 `json:"kp"`
}

type poster struct {
	URL        string `json:"url"`
	PreviewURL string `json:"previewUrl"`
}

// title picks the first usable name: localized, alternative, then any listed one.
func (d doc) title() string {
	if s := strings.TrimSpace(d.Name); s != "" {
		return s
	}
	if s := strings.TrimSpace(d.AlternativeName); s != "" {
		return s
	}
	for _, n := range d.Names {
		if s := strings.TrimSpace(n.Name); s != "" {
			return s
		}
	}
	return ""
}

func (d doc) toMovie() movie.Movie {
	m := movie.Movie{
		Name:        d.title(),
		Rating:      movie.NoData,
		Year:        movie.NoData,
		Genres:      movie.NoData,
		AgeRating:   movie.NoData,
		Description: movie.NoData,
		PosterURL:   movie.NoData,
	}
	if d.Rating != nil && d.Rating.IMDb != nil && *d.Rating.IMDb > 0 {
		m.Rating = strconv.FormatFloat(*d.Rating.IMDb, 'f', -1, 64)
	}
	if d.Year > 0 {
		m.Year = strconv.Itoa(d.Year)
	}
	if d.AgeRating != nil {
		m.AgeRating = strconv.Itoa(*d.AgeRating) + "+"
	}
	genres := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		if s := strings.TrimSpace(g.Name); s != "" {
			genres = append(genres, s)
		}
	}
	if len(genres) > 0 {
		m.Genres = strings.Join(genres, ", ")
	}
	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		desc = strings.TrimSpace(d.ShortDesc)
	}
	if desc != "" {
		m.Description = movie.Truncate(desc, MaxDescription)
	}
	if d.Poster != nil {
		switch {
		case d.Poster.PreviewURL != "":
			m.PosterURL = d.Poster.PreviewURL
		case d.Poster.URL != "":
			m.PosterURL = d.Poster.URL
		}
	}
	return m
}

// toMovies maps docs, skipping those without any name.
func toMovies(docs []doc) []movie.Movie {
	out := make([]movie.Movie, 0, len(docs))
	for _, d := range docs {
		if d.title() == "" {
			continue
		}
		out = append(out, d.toMovie())
	}
	return out
}
