// Package movie holds the film record shown to users and its Telegram renderings.
package movie

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/m3rciful/kinobot/core/telegram/format"
)

// NoData replaces values the movie database did not provide.
const NoData = "Нет данных"

// CaptionLimit is the longest photo caption Telegram accepts, in UTF-16 code units.
const CaptionLimit = 1024

// Movie is a fetched film. Values are display strings and are never modified after fetch.
type Movie struct {
	Name        string `json:"name" db:"name"`
	Rating      string `json:"rating" db:"rating"`
	Year        string `json:"year" db:"year"`
	Genres      string `json:"genres" db:"genres"`
	AgeRating   string `json:"age_rating" db:"age_rating"`
	Description string `json:"description" db:"description"`
	PosterURL   string `json:"poster_url" db:"poster_url"`
}

// HasPoster reports whether PosterURL can be sent as a photo.
func (m Movie) HasPoster() bool {
	u := strings.ToLower(m.PosterURL)
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}

// Card renders the Markdown description sent when a user picks the movie.
func (m Movie) Card() string {
	var b strings.Builder
	format.Field(&b, "Название", m.Name, true)
	format.Field(&b, "Рейтинг", orNoData(m.Rating), false)
	format.Field(&b, "Год", orNoData(m.Year), false)
	format.Field(&b, "Жанр", orNoData(m.Genres), false)
	format.Field(&b, "Возрастной рейтинг", orNoData(m.AgeRating), true)
	format.Field(&b, "О фильме", orNoData(m.Description), false)
	return b.String()
}

// Caption renders Card for a photo caption, shortening the description until it
// fits CaptionLimit. ok is false when the card does not fit even without one.
func (m Movie) Caption() (caption string, ok bool) {
	card := m.Card()
	over := captionLen(card) - CaptionLimit
	if over <= 0 {
		return card, true
	}
	short := m
	for budget := utf8.RuneCountInString(m.Description) - over; budget > 0; budget -= max(over, 1) {
		short.Description = Truncate(m.Description, budget)
		card = short.Card()
		if over = captionLen(card) - CaptionLimit; over <= 0 {
			return card, true
		}
	}
	return "", false
}

// captionLen counts UTF-16 code units, markup included.
func captionLen(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// Truncate shortens s to at most n runes, cutting after the last full stop when there is one.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := string([]rune(s)[:n])
	if i := strings.LastIndex(cut, "."); i >= 0 {
		return cut[:i+1]
	}
	return cut
}

// Summary is the one-line rating, year and genre digest.
func (m Movie) Summary() string {
	return fmt.Sprintf("IMDb: %s | Год: %s | Жанр: %s", orNoData(m.Rating), orNoData(m.Year), orNoData(m.Genres))
}

// Line renders the movie as an entry of a result list; index is zero based.
func (m Movie) Line(index int) string {
	return fmt.Sprintf("%d. %s\n%s", index+1, m.Name, m.Summary())
}

// List renders a page of movies. start is the absolute index of the first one.
func List(movies []Movie, start int) string {
	lines := make([]string, len(movies))
	for i, m := range movies {
		lines[i] = m.Line(start + i)
	}
	return strings.Join(lines, "\n\n")
}

func orNoData(s string) string {
	if strings.TrimSpace(s) == "" {
		return NoData
	}
	return s
}
