package bot

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
	"github.com/m3rciful/kinobot/core/telegram/ui"
)

const (
	inlineLimit    = 10
	inlineMinQuery = 2
	inlineCacheSec = 300
)

// onInlineQuery answers "@bot <title>" with matching movie cards.
func (b *Bot) onInlineQuery(c tele.Context) error {
	q := c.Query()
	if q == nil {
		return nil
	}
	text := strings.TrimSpace(q.Text)
	if utf8.RuneCountInString(text) < inlineMinQuery {
		return c.Answer(&tele.QueryResponse{Results: tele.Results{}, CacheTime: inlineCacheSec})
	}

	ctx, cancel := context.WithTimeout(tghelpers.BuildContext(c), b.searchTimeout)
	defer cancel()
	movies, err := b.search.Search(ctx, text, inlineLimit)
	if err != nil {
		_ = c.Answer(&tele.QueryResponse{Results: tele.Results{}, CacheTime: 5})
		return err
	}

	results := make(tele.Results, 0, len(movies))
	for i, m := range movies {
		thumb := ""
		if m.HasPoster() {
			thumb = m.PosterURL
		}
		results = append(results, ui.Article(strconv.Itoa(i), m.Name, m.Summary(), m.Card(), thumb))
	}
	return c.Answer(&tele.QueryResponse{Results: results, CacheTime: inlineCacheSec})
}
