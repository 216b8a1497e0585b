package conversation

import (
	"fmt"

	"github.com/m3rciful/kinobot/core/paging"
	"github.com/m3rciful/kinobot/kino/movie"
)

// Keyboard names the reply keyboard to attach. The zero value keeps the current one.
type Keyboard string

// KeyboardMain is the top-level menu; the other kinds come from flow steps.
const KeyboardMain Keyboard = "main"

// User-facing texts.
const (
	MsgMenu        = "Выбери пункт меню..."
	MsgCancelled   = "Команда отменена."
	MsgNothingToDo = "Хорошо, но ничего не происходило."
	MsgNotFound    = "К сожалению, ничего не найдено."
	MsgFailed      = "Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."
	MsgUnavailable = "Кнопка недоступна. Нажмите 'На главную'"
	MsgNoNext      = "Нет больше страниц."
	MsgNoPrevious  = "Нет предыдущих страниц."
	MsgBadSelect   = "Ошибка выбора фильма."
)

// Reply is what the bot should show after a turn.
type Reply struct {
	Text     string
	Keyboard Keyboard
	// Page is set when a result list must be rendered.
	Page *PageView
	// Movie is set when the user picked a movie.
	Movie *movie.Movie
	// Alert asks for a popup callback answer instead of a message.
	Alert bool
	// Edit asks to update the message holding the result list.
	Edit bool
}

// PageView is the visible slice of a result list.
type PageView struct {
	Total       int
	Page        int
	Pages       int
	Start       int
	Items       []movie.Movie
	HasNext     bool
	HasPrevious bool
}

// Header is the first line of the result message.
func (v PageView) Header() string {
	return fmt.Sprintf("Найдено фильмов: %d", v.Total)
}

// Text renders the header and the numbered items.
func (v PageView) Text() string {
	return v.Header() + "\n\n" + movie.List(v.Items, v.Start)
}

func viewOf(p *paging.Paginator[movie.Movie]) *PageView {
	return &PageView{
		Total:       p.Len(),
		Page:        p.Page(),
		Pages:       p.TotalPages(),
		Start:       p.StartIndex(),
		Items:       p.Current(),
		HasNext:     p.HasNext(),
		HasPrevious: p.HasPrevious(),
	}
}
