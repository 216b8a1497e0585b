package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/telegram/keyboard"
	"github.com/m3rciful/kinobot/kino/command"
	"github.com/m3rciful/kinobot/kino/conversation"
	"github.com/m3rciful/kinobot/kino/flows"
)

// Main menu labels. Each one is an alias of the matching command.
const (
	LabelSearch     = "🔍 Поиск фильма/сериала по названию"
	LabelGenre      = "🔍 Поиск фильма/сериала по жанру"
	LabelRating     = "🔍 Поиск фильмов/сериалов по рейтингу"
	LabelLowBudget  = "🔍 Поиск фильмов/сериалов с низким бюджетом"
	LabelHighBudget = "🔍 Поиск фильмов/сериалов с высоким бюджетом"
	LabelHistory    = "🕘 История запросов"
)

// Result list navigation.
const (
	LabelPrevious = "◀️ Назад"
	LabelNext     = "Дальше ▶️"
)

const menuPlaceholder = "Выберите пункт меню..."

func mainMenu() *tele.ReplyMarkup {
	m := keyboard.Column(LabelSearch, LabelGenre, LabelRating, LabelLowBudget, LabelHighBudget, LabelHistory)
	m.Placeholder = menuPlaceholder
	return m
}

// replyKeyboard maps a keyboard name to its markup; nil keeps the current keyboard.
func replyKeyboard(k conversation.Keyboard) *tele.ReplyMarkup {
	switch k {
	case conversation.KeyboardMain:
		return mainMenu()
	case flows.KeyboardCancel:
		return keyboard.Column(flows.LabelCancel)
	case flows.KeyboardToMain:
		return keyboard.Column(flows.LabelToMain)
	case flows.KeyboardYesNo:
		return keyboard.Column(flows.LabelYes, flows.LabelNo, flows.LabelCancel)
	case flows.KeyboardGenres:
		labels := append(append([]string(nil), flows.Genres...), flows.LabelCancel)
		return keyboard.ReplyGrid(labels, 2)
	}
	return nil
}

// selectionKeyboard offers one button per visible movie plus page navigation, two
// per row, and a full-width button back to the main menu.
func selectionKeyboard(v *conversation.PageView) *tele.ReplyMarkup {
	btns := make([]keyboard.Button, 0, len(v.Items)+2)
	for i, m := range v.Items {
		idx := v.Start + i
		btns = append(btns, button(fmt.Sprintf("%d. %s", idx+1, m.Name), command.Select{Index: idx}))
	}
	if v.HasPrevious {
		btns = append(btns, button(LabelPrevious, command.Navigate{Direction: command.Previous}))
	}
	if v.HasNext {
		btns = append(btns, button(LabelNext, command.Navigate{Direction: command.Next}))
	}
	rows := keyboard.Chunk(btns, 2)
	rows = append(rows, []keyboard.Button{button(flows.LabelToMain, command.Home{})})
	return keyboard.Inline(rows...)
}

func button(text string, cmd command.Command) keyboard.Button {
	key, payload := command.Payload(cmd)
	return keyboard.Button{Text: text, Unique: key, Data: payload}
}
