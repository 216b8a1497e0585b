package bot

import (
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/telegram/callbacks"
	"github.com/m3rciful/kinobot/core/telegram/commands"
	"github.com/m3rciful/kinobot/core/telegram/flow"
	tghelpers "github.com/m3rciful/kinobot/core/telegram/helpers"
	"github.com/m3rciful/kinobot/kino/command"
	"github.com/m3rciful/kinobot/kino/conversation"
	"github.com/m3rciful/kinobot/kino/flows"
	"github.com/m3rciful/kinobot/kino/movie"
)

const (
	msgWelcome = "Добро пожаловать в Kinopoisk!\n" +
		"Все топовые новинки, сериалы, аниме, мультфильмы найдете у нас 😉"
	msgCommands = "/movie_search - Поиск фильма/сериала по названию\n" +
		"/movie_by_genre - Поиск фильма/сериала по жанру\n" +
		"/movie_by_rating - Поиск фильмов/сериалов по рейтингу\n" +
		"/low_budget_movie - Поиск фильмов/сериалов с низким бюджетом\n" +
		"/high_budget_movie - Поиск фильмов/сериалов с высоким бюджетом\n" +
		"/history - История запросов"
	msgHelp       = "Используйте одну из следующих команд:\n" + msgCommands
	msgUnknown    = "Извините, я вас не понял. Пожалуйста, используйте одну из следующих команд:\n" + msgCommands
	msgDocument   = "Я понимаю только текстовые сообщения."
	msgLimited    = "Слишком много запросов. Подождите немного."
	msgStartError = "Произошла ошибка. Пожалуйста, попробуйте позже."
)

func (b *Bot) registerCommands() error {
	defs := map[string]commands.Command{
		"/start": {Handler: b.onStart, Description: "Начать работу", Aliases: []string{"привет"}},
		"/help":  {Handler: b.onHelp, Description: "Список команд", Order: 10},
		"/cancel": {
			Handler:     b.onCancel,
			Description: "Отменить текущую команду",
			Order:       11,
			Aliases:     []string{flows.LabelCancel, "cancel"},
		},
		"/menu":  {Handler: b.onHome, Description: "Главное меню", Hidden: true, Aliases: []string{flows.LabelToMain}},
		"/stats": {Handler: b.onStats, Description: "Статистика", AdminOnly: true},
	}
	starts := []struct {
		name, flow, label, desc string
	}{
		{"/movie_search", flows.Search, LabelSearch, "Поиск фильма/сериала по названию"},
		{"/movie_by_genre", flows.Genre, LabelGenre, "Поиск фильма/сериала по жанру"},
		{"/movie_by_rating", flows.Rating, LabelRating, "Поиск фильмов/сериалов по рейтингу"},
		{"/low_budget_movie", flows.LowBudget, LabelLowBudget, "Поиск фильмов/сериалов с низким бюджетом"},
		{"/high_budget_movie", flows.HighBudget, LabelHighBudget, "Поиск фильмов/сериалов с высоким бюджетом"},
		{"/history", flows.History, LabelHistory, "История запросов"},
	}
	for i, s := range starts {
		defs[s.name] = commands.Command{
			Handler:     b.startFlow(s.flow),
			Description: s.desc,
			Order:       i + 1,
			Aliases:     []string{s.label},
		}
	}
	for name, def := range defs {
		if err := b.reg.RegisterCommand(name, def); err != nil {
			return err
		}
	}
	return nil
}

func userOf(c tele.Context) (conversation.User, bool) {
	u := c.Sender()
	if u == nil {
		return conversation.User{}, false
	}
	return conversation.User{ID: u.ID, Username: u.Username}, true
}

func (b *Bot) onStart(c tele.Context) error {
	user, ok := userOf(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	if b.users != nil {
		if _, err := b.users.EnsureUser(ctx, user.ID, user.Username); err != nil {
			_ = tghelpers.SendText(c, msgStartError)
			return fmt.Errorf("bot: register user: %w", err)
		}
	}
	return tghelpers.SendText(c, msgWelcome, &tele.SendOptions{ReplyMarkup: mainMenu()})
}

func (b *Bot) onHelp(c tele.Context) error {
	if user, ok := userOf(c); ok {
		if _, err := b.conv.Home(tghelpers.BuildContext(c), user.ID); err != nil {
			return err
		}
	}
	return tghelpers.SendText(c, msgHelp, &tele.SendOptions{ReplyMarkup: mainMenu()})
}

func (b *Bot) onCancel(c tele.Context) error {
	user, ok := userOf(c)
	if !ok {
		return nil
	}
	reply, err := b.conv.Cancel(tghelpers.BuildContext(c), user.ID)
	if err != nil {
		return err
	}
	return b.render(c, reply)
}

func (b *Bot) onHome(c tele.Context) error {
	user, ok := userOf(c)
	if !ok {
		return nil
	}
	reply, err := b.conv.Home(tghelpers.BuildContext(c), user.ID)
	if err != nil {
		return err
	}
	return b.render(c, reply)
}

func (b *Bot) onStats(c tele.Context) error {
	if b.users == nil {
		return tghelpers.SendText(c, "Статистика недоступна.")
	}
	st, err := b.users.Stats(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, fmt.Sprintf("Пользователей: %d\nЗаписей в истории: %d\nЗа сегодня: %d",
		st.Users, st.Entries, st.Today))
}

func (b *Bot) startFlow(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		user, ok := userOf(c)
		if !ok {
			return nil
		}
		reply, err := b.conv.Start(tghelpers.BuildContext(c), user, name)
		if err != nil {
			return err
		}
		return b.render(c, reply)
	}
}

// HandleText feeds free text into the user's active conversation.
func (b *Bot) HandleText(c tele.Context) (bool, error) {
	user, ok := userOf(c)
	if !ok {
		return false, nil
	}
	reply, err := b.conv.Handle(tghelpers.BuildContext(c), user, c.Text())
	if errors.Is(err, flow.ErrNotActive) {
		return false, nil
	}
	if reply.Text == "" && reply.Page == nil {
		return true, err
	}
	return true, errors.Join(b.render(c, reply), err)
}

// onButton serves every inline button of a result list.
func (b *Bot) onButton(c tele.Context) error {
	user, ok := userOf(c)
	if !ok {
		return c.Respond()
	}
	ctx := tghelpers.BuildContext(c)
	cmd, err := command.Decode(callbacks.Parse(c.Callback()))
	if err != nil {
		_ = c.Respond(&tele.CallbackResponse{Text: conversation.MsgUnavailable, ShowAlert: true})
		return err
	}
	reply, err := b.conv.Execute(ctx, user, cmd)
	if err != nil {
		_ = c.Respond()
		return err
	}

	switch {
	case reply.Alert:
		return c.Respond(&tele.CallbackResponse{Text: reply.Text, ShowAlert: true})
	case reply.Movie != nil:
		if err := c.Respond(&tele.CallbackResponse{Text: reply.Text}); err != nil {
			logger.Debug(ctx, "tg", "callback.respond",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
		return sendCard(c, *reply.Movie)
	}
	if err := c.Respond(); err != nil {
		logger.Debug(ctx, "tg", "callback.respond",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return b.render(c, reply)
}

// render shows a Reply: a result list, or a text with the requested reply keyboard.
func (b *Bot) render(c tele.Context, r conversation.Reply) error {
	switch {
	case r.Page != nil && r.Edit:
		return tghelpers.EditOrSend(c, r.Page.Text(), selectionKeyboard(r.Page))
	case r.Page != nil:
		return tghelpers.SendText(c, r.Page.Text(), &tele.SendOptions{ReplyMarkup: selectionKeyboard(r.Page)})
	case r.Text == "":
		return nil
	}
	if kb := replyKeyboard(r.Keyboard); kb != nil {
		return tghelpers.SendText(c, r.Text, &tele.SendOptions{ReplyMarkup: kb})
	}
	return tghelpers.SendText(c, r.Text)
}

// sendCard sends the poster with the card as caption, or the card alone when
// there is no poster or the card cannot be made to fit a caption.
func sendCard(c tele.Context, m movie.Movie) error {
	if m.HasPoster() {
		if caption, ok := m.Caption(); ok {
			return tghelpers.SendPhoto(c, m.PosterURL, caption)
		}
	}
	return tghelpers.SendMD(c, m.Card())
}

// UnknownText lists the commands.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknown, &tele.SendOptions{ReplyMarkup: mainMenu()})
	}
}

// UnknownDocument asks for text.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgDocument)
	}
}

// UnknownCallback answers buttons of keys nobody registered.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: conversation.MsgUnavailable, ShowAlert: true})
	}
}

func onLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgLimited})
	}
	return tghelpers.SendText(c, msgLimited)
}
