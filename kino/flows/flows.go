// Package flows declares the movie bot conversations on top of the generic flow engine.
package flows

import (
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/kinobot/core/telegram/flow"
	"github.com/m3rciful/kinobot/kino/validate"
)

// Flow names.
const (
	Search     = "search"
	Genre      = "genre"
	Rating     = "rating"
	LowBudget  = "low_budget"
	HighBudget = "high_budget"
	History    = "history"
)

// Draft fields.
const (
	FieldName        = "name"
	FieldGenre       = "genre"
	FieldGenreChoice = "genre_choice"
	FieldRating      = "rating"
	FieldBudget      = "budget"
	FieldCount       = "count"
	FieldDate        = "date"
)

// Reply keyboards a step can ask for.
const (
	KeyboardCancel = "cancel"
	KeyboardYesNo  = "yes_no"
	KeyboardGenres = "genres"
	KeyboardToMain = "to_main"
)

// Button labels shared by keyboards and the flow options.
const (
	LabelYes    = "Да"
	LabelNo     = "Нет"
	LabelCancel = "Отмена"
	LabelToMain = "На главную"
)

// ChoiceHint re-prompts a yes/no step.
const ChoiceHint = "Пожалуйста, выберите один из вариантов: 'Да', 'Нет' или 'Отмена'."

// DateLayout is the canonical form of the date field.
const DateLayout = "2006-01-02"

// Genres offered on the genre keyboard.
var Genres = []string{
	"Комедия", "Детектив", "Мелодрама", "Боевик", "Триллер", "Ужасы", "Фантастика",
	"Приключения", "Драма", "История", "Биография", "Военный", "Аниме", "Мультфильм",
	"Спорт", "Вестерн", "Фэнтези", "Семейный", "Короткометражка", "Музыка",
}

// Options returns the yes, no and reset words.
func Options() flow.Options {
	return flow.Options{
		Yes:   []string{LabelYes, "yes"},
		No:    []string{LabelNo, "no"},
		Reset: []string{LabelCancel, "cancel", LabelToMain},
	}
}

// All returns every conversation. now is used by the date validator.
func All(now func() time.Time) []flow.Flow {
	count := flow.Step{
		Field:    FieldCount,
		Prompt:   "Сколько вариантов вы хотите получить?",
		Keyboard: KeyboardToMain,
		Accept:   acceptCount,
	}
	genre := flow.Step{
		Field:    FieldGenre,
		Prompt:   "Выберите жанр:",
		Keyboard: KeyboardGenres,
		Accept:   acceptGenre,
	}
	genreChoice := flow.Step{
		Field:    FieldGenreChoice,
		Prompt:   "Хотите выбрать жанр фильма?",
		Keyboard: KeyboardYesNo,
		Choice:   true,
	}

	return []flow.Flow{
		{Name: Search, Steps: []flow.Step{
			{Field: FieldName, Prompt: "Введите название фильма/сериала:", Keyboard: KeyboardCancel, Accept: validate.Text},
			count,
		}},
		{Name: Genre, Steps: []flow.Step{genre, count}},
		{Name: Rating, Steps: []flow.Step{
			{Field: FieldRating, Prompt: "Введите рейтинг(например 7, 8 или 7.2-8):", Keyboard: KeyboardCancel, Accept: acceptRating},
			genreChoice, genre, count,
		}},
		{Name: LowBudget, Steps: []flow.Step{
			{Field: FieldBudget, Prompt: "Введите бюджет до 10 млн (например 1000000-5000000):", Keyboard: KeyboardCancel, Accept: acceptLowBudget},
			genreChoice, genre, count,
		}},
		{Name: HighBudget, Steps: []flow.Step{
			{Field: FieldBudget, Prompt: "Введите максимальный бюджет от 200 млн (например 200000000-666666666):", Keyboard: KeyboardCancel, Accept: acceptHighBudget},
			genreChoice, genre, count,
		}},
		{Name: History, Steps: []flow.Step{
			{Field: FieldDate, Prompt: "Введите дату в формате ГГГГ-ММ-ДД:", Keyboard: KeyboardToMain, Accept: acceptDate(now)},
		}},
	}
}

// NewMachine builds the engine with every conversation registered.
func NewMachine(now func() time.Time) (*flow.Machine, error) {
	if now == nil {
		now = time.Now
	}
	return flow.NewMachine(Options(), All(now)...)
}

func acceptCount(in string) (string, error) {
	n, err := validate.ParseCount(in)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(n), nil
}

// The movie API matches genres in lower case.
func acceptGenre(in string) (string, error) {
	s, err := validate.Text(in)
	if err != nil {
		return "", err
	}
	return strings.ToLower(s), nil
}

func acceptRating(in string) (string, error) {
	r, err := validate.Rating(in)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

func acceptLowBudget(in string) (string, error) {
	b, err := validate.LowBudget(in)
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

func acceptHighBudget(in string) (string, error) {
	b, err := validate.Budget(in)
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

func acceptDate(now func() time.Time) flow.AcceptFunc {
	return func(in string) (string, error) {
		d, err := validate.Date(in, now())
		if err != nil {
			return "", err
		}
		return d.Format(DateLayout), nil
	}
}
