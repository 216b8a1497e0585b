package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m3rciful/kinobot/core/telegram/helpers"
)

const (
	// MaxCount is the largest result count the movie API accepts per request.
	MaxCount = 250
	// MaxRating is the upper bound of the IMDb rating scale.
	MaxRating = 10.0
	// HighBudgetFloor is the minimum lower bound for a high-budget query.
	HighBudgetFloor = 200_000_000
	// LowBudgetCeiling is the maximum upper bound for a low-budget query.
	LowBudgetCeiling = 10_000_000
	// MaxTextLen bounds free-text answers such as titles and genres.
	MaxTextLen = 100
)

// Count checks a requested number of results.
func Count(n int) error {
	switch {
	case n <= 0:
		return fail(ErrTooLow, "Пожалуйста, введите положительное число.")
	case n > MaxCount:
		return fail(ErrTooHigh, fmt.Sprintf("Лимит не должен превышать %d.", MaxCount))
	}
	return nil
}

// ParseCount parses and checks a result count typed by the user.
func ParseCount(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fail(ErrParse, "Пожалуйста, введите корректное число.")
	}
	if err := Count(n); err != nil {
		return 0, err
	}
	return n, nil
}

// RatingRange is an inclusive IMDb rating filter. A single value has Min == Max.
type RatingRange struct {
	Min float64
	Max float64
}

// String renders the range in the movie API filter form: "7" or "7.2-8".
func (r RatingRange) String() string {
	lo := strconv.FormatFloat(r.Min, 'f', -1, 64)
	if r.Min == r.Max {
		return lo
	}
	return lo + "-" + strconv.FormatFloat(r.Max, 'f', -1, 64)
}

// Rating parses either a single rating or a "min-max" range on the 0..10 scale.
func Rating(text string) (RatingRange, error) {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "-") {
		v, err := parseFloat(text)
		if err != nil {
			return RatingRange{}, fail(ErrParse, "Пожалуйста, введите корректный рейтинг или диапазон.")
		}
		if !inRating(v) {
			return RatingRange{}, fail(ErrOutOfRange, "Пожалуйста, введите рейтинг от 0 до 10.")
		}
		return RatingRange{Min: v, Max: v}, nil
	}

	parts := strings.Split(text, "-")
	if len(parts) != 2 {
		return RatingRange{}, fail(ErrParse, "Пожалуйста, введите корректный рейтинг или диапазон.")
	}
	lo, errLo := parseFloat(parts[0])
	hi, errHi := parseFloat(parts[1])
	if errLo != nil || errHi != nil {
		return RatingRange{}, fail(ErrParse, "Пожалуйста, введите корректный рейтинг или диапазон.")
	}
	if !inRating(lo) || !inRating(hi) || lo > hi {
		return RatingRange{}, fail(ErrOutOfRange, "Пожалуйста, введите корректный диапазон рейтинга от 0 до 10.")
	}
	return RatingRange{Min: lo, Max: hi}, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// NaN fails both comparisons.
func inRating(v float64) bool {
	return v >= 0 && v <= MaxRating && !math.IsInf(v, 0)
}

// BudgetRange is an inclusive production budget filter in dollars.
type BudgetRange struct {
	Min int64
	Max int64
}

// String renders the range in the movie API filter form.
func (b BudgetRange) String() string {
	return strconv.FormatInt(b.Min, 10) + "-" + strconv.FormatInt(b.Max, 10)
}

// Budget parses a high-budget "min-max" range: min must be at least HighBudgetFloor.
func Budget(text string) (BudgetRange, error) {
	b, err := parseBudget(text)
	if err != nil {
		return BudgetRange{}, err
	}
	if b.Min < HighBudgetFloor || b.Max < b.Min {
		return BudgetRange{}, fail(ErrOutOfRange,
			"Пожалуйста, убедитесь, что минимальный бюджет больше 200 миллионов и максимальный больше минимального.")
	}
	return b, nil
}

// LowBudget parses a low-budget "min-max" range bounded by LowBudgetCeiling.
func LowBudget(text string) (BudgetRange, error) {
	b, err := parseBudget(text)
	if err != nil {
		return BudgetRange{}, err
	}
	if b.Min < 0 || b.Max < b.Min || b.Max > LowBudgetCeiling {
		return BudgetRange{}, fail(ErrOutOfRange,
			"Пожалуйста, убедитесь, что бюджет не превышает 10 миллионов и максимальный больше минимального.")
	}
	return b, nil
}

func parseBudget(text string) (BudgetRange, error) {
	parts := strings.Split(strings.TrimSpace(text), "-")
	if len(parts) != 2 {
		return BudgetRange{}, fail(ErrFormat, "Пожалуйста, введите бюджет в формате 'от-до'.")
	}
	lo, errLo := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	hi, errHi := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if errLo != nil || errHi != nil {
		return BudgetRange{}, fail(ErrNotNumeric, "Пожалуйста, введите корректные числовые значения для бюджета.")
	}
	return BudgetRange{Min: lo, Max: hi}, nil
}

// Date parses a calendar day that is not after now.
func Date(text string, now time.Time) (time.Time, error) {
	day, ok := helpers.ParseDay(text, now)
	if !ok {
		return time.Time{}, fail(ErrParse, "Пожалуйста, введите дату в корректном формате (ГГГГ-ММ-ДД).")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.After(today) {
		return time.Time{}, fail(ErrFuture, "Пожалуйста, введите дату не позже сегодняшнего дня.")
	}
	return day, nil
}

// Text checks a free-form answer such as a title or a genre.
func Text(text string) (string, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return "", fail(ErrEmpty, "Пожалуйста, введите непустое значение.")
	case utf8.RuneCountInString(text) > MaxTextLen:
		return "", fail(ErrTooLong, fmt.Sprintf("Слишком длинный ввод, не более %d символов.", MaxTextLen))
	}
	return text, nil
}
