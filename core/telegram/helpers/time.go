package helpers

import (
	"strings"
	"time"
)

var dayLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
}

var relativeDays = map[string]int{
	"сегодня":   0,
	"today":     0,
	"вчера":     -1,
	"yesterday": -1,
	"позавчера": -2,
}

// ParseDay reads a calendar day typed into a chat: ISO or day-first dates, or a
// relative word such as "вчера". The result is midnight in now's location.
func ParseDay(input string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return time.Time{}, false
	}
	loc := now.Location()
	if shift, ok := relativeDays[s]; ok {
		return time.Date(now.Year(), now.Month(), now.Day()+shift, 0, 0, 0, 0, loc), true
	}
	for _, layout := range dayLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
		}
	}
	return time.Time{}, false
}
