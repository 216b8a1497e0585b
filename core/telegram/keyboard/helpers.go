// Package keyboard builds reply and inline markups from plain labels.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button. Unique selects the callback handler, Data is its payload.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Reply builds a resized reply keyboard, one slice per row.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	kb := make([]tele.Row, len(rows))
	for i, labels := range rows {
		row := make(tele.Row, len(labels))
		for j, label := range labels {
			row[j] = m.Text(label)
		}
		kb[i] = row
	}
	m.Reply(kb...)
	return m
}

// Column puts every label on its own row.
func Column(labels ...string) *tele.ReplyMarkup {
	return ReplyGrid(labels, 1)
}

// ReplyGrid lays labels out with up to perRow buttons per row.
func ReplyGrid(labels []string, perRow int) *tele.ReplyMarkup {
	return Reply(Chunk(labels, perRow)...)
}

// Inline builds an inline keyboard, one slice per row.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	kb := make([]tele.Row, len(rows))
	for i, buttons := range rows {
		row := make(tele.Row, len(buttons))
		for j, b := range buttons {
			row[j] = m.Data(b.Text, b.Unique, b.Data)
		}
		kb[i] = row
	}
	m.Inline(kb...)
	return m
}

// Chunk splits items into rows of up to n. n < 1 yields one item per row.
func Chunk[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	rows := make([][]T, 0, (len(items)+n-1)/n)
	for len(items) > 0 {
		end := min(n, len(items))
		rows = append(rows, items[:end:end])
		items = items[end:]
	}
	return rows
}
