// Package ui holds reusable pieces of bot presentation.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider answers updates no command, alias, conversation or callback key claimed.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
