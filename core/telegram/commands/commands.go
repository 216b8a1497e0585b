// Package commands describes the slash commands a bot registers.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command. Aliases are plain texts, usually reply keyboard
// labels, that trigger the same handler.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Order positions the command in the Telegram menu; ties sort by name.
	Order     int
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

// Visible reports whether the command belongs in the public command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}
