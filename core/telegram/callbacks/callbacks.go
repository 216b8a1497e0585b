// Package callbacks decodes Telebot inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Parse splits Telebot's \f<unique>|<payload> encoding. When Telebot already
// resolved the unique key, the raw data is the payload.
func Parse(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	raw = strings.TrimPrefix(raw, "\\f")
	parts := strings.SplitN(raw, "|", 2)
	key = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		payload = parts[1]
	}
	return key, payload
}

// Payload returns the payload of the current callback.
func Payload(c tele.Context) string {
	_, p := Parse(c.Callback())
	return p
}

// Data encodes a key and payload the way Telebot does for inline buttons.
func Data(key, payload string) string {
	if payload == "" {
		return "\f" + key
	}
	return "\f" + key + "|" + payload
}
