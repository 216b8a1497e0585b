package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"resolved unique", &tele.Callback{Unique: "page_nav", Data: "next"}, "page_nav", "next"},
		{"raw data", &tele.Callback{Data: "\fmovie_select|7"}, "movie_select", "7"},
		{"escaped prefix", &tele.Callback{Data: `\fpage_nav|prev`}, "page_nav", "prev"},
		{"no payload", &tele.Callback{Data: "\fhome"}, "home", ""},
		{"payload with separator", &tele.Callback{Data: "\fk|a|b"}, "k", "a|b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := Parse(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}

func TestDataRoundTrip(t *testing.T) {
	key, payload := Parse(&tele.Callback{Data: Data("movie_select", "12")})
	assert.Equal(t, "movie_select", key)
	assert.Equal(t, "12", payload)

	key, payload = Parse(&tele.Callback{Data: Data("home", "")})
	assert.Equal(t, "home", key)
	assert.Empty(t, payload)
}
