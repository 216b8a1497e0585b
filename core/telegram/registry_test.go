package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/kinobot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{
		Handler: noop, Description: "start", Aliases: []string{"Привет"},
	}))
	require.NoError(t, reg.RegisterCommand("/cancel", commands.Command{
		Handler: noop, Description: "cancel", Aliases: []string{"Отмена", "cancel"},
	}))

	cases := map[string]string{
		"/start":          "/start",
		"/start@kino_bot": "/start",
		"/cancel now":     "/cancel",
		"привет":          "/start",
		" ОТМЕНА ":        "/cancel",
		"Cancel":          "/cancel",
	}
	for text, want := range cases {
		key, _, ok := reg.LookupCommand(text)
		require.True(t, ok, text)
		assert.Equal(t, want, key, text)
	}

	for _, text := range []string{"", "start", "да", "/unknown"} {
		_, _, ok := reg.LookupCommand(text)
		assert.False(t, ok, text)
	}
}

func TestRegisterCommandRejects(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "d"}))
	require.Error(t, reg.RegisterCommand("/x", commands.Command{Description: "d"}))
	require.NoError(t, reg.RegisterCommand("/x", commands.Command{Handler: noop, Description: "d", Aliases: []string{"икс"}}))
	require.ErrorIs(t, reg.RegisterCommand("/x", commands.Command{Handler: noop, Description: "d"}), ErrDuplicate)

	require.NoError(t, reg.RegisterCommand("/y", commands.Command{Handler: noop, Description: "d", Aliases: []string{"ИКС"}}))
	key, _, ok := reg.LookupCommand("икс")
	require.True(t, ok)
	assert.Equal(t, "/x", key)
}

func TestListCommandsHidesAdmin(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "s", AdminOnly: true}))
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{Handler: noop, Description: "h"}))
	require.NoError(t, reg.RegisterCommand("/about", commands.Command{Handler: noop, Description: "a", Hidden: true}))

	assert.Equal(t, []tele.Command{{Text: "help", Description: "h"}}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 3)
}

func TestListCommandsOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{Handler: noop, Description: "h", Order: 9}))
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "s"}))
	require.NoError(t, reg.RegisterCommand("/movie_search", commands.Command{Handler: noop, Description: "m", Order: 1}))
	require.NoError(t, reg.RegisterCommand("/history", commands.Command{Handler: noop, Description: "y", Order: 1}))

	var names []string
	for _, c := range reg.ListCommands(true) {
		names = append(names, c.Text)
	}
	assert.Equal(t, []string{"start", "history", "movie_search", "help"}, names)
}

func TestCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("page_nav", noop))
	require.ErrorIs(t, reg.RegisterCallback("page_nav", noop), ErrDuplicate)
	require.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("page_nav")
	assert.True(t, ok)
	assert.Equal(t, []string{"page_nav"}, reg.ListCallbacks())
}

type fakeSetter struct {
	got []tele.Command
	err error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	if len(opts) > 0 {
		f.got, _ = opts[0].([]tele.Command)
	}
	return f.err
}

func TestSetupCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{Handler: noop, Description: "h"}))

	s := &fakeSetter{}
	SetupCommands(s, reg)
	assert.Equal(t, []tele.Command{{Text: "help", Description: "h"}}, s.got)

	SetupCommands(&fakeSetter{err: errors.New("flood")}, reg)
}
