// Package command decodes inline button presses into typed commands.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Callback keys used in inline button data.
const (
	KeySelect   = "movie_select"
	KeyNavigate = "page_nav"
	KeyHome     = "to_main"
)

// Direction of a page navigation.
type Direction string

const (
	Next     Direction = "next"
	Previous Direction = "prev"
)

// ErrUnknown is returned for callback data no command understands.
var ErrUnknown = errors.New("command: unknown callback")

// Command is one of Navigate, Select or Home.
type Command interface {
	isCommand()
}

// Navigate moves the result cursor one page.
type Navigate struct{ Direction Direction }

// Select opens the movie at an absolute result index.
type Select struct{ Index int }

// Home drops the conversation and the result list.
type Home struct{}

func (Navigate) isCommand() {}
func (Select) isCommand()   {}
func (Home) isCommand()     {}

// Decode turns a callback key and payload into a command.
func Decode(key, payload string) (Command, error) {
	payload = strings.TrimSpace(payload)
	switch key {
	case KeyNavigate:
		switch d := Direction(payload); d {
		case Next, Previous:
			return Navigate{Direction: d}, nil
		}
		return nil, fmt.Errorf("%w: %s|%s", ErrUnknown, key, payload)
	case KeySelect:
		i, err := strconv.Atoi(payload)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: %s|%s", ErrUnknown, key, payload)
		}
		return Select{Index: i}, nil
	case KeyHome:
		return Home{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknown, key)
}

// Payload returns the key and payload that Decode maps back to c.
func Payload(c Command) (key, payload string) {
	switch c := c.(type) {
	case Navigate:
		return KeyNavigate, string(c.Direction)
	case Select:
		return KeySelect, strconv.Itoa(c.Index)
	case Home:
		return KeyHome, ""
	}
	return "", ""
}
