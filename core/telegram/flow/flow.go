// Package flow drives multi-step conversations described by declarative step lists.
//
// A Flow is an ordered list of Steps. Input steps validate the user's answer and store the
// canonical value in the draft under Step.Field. Choice steps branch: a "yes" answer continues
// with the next step, a "no" answer skips it. When the last step is answered the machine
// returns the completed draft and resets the conversation.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/m3rciful/kinobot/core/logger"
	"github.com/m3rciful/kinobot/core/telegram/state"
)

var (
	// ErrUnknownFlow is returned by Start for an unregistered flow name.
	ErrUnknownFlow = errors.New("flow: unknown flow")
	// ErrNotActive is returned by Advance when no flow is in progress.
	ErrNotActive = errors.New("flow: no active flow")
	// ErrUnrecognizedChoice is returned when a choice step gets neither a yes nor a no answer.
	ErrUnrecognizedChoice = errors.New("flow: unrecognized choice")
)

// Draft holds validated answers keyed by Step.Field.
type Draft map[string]string

// AcceptFunc validates raw input and returns its canonical form.
type AcceptFunc func(input string) (string, error)

// Step is one question of a flow.
type Step struct {
	Field    string
	Prompt   string
	Keyboard string
	Accept   AcceptFunc
	Choice   bool
}

// Flow is a named, ordered list of steps.
type Flow struct {
	Name  string
	Steps []Step
}

// StateAt returns the conversation state for step i.
func (f Flow) StateAt(i int) state.State {
	return state.State(f.Name + "." + f.Steps[i].Field)
}

func (f Flow) indexOf(st state.State) int {
	for i := range f.Steps {
		if f.StateAt(i) == st {
			return i
		}
	}
	return -1
}

// Outcome is the result of one transition.
type Outcome struct {
	Flow     string
	Prompt   string
	Keyboard string
	Done     bool
	Reset    bool
	Draft    Draft
}

// Options lists the words the machine treats specially. Matching is case-insensitive on trimmed input.
type Options struct {
	Yes   []string
	No    []string
	Reset []string
}

// Machine owns the registered flows. It keeps no per-user data; all state lives in the conversation passed in.
type Machine struct {
	flows map[string]Flow
	yes   map[string]struct{}
	no    map[string]struct{}
	reset map[string]struct{}
}

// NewMachine validates and registers flows.
func NewMachine(opts Options, flows ...Flow) (*Machine, error) {
	m := &Machine{
		flows: make(map[string]Flow, len(flows)),
		yes:   wordSet(opts.Yes),
		no:    wordSet(opts.No),
		reset: wordSet(opts.Reset),
	}
	for _, f := range flows {
		if f.Name == "" || len(f.Steps) == 0 {
			return nil, fmt.Errorf("flow: invalid flow %q", f.Name)
		}
		if _, dup := m.flows[f.Name]; dup {
			return nil, fmt.Errorf("flow: duplicate flow %q", f.Name)
		}
		for i, s := range f.Steps {
			if s.Field == "" {
				return nil, fmt.Errorf("flow: %s step %d has no field", f.Name, i)
			}
			if !s.Choice && s.Accept == nil {
				return nil, fmt.Errorf("flow: %s step %q has no validator", f.Name, s.Field)
			}
		}
		m.flows[f.Name] = f
	}
	return m, nil
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[normalize(w)] = struct{}{}
	}
	return set
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsReset reports whether input is one of the reset words.
func (m *Machine) IsReset(input string) bool {
	_, ok := m.reset[normalize(input)]
	return ok
}

// Start begins a flow, discarding any previous draft, and returns the first prompt.
func (m *Machine) Start(ctx context.Context, c *state.Conversation, name string) (Outcome, error) {
	f, ok := m.flows[name]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	c.Flow = f.Name
	c.Draft = map[string]string{}
	c.State = f.StateAt(0)
	logger.Debug(ctx, "flow", "flow.start",
		slog.String("status", "ok"),
		slog.String("flow", f.Name),
		slog.String("state", string(c.State)),
	)
	return prompt(f, 0), nil
}

// Advance consumes one input for the active step. Validation runs before any mutation:
// a rejected input returns the validator's error and leaves c unchanged.
func (m *Machine) Advance(ctx context.Context, c *state.Conversation, input string) (Outcome, error) {
	if m.IsReset(input) {
		name := c.Flow
		c.Reset()
		return Outcome{Flow: name, Reset: true}, nil
	}
	if !c.Active() {
		return Outcome{}, ErrNotActive
	}
	f, ok := m.flows[c.Flow]
	if !ok {
		c.Reset()
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownFlow, c.Flow)
	}
	i := f.indexOf(c.State)
	if i < 0 {
		c.Reset()
		return Outcome{}, fmt.Errorf("flow: state %q not in flow %s", c.State, f.Name)
	}
	step := f.Steps[i]

	next := i + 1
	var value string
	if step.Choice {
		switch word := normalize(input); {
		case m.isYes(word):
		case m.isNo(word):
			next = i + 2
		default:
			return Outcome{}, ErrUnrecognizedChoice
		}
	} else {
		v, err := step.Accept(input)
		if err != nil {
			return Outcome{}, err
		}
		value = v
	}

	if c.Draft == nil {
		c.Draft = map[string]string{}
	}
	if !step.Choice {
		c.Draft[step.Field] = value
	}

	if next >= len(f.Steps) {
		draft := Draft(maps.Clone(c.Draft))
		c.Reset()
		logger.Debug(ctx, "flow", "flow.complete",
			slog.String("status", "ok"),
			slog.String("flow", f.Name),
		)
		return Outcome{Flow: f.Name, Done: true, Draft: draft}, nil
	}
	c.State = f.StateAt(next)
	return prompt(f, next), nil
}

func (m *Machine) isYes(word string) bool {
	_, ok := m.yes[word]
	return ok
}

func (m *Machine) isNo(word string) bool {
	_, ok := m.no[word]
	return ok
}

func prompt(f Flow, i int) Outcome {
	s := f.Steps[i]
	return Outcome{Flow: f.Name, Prompt: s.Prompt, Keyboard: s.Keyboard}
}
