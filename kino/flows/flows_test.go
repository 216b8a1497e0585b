package flows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/kinobot/core/telegram/flow"
	"github.com/m3rciful/kinobot/core/telegram/state"
	"github.com/m3rciful/kinobot/kino/validate"
)

var today = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func machine(t *testing.T) *flow.Machine {
	t.Helper()
	m, err := NewMachine(func() time.Time { return today })
	require.NoError(t, err)
	return m
}

func run(t *testing.T, m *flow.Machine, name string, inputs ...string) flow.Outcome {
	t.Helper()
	ctx := context.Background()
	var c state.Conversation
	out, err := m.Start(ctx, &c, name)
	require.NoError(t, err)
	for _, in := range inputs {
		out, err = m.Advance(ctx, &c, in)
		require.NoError(t, err, in)
	}
	return out
}

func TestRatingWithGenre(t *testing.T) {
	out := run(t, machine(t), Rating, "7.2-8", "Да", "Драма", "10")
	require.True(t, out.Done)
	assert.Equal(t, flow.Draft{FieldRating: "7.2-8", FieldGenre: "драма", FieldCount: "10"}, out.Draft)
}

func TestBudgetWithoutGenre(t *testing.T) {
	out := run(t, machine(t), HighBudget, "200000000-300000000", "нет", "5")
	require.True(t, out.Done)
	assert.Equal(t, flow.Draft{FieldBudget: "200000000-300000000", FieldCount: "5"}, out.Draft)

	out = run(t, machine(t), LowBudget, "1000-5000000", "no", "3")
	require.True(t, out.Done)
	assert.Equal(t, "1000-5000000", out.Draft[FieldBudget])
}

func TestSearchAndGenre(t *testing.T) {
	out := run(t, machine(t), Search, "  Брат 2 ", "1")
	assert.Equal(t, flow.Draft{FieldName: "Брат 2", FieldCount: "1"}, out.Draft)

	out = run(t, machine(t), Genre, "Аниме", "250")
	assert.Equal(t, flow.Draft{FieldGenre: "аниме", FieldCount: "250"}, out.Draft)
}

func TestHistoryDate(t *testing.T) {
	out := run(t, machine(t), History, "20.05.2024")
	assert.Equal(t, "2024-05-20", out.Draft[FieldDate])

	m := machine(t)
	var c state.Conversation
	_, err := m.Start(context.Background(), &c, History)
	require.NoError(t, err)
	_, err = m.Advance(context.Background(), &c, "2024-05-21")
	assert.ErrorIs(t, err, validate.ErrFuture)
}

func TestCountRejected(t *testing.T) {
	m := machine(t)
	ctx := context.Background()
	var c state.Conversation
	_, err := m.Start(ctx, &c, Genre)
	require.NoError(t, err)
	_, err = m.Advance(ctx, &c, "комедия")
	require.NoError(t, err)

	_, err = m.Advance(ctx, &c, "251")
	assert.ErrorIs(t, err, validate.ErrTooHigh)
	assert.Equal(t, state.State("genre.count"), c.State)
}

func TestResetWords(t *testing.T) {
	m := machine(t)
	for _, w := range []string{"Отмена", "cancel", "На главную"} {
		assert.True(t, m.IsReset(w), w)
	}
	assert.False(t, m.IsReset("Да"))
}
