package game_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptudirm.com/x/kibitz/pkg/game"
)

func play(t *testing.T, b *game.Board, tokens ...string) {
	t.Helper()
	for _, token := range tokens {
		m, err := b.ParseMove(token)
		require.NoError(t, err, token)
		_, err = b.MakeMove(m)
		require.NoError(t, err, token)
	}
}

func fen(t *testing.T, b *game.Board) string {
	t.Helper()
	str, err := b.FEN()
	require.NoError(t, err)
	return str
}

func TestNewBoard(t *testing.T) {
	b := game.New()

	assert.Equal(t, 0, b.Plies())
	assert.True(t, b.WhiteToMove())
	assert.False(t, b.InCheck())
	assert.False(t, b.GameIsOver())
	assert.Equal(t, game.Ongoing, b.Result())

	fields := strings.Fields(fen(t, b))
	require.Len(t, fields, 6)
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR", fields[0])
	assert.Equal(t, "w", fields[1])
}

func TestParseMove(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"e2e4", "e2e4"},
		{"E2E4", "e2e4"},
		{"e2-e4", "e2e4"},
		{"e4", "e2e4"},
		{"Nf3", "g1f3"},
		{"g1f3", "g1f3"},
	}

	for _, test := range tests {
		t.Run(test.token, func(t *testing.T) {
			m, err := game.New().ParseMove(test.token)
			require.NoError(t, err)
			assert.Equal(t, test.want, m.String())
		})
	}
}

func TestParseMoveRejects(t *testing.T) {
	b := game.New()
	for _, token := range []string{"zz99", "e2e5", "Nf6", "", "e7e5"} {
		_, err := b.ParseMove(token)
		assert.ErrorIs(t, err, game.ErrIllegalMove, token)
	}
}

func TestMakeUnmakeRestoresPosition(t *testing.T) {
	b := game.New()
	play(t, b, "e4", "e5")
	before := fen(t, b)

	m, err := b.ParseMove("Nf3")
	require.NoError(t, err)
	undo, err := b.MakeMove(m)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Plies())
	assert.NotEqual(t, before, fen(t, b))

	require.NoError(t, b.UnmakeMove(m, undo))
	assert.Equal(t, 2, b.Plies())
	assert.Equal(t, before, fen(t, b))
}

func TestUnmakeOutOfOrder(t *testing.T) {
	b := game.New()

	first, err := b.ParseMove("e4")
	require.NoError(t, err)
	firstUndo, err := b.MakeMove(first)
	require.NoError(t, err)

	play(t, b, "e5")

	assert.ErrorIs(t, b.UnmakeMove(first, firstUndo), game.ErrUnmakeOrder)
	assert.Equal(t, 2, b.Plies())
}

func TestMakeMoveIllegal(t *testing.T) {
	b := game.New()

	_, err := b.MakeMove(game.Move{Source: 12, Target: 36})
	assert.ErrorIs(t, err, game.ErrIllegalMove)

	_, err = b.MakeMove(game.NewEdit(28, 'Q'))
	assert.ErrorIs(t, err, game.ErrIllegalMove)
	assert.Equal(t, 0, b.Plies())
}

func TestFoolsMate(t *testing.T) {
	b := game.New()
	play(t, b, "f2f3", "e7e5", "g2g4", "d8h4")

	assert.True(t, b.GameIsOver())
	assert.True(t, b.InCheck())
	assert.True(t, b.WhiteToMove())
	assert.Equal(t, game.BlackWins, b.Result())
	assert.Equal(t, "0-1", b.Result().String())
	assert.Equal(t, "Checkmate", b.Reason())
}

func TestEdit(t *testing.T) {
	b := game.New()
	e4, err := game.ParseSquare("e4")
	require.NoError(t, err)

	require.NoError(t, b.Edit(game.NewEdit(e4, 'N')))
	assert.Equal(t, 1, b.Plies())
	assert.True(t, b.PastMove(0).IsEdit())

	fields := strings.Fields(fen(t, b))
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/4N3/8/PPPPPPPP/RNBQKBNR", fields[0])

	h1, err := game.ParseSquare("h1")
	require.NoError(t, err)
	require.NoError(t, b.Edit(game.NewEdit(h1, 0)))
	fields = strings.Fields(fen(t, b))
	assert.NotContains(t, fields[2], "K")
}

func TestEditRejects(t *testing.T) {
	b := game.New()
	e1, err := game.ParseSquare("e1")
	require.NoError(t, err)

	assert.ErrorIs(t, b.Edit(game.NewEdit(e1, 0)), game.ErrIllegalEdit)
	assert.ErrorIs(t, b.Edit(game.NewEdit(e1, 'x')), game.ErrIllegalEdit)
	assert.ErrorIs(t, b.Edit(game.Move{Source: 12, Target: 28}), game.ErrIllegalEdit)
	assert.Equal(t, 0, b.Plies())
}

func TestInitClearsHistory(t *testing.T) {
	b := game.New()
	start := fen(t, b)
	play(t, b, "d4", "d5")

	b.Init()
	assert.Equal(t, 0, b.Plies())
	assert.Equal(t, start, fen(t, b))
}
