package transaction_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptudirm.com/x/kibitz/pkg/game"
	"laptudirm.com/x/kibitz/pkg/transaction"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		setup  []string
		tokens []string
		want   int
		bad    string
	}{
		{name: "two moves", tokens: []string{"e2e4", "e7e5"}, want: 2},
		{name: "empty batch", tokens: nil, want: 0},
		{name: "context dependent", tokens: []string{"e4", "d5", "exd5", "Qxd5"}, want: 4},
		{name: "bad token", tokens: []string{"e2e4", "zz99"}, bad: "zz99"},
		{name: "first token bad", tokens: []string{"e2e5", "e7e5"}, bad: "e2e5"},
		{name: "illegal after earlier moves", setup: []string{"e4"}, tokens: []string{"e5", "Nf3", "Nf3"}, bad: "Nf3"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := game.New()
			_, err := transaction.Apply(b, test.setup)
			require.NoError(t, err)

			before, err := b.FEN()
			require.NoError(t, err)
			plies := b.Plies()

			n, err := transaction.Apply(b, test.tokens)
			after, fenErr := b.FEN()
			require.NoError(t, fenErr)

			if test.bad != "" {
				require.ErrorIs(t, err, transaction.ErrBadMove)

				var bad *transaction.BadMoveError
				require.True(t, errors.As(err, &bad))
				assert.Equal(t, test.bad, bad.Token)
				assert.ErrorIs(t, err, game.ErrIllegalMove)

				assert.Equal(t, 0, n)
				assert.Equal(t, plies, b.Plies())
				assert.Equal(t, before, after)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.want, n)
			assert.Equal(t, plies+test.want, b.Plies())
		})
	}
}

// recorder is a board whose moves are plain numbers; it records the order
// in which moves are made and unmade.
type recorder struct {
	made   []string
	events []string
}

func (r *recorder) ParseMove(token string) (game.Move, error) {
	if token == "bad" {
		return game.Move{}, fmt.Errorf("cannot parse %s", token)
	}

	sq, err := game.ParseSquare(token)
	return game.Move{Source: sq, Target: sq}, err
}

func (r *recorder) MakeMove(m game.Move) (game.Undo, error) {
	r.made = append(r.made, m.Source.String())
	r.events = append(r.events, "make "+m.Source.String())
	return game.Undo{}, nil
}

func (r *recorder) UnmakeMove(m game.Move, _ game.Undo) error {
	last := r.made[len(r.made)-1]
	if last != m.Source.String() {
		return fmt.Errorf("unmake %s, last made %s", m.Source, last)
	}

	r.made = r.made[:len(r.made)-1]
	r.events = append(r.events, "unmake "+m.Source.String())
	return nil
}

func TestApplyUnwindsInReverse(t *testing.T) {
	r := &recorder{}

	_, err := transaction.Apply(r, []string{"a1", "b2", "c3", "bad", "d4"})
	require.ErrorIs(t, err, transaction.ErrBadMove)

	assert.Empty(t, r.made)
	assert.Equal(t, []string{
		"make a1", "make b2", "make c3",
		"unmake c3", "unmake b2", "unmake a1",
	}, r.events)
}

func TestLog(t *testing.T) {
	r := &recorder{}
	var log transaction.Log

	for _, sq := range []game.Square{0, 9, 18} {
		m := game.Move{Source: sq, Target: sq}
		undo, err := r.MakeMove(m)
		require.NoError(t, err)
		log.Push(m, undo)
	}
	assert.Equal(t, 3, log.Len())

	require.NoError(t, log.Unwind(r))
	assert.Equal(t, 0, log.Len())
	assert.Empty(t, r.made)
}
