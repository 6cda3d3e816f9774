package game

import (
	"strings"

	"github.com/notnil/chess"
	"github.com/pkg/errors"
)

// ParseMove converts move text into a legal move in the current position.
// Coordinate notation (e2e4, e2-e4, e7e8q) is tried first, then standard
// algebraic notation (Nf3, exd5, O-O, e8=Q+).
func (b *Board) ParseMove(token string) (Move, error) {
	uci := strings.NewReplacer("-", "", "x", "", "X", "").Replace(token)
	if mov, found := b.find(uci); found {
		return ParseMove(mov.String())
	}

	if m, found := b.parseSAN(token); found {
		return m, nil
	}

	return Move{}, errors.Wrapf(ErrIllegalMove, "%q", token)
}

// parseSAN decodes algebraic notation with notnil/chess on a copy of the
// current position and maps the result back onto a mess move.
func (b *Board) parseSAN(token string) (Move, bool) {
	fenstr, err := b.FEN()
	if err != nil {
		return Move{}, false
	}

	position, err := chess.FEN(fenstr)
	if err != nil {
		return Move{}, false
	}

	pos := chess.NewGame(position).Position()

	// The check suffix is optional when typing a move, but may be needed
	// for the decoder to recognize it.
	base := strings.TrimRight(token, "+#")
	var mov *chess.Move
	for _, candidate := range []string{token, base, base + "+", base + "#"} {
		if m, err := (chess.AlgebraicNotation{}).Decode(pos, candidate); err == nil {
			mov = m
			break
		}
	}

	if mov == nil {
		return Move{}, false
	}

	uci := chess.UCINotation{}.Encode(pos, mov)
	if _, found := b.find(uci); !found {
		return Move{}, false
	}

	m, err := ParseMove(uci)
	return m, err == nil
}
