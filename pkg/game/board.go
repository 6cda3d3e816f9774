// Copyright © 2024 Rak Laptudirm <rak@laptudirm.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package game adapts the mess chess board to the operations needed by the
// command protocol and the peer protocol: a move history made of
// fixed-size records, exact undo, board edits and game status.
package game

import (
	"strings"

	"github.com/pkg/errors"

	"laptudirm.com/x/mess/pkg/board"
	"laptudirm.com/x/mess/pkg/board/move"
	"laptudirm.com/x/mess/pkg/board/piece"
	"laptudirm.com/x/mess/pkg/formats/fen"
)

// StartFEN is the standard starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove = errors.New("game: illegal move")
	ErrIllegalEdit = errors.New("game: illegal edit")
	ErrUnmakeOrder = errors.New("game: moves must be unmade in reverse order")
)

// Board is a chess game: a position plus the history of records which
// led to it from the starting position.
type Board struct {
	start string

	board *board.Board
	moves []move.Move // legal moves in the current position

	history []Move
}

// Undo is returned by MakeMove and is needed to take the move back.
type Undo struct {
	ply int
}

// New returns a Board set up with the starting position.
func New() *Board {
	var b Board
	b.Init()
	return &b
}

// Init resets the board to the starting position and clears the history.
func (b *Board) Init() {
	b.start = StartFEN
	b.history = b.history[:0]
	b.load(b.start)
}

func (b *Board) load(fenstr string) {
	b.board = board.New(board.FEN(fen.FromString(fenstr)))
	b.moves = b.board.GenerateMoves(false)
}

// Plies returns the number of records in the history, edits included.
func (b *Board) Plies() int {
	return len(b.history)
}

// PastMove returns the record at the given ply of the history.
func (b *Board) PastMove(ply int) Move {
	return b.history[ply]
}

// MakeMove plays the given ordinary move, which must be legal in the
// current position.
func (b *Board) MakeMove(m Move) (Undo, error) {
	if m.IsEdit() {
		return Undo{}, errors.Wrapf(ErrIllegalMove, "%s is an edit", m)
	}

	mov, found := b.find(m.String())
	if !found {
		return Undo{}, errors.Wrapf(ErrIllegalMove, "%s", m)
	}

	undo := Undo{ply: len(b.history)}
	b.play(mov)
	b.history = append(b.history, m)
	return undo, nil
}

// UnmakeMove takes back the last move made. Moves have to be unmade in the
// reverse order of being made.
func (b *Board) UnmakeMove(m Move, u Undo) error {
	if u.ply != len(b.history)-1 || b.history[u.ply] != m {
		return errors.Wrapf(ErrUnmakeOrder, "unmake %s at ply %d", m, u.ply)
	}

	// mess boards are rebuilt instead of unwound, so that the restored
	// state includes the repetition history exactly as it was.
	b.history = b.history[:u.ply]
	return b.replay()
}

// Edit applies an edit record to the board and saves it in the history.
func (b *Board) Edit(m Move) error {
	if !m.IsEdit() {
		return errors.Wrapf(ErrIllegalEdit, "%s is not an edit", m)
	}

	if err := b.edit(m); err != nil {
		return err
	}

	b.history = append(b.history, m)
	return nil
}

func (b *Board) replay() error {
	b.load(b.start)
	for ply, m := range b.history {
		if m.IsEdit() {
			if err := b.edit(m); err != nil {
				return errors.WithMessagef(err, "replay ply %d", ply)
			}
			continue
		}

		mov, found := b.find(m.String())
		if !found {
			return errors.Wrapf(ErrIllegalMove, "replay ply %d: %s", ply, m)
		}
		b.play(mov)
	}

	return nil
}

func (b *Board) play(mov move.Move) {
	b.board.MakeMove(mov)
	b.moves = b.board.GenerateMoves(false)
}

// find looks for a legal move with the given uci string.
func (b *Board) find(uci string) (move.Move, bool) {
	for _, mov := range b.moves {
		if strings.EqualFold(mov.String(), uci) {
			return mov, true
		}
	}

	var none move.Move
	return none, false
}

// FEN returns the current position in Forsyth-Edwards Notation.
func (b *Board) FEN() (string, error) {
	fields := [6]string(b.board.FEN())
	for i, field := range fields {
		if field == "" {
			return "", errors.Errorf("game: fen field %d is empty", i)
		}
	}

	return strings.Join(fields[:], " "), nil
}

// WhiteToMove reports whether white is the side to move.
func (b *Board) WhiteToMove() bool {
	return b.board.SideToMove == piece.White
}

// InCheck reports whether the side to move is in check.
func (b *Board) InCheck() bool {
	return b.board.IsInCheck(b.board.SideToMove)
}

// GameIsOver reports whether the game has ended, by mate, stalemate or
// one of the automatic draw rules.
func (b *Board) GameIsOver() bool {
	switch {
	case len(b.moves) == 0,
		b.board.DrawClock >= 100,
		b.board.IsThreefoldRepetition(),
		b.board.IsInsufficientMaterial():
		return true
	}

	return false
}

// Result returns the outcome of the game. A finished game where the side
// to move is in check is lost by that side, otherwise it is drawn.
func (b *Board) Result() Result {
	switch {
	case !b.GameIsOver():
		return Ongoing
	case b.InCheck():
		if b.WhiteToMove() {
			return BlackWins
		}
		return WhiteWins
	default:
		return Draw
	}
}

// Reason describes why the game ended, or is empty if it has not.
func (b *Board) Reason() string {
	switch {
	case len(b.moves) == 0:
		if b.InCheck() {
			return "Checkmate"
		}
		return "Stalemate"

	case b.board.DrawClock >= 100:
		return "50-move Rule"
	case b.board.IsThreefoldRepetition():
		return "Threefold Repetition"
	case b.board.IsInsufficientMaterial():
		return "Insufficient Material"
	}

	return ""
}
