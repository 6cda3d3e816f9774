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

package game

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// RecordSize is the size in bytes of a marshaled Move. Both peers of a
// synchronized game read and write history in units of RecordSize.
const RecordSize = 4

// Square represents a square on the chessboard, numbered from a1 (0) to
// h8 (63) rank by rank.
type Square uint8

const NoSquare Square = 64

// ParseSquare parses a square in the algebraic format, e.g. e4.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 ||
		s[0] < 'a' || s[0] > 'h' ||
		s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("game: invalid square %q", s)
	}

	return Square(s[0]-'a') + 8*Square(s[1]-'1'), nil
}

func (sq Square) File() int { return int(sq) % 8 }
func (sq Square) Rank() int { return int(sq) / 8 }

func (sq Square) String() string {
	if sq >= NoSquare {
		return "-"
	}

	return string([]byte{'a' + byte(sq.File()), '1' + byte(sq.Rank())})
}

// Flag holds the special-move bits of a Move.
type Flag uint8

// FlagEdit marks a board edit: a piece placed on or removed from a square
// outside of normal play.
const FlagEdit Flag = 1 << 7

// Move is the fixed-size record of one ply (or one board edit):
//
//	[source][target][piece][flags]
//
// For an ordinary move piece is the promotion piece as a lower-case FEN
// letter, or 0. For an edit, target is the edited square and piece is the
// FEN letter of the placed piece, or 0 to clear the square.
type Move struct {
	Source Square
	Target Square
	Piece  byte
	Flags  Flag
}

// NewEdit returns an edit record which puts piece on square. A zero piece
// clears the square.
func NewEdit(square Square, piece byte) Move {
	return Move{Source: square, Target: square, Piece: piece, Flags: FlagEdit}
}

func (m Move) IsEdit() bool {
	return m.Flags&FlagEdit != 0
}

// String returns the move in UCI notation, or @<square>=<piece> for edits.
func (m Move) String() string {
	if m.IsEdit() {
		piece := "-"
		if m.Piece != 0 {
			piece = string(m.Piece)
		}
		return "@" + m.Target.String() + "=" + piece
	}

	str := m.Source.String() + m.Target.String()
	if m.Piece != 0 {
		str += string(m.Piece)
	}
	return str
}

// ParseMove parses a move in UCI notation, like e2e4 or e7e8q, into a
// record. It checks the format only, not legality.
func ParseMove(uci string) (Move, error) {
	uci = strings.ToLower(uci)
	if len(uci) != 4 && len(uci) != 5 {
		return Move{}, fmt.Errorf("game: invalid uci move %q", uci)
	}

	source, err := ParseSquare(uci[0:2])
	if err != nil {
		return Move{}, err
	}

	target, err := ParseSquare(uci[2:4])
	if err != nil {
		return Move{}, err
	}

	move := Move{Source: source, Target: target}
	if len(uci) == 5 {
		if !strings.ContainsRune("nbrq", rune(uci[4])) {
			return Move{}, fmt.Errorf("game: invalid promotion in %q", uci)
		}
		move.Piece = uci[4]
	}

	return move, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m Move) MarshalBinary() ([]byte, error) {
	return []byte{byte(m.Source), byte(m.Target), m.Piece, byte(m.Flags)}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *Move) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return errors.Errorf("game: move record is %d bytes, want %d", len(data), RecordSize)
	}

	m.Source = Square(data[0])
	m.Target = Square(data[1])
	m.Piece = data[2]
	m.Flags = Flag(data[3])

	if m.Source >= NoSquare || m.Target >= NoSquare {
		return errors.Errorf("game: move record %x has an invalid square", data)
	}

	return nil
}
