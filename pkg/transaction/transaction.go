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

// Package transaction applies batches of moves to a board with
// all-or-nothing semantics.
package transaction

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"laptudirm.com/x/kibitz/pkg/game"
)

// Board is the part of a game needed to run a transaction on it.
type Board interface {
	// ParseMove converts move text into a move legal in the current
	// position of the board.
	ParseMove(token string) (game.Move, error)

	MakeMove(m game.Move) (game.Undo, error)
	UnmakeMove(m game.Move, u game.Undo) error
}

var ErrBadMove = errors.New("transaction: bad move")

// BadMoveError reports the first move of a batch which could not be made.
type BadMoveError struct {
	Index int    // position of the move in the batch
	Token string // the move text
	Err   error

	// Rollback is set if the moves made before the bad one could not be
	// unmade, in which case the board is left in an unknown state.
	Rollback error
}

func (err *BadMoveError) Error() string {
	return fmt.Sprintf("transaction: bad move %q at %d: %v", err.Token, err.Index, err.Err)
}

func (err *BadMoveError) Is(target error) bool {
	return target == ErrBadMove
}

func (err *BadMoveError) Unwrap() error {
	return err.Err
}

// entry is a move made during a transaction together with the record
// needed to take it back.
type entry struct {
	move game.Move
	undo game.Undo
}

// Log is the ordered list of moves made by a transaction. Unmaking its
// entries in reverse order restores the board to how it was before the
// transaction started.
type Log struct {
	entries []entry
}

// Push records a move which has just been made.
func (log *Log) Push(m game.Move, u game.Undo) {
	log.entries = append(log.entries, entry{move: m, undo: u})
}

// Len returns the number of moves in the log.
func (log *Log) Len() int {
	return len(log.entries)
}

// Unwind unmakes every logged move, last first, and empties the log.
func (log *Log) Unwind(board Board) error {
	for len(log.entries) > 0 {
		last := log.entries[len(log.entries)-1]
		if err := board.UnmakeMove(last.move, last.undo); err != nil {
			return errors.WithMessagef(err, "unwind %s", last.move)
		}

		log.entries = log.entries[:len(log.entries)-1]
	}

	return nil
}

// Apply parses and makes every token on the board in order, each token
// being parsed in the position left by the ones before it. If any token
// fails, every move made so far is unmade and a *BadMoveError naming the
// token is returned. On success the number of moves made is returned.
func Apply(board Board, tokens []string) (int, error) {
	var log Log

	for i, token := range tokens {
		err := apply(board, &log, token)
		if err == nil {
			continue
		}

		logrus.WithFields(logrus.Fields{
			"token":  token,
			"index":  i,
			"unmake": log.Len(),
		}).Debug("Rolling back move batch")

		return 0, &BadMoveError{
			Index: i, Token: token, Err: err,
			Rollback: log.Unwind(board),
		}
	}

	return log.Len(), nil
}

func apply(board Board, log *Log, token string) error {
	m, err := board.ParseMove(token)
	if err != nil {
		return err
	}

	undo, err := board.MakeMove(m)
	if err != nil {
		return err
	}

	log.Push(m, undo)
	return nil
}
