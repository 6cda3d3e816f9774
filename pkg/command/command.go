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

// Package command implements the line based command protocol used by
// software to drive a game: one command per line, one response per line.
//
//	move m1 m2 ...   OK <n> | BAD_MOVE <token>
//	status           <result> <fen> | <result> FEN_ERROR
//	new              OK
//	exit             OK
//	anything else    UNKNOWN_COMMAND | CANNOT_PARSE
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"laptudirm.com/x/kibitz/pkg/game"
	"laptudirm.com/x/kibitz/pkg/transaction"
)

// Responses which are not built from the board.
const (
	ResponseOK             = "OK"
	ResponseBadMove        = "BAD_MOVE"
	ResponseFENError       = "FEN_ERROR"
	ResponseUnknownCommand = "UNKNOWN_COMMAND"
	ResponseCannotParse    = "CANNOT_PARSE"
)

// Board is the game state driven by the commands.
type Board interface {
	transaction.Board

	// Init resets the board to the starting position.
	Init()

	GameIsOver() bool
	InCheck() bool
	WhiteToMove() bool
	FEN() (string, error)
}

// Parse splits a command line into its verb and arguments. It reports
// false if the line has no tokens.
func Parse(line string) (verb string, args []string, ok bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return "", nil, false
	}

	return tokens[0], tokens[1:], true
}

// Dispatcher executes command lines against a single board.
type Dispatcher struct {
	Board Board
}

func NewDispatcher(board Board) *Dispatcher {
	return &Dispatcher{Board: board}
}

// Execute runs one command line and returns its response. keepRunning is
// false once the exit command has been received.
func (d *Dispatcher) Execute(line string) (response string, keepRunning bool) {
	defer func() {
		// A failure inside the board is reported, not propagated.
		if r := recover(); r != nil {
			logrus.WithField("command", line).Errorf("command panicked: %v", r)
			response, keepRunning = ResponseCannotParse, true
		}
	}()

	verb, args, ok := Parse(line)
	if !ok {
		return ResponseCannotParse, true
	}

	logrus.WithFields(logrus.Fields{
		"verb": verb,
		"args": args,
	}).Trace("Executing command")

	switch {
	case verb == "exit":
		return ResponseOK, false
	case verb == "move":
		return d.move(args), true
	// status and new take no arguments, so the whole line must match.
	case line == "status":
		return d.status(), true
	case line == "new":
		d.Board.Init()
		return ResponseOK, true
	default:
		return ResponseUnknownCommand, true
	}
}

func (d *Dispatcher) move(tokens []string) string {
	n, err := transaction.Apply(d.Board, tokens)

	var bad *transaction.BadMoveError
	if errors.As(err, &bad) {
		logrus.WithField("token", bad.Token).Debug(bad.Err)
		if bad.Rollback != nil {
			logrus.WithError(bad.Rollback).Error("Could not roll back move batch")
		}
		return ResponseBadMove + " " + bad.Token
	}

	return fmt.Sprintf("%s %d", ResponseOK, n)
}

func (d *Dispatcher) status() string {
	result := Status(d.Board)

	fen, err := d.Board.FEN()
	if err != nil {
		logrus.WithError(err).Error("Could not generate position string")
		fen = ResponseFENError
	}

	return result.String() + " " + fen
}

// Status computes the result of the game on the board. If the game is
// over the side to move loses if it is in check, otherwise it is a draw.
func Status(board Board) game.Result {
	switch {
	case !board.GameIsOver():
		return game.Ongoing
	case board.InCheck():
		// Whoever has the move just lost.
		if board.WhiteToMove() {
			return game.BlackWins
		}
		return game.WhiteWins
	default:
		return game.Draw
	}
}
