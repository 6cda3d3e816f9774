package command_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptudirm.com/x/kibitz/pkg/command"
	"laptudirm.com/x/kibitz/pkg/game"
)

func TestParse(t *testing.T) {
	verb, args, ok := command.Parse("  move\te2e4   e7e5 ")
	require.True(t, ok)
	assert.Equal(t, "move", verb)
	assert.Equal(t, []string{"e2e4", "e7e5"}, args)

	_, _, ok = command.Parse(" \t ")
	assert.False(t, ok)
}

func TestExecute(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		response string
		plies    int
	}{
		{name: "two moves", lines: []string{"move e2e4 e7e5"}, response: "OK 2", plies: 2},
		{name: "bad move rolls back", lines: []string{"move e2e4 zz99"}, response: "BAD_MOVE zz99", plies: 0},
		{name: "algebraic", lines: []string{"move e4 e5 Nf3 Nc6 Bb5"}, response: "OK 5", plies: 5},
		{name: "empty move", lines: []string{"move"}, response: "OK 0", plies: 0},
		{name: "new", lines: []string{"move d4 d5", "new"}, response: "OK", plies: 0},
		{name: "unknown", lines: []string{"castle"}, response: "UNKNOWN_COMMAND"},
		{name: "status with arguments", lines: []string{"status now"}, response: "UNKNOWN_COMMAND"},
		{name: "blank", lines: []string{"   "}, response: "CANNOT_PARSE"},
		{name: "empty", lines: []string{""}, response: "CANNOT_PARSE"},
		{name: "checkmate", lines: []string{"move f3 e5 g4 Qh4#", "status"}, plies: 4},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := game.New()
			d := command.NewDispatcher(b)

			var response string
			for _, line := range test.lines {
				var keepRunning bool
				response, keepRunning = d.Execute(line)
				assert.True(t, keepRunning)
			}

			if test.response != "" {
				assert.Equal(t, test.response, response)
			}
			assert.Equal(t, test.plies, b.Plies())
		})
	}
}

func TestExit(t *testing.T) {
	b := game.New()
	d := command.NewDispatcher(b)

	response, keepRunning := d.Execute("exit")
	assert.Equal(t, "OK", response)
	assert.False(t, keepRunning)
	assert.Equal(t, 0, b.Plies())
}

func TestStatus(t *testing.T) {
	b := game.New()
	d := command.NewDispatcher(b)

	response, _ := d.Execute("new")
	require.Equal(t, "OK", response)

	start, err := b.FEN()
	require.NoError(t, err)

	response, _ = d.Execute("status")
	assert.Equal(t, "* "+start, response)
	assert.True(t, strings.HasPrefix(response, "* rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w "))

	d.Execute("move f3 e5 g4 Qh4")
	response, _ = d.Execute("status")
	assert.True(t, strings.HasPrefix(response, "0-1 "), response)
}

// fakeBoard is a command.Board with a scripted game state.
type fakeBoard struct {
	*game.Board

	over, check, white bool
	fenErr             error
}

func (f *fakeBoard) GameIsOver() bool  { return f.over }
func (f *fakeBoard) InCheck() bool     { return f.check }
func (f *fakeBoard) WhiteToMove() bool { return f.white }

func (f *fakeBoard) FEN() (string, error) {
	if f.fenErr != nil {
		return "", f.fenErr
	}
	return f.Board.FEN()
}

func TestStatusResults(t *testing.T) {
	tests := []struct {
		over, check, white bool
		want               string
	}{
		{over: false, want: "*"},
		{over: false, check: true, want: "*"},
		{over: true, check: true, white: true, want: "0-1"},
		{over: true, check: true, white: false, want: "1-0"},
		{over: true, check: false, white: true, want: "1/2-1/2"},
		{over: true, check: false, white: false, want: "1/2-1/2"},
	}

	for _, test := range tests {
		f := &fakeBoard{Board: game.New(), over: test.over, check: test.check, white: test.white}
		assert.Equal(t, test.want, command.Status(f).String())
	}
}

func TestStatusFENError(t *testing.T) {
	f := &fakeBoard{Board: game.New(), fenErr: errors.New("no fen")}
	d := command.NewDispatcher(f)

	response, keepRunning := d.Execute("status")
	assert.True(t, keepRunning)
	assert.Equal(t, "* FEN_ERROR", response)
}

// script is a command.Lines which replays fixed input lines.
type script struct {
	in  []string
	out []string
}

func (s *script) ReadLine() (string, error) {
	if len(s.in) == 0 {
		return "", io.EOF
	}

	line := s.in[0]
	s.in = s.in[1:]
	return line, nil
}

func (s *script) WriteLine(line string) error {
	s.out = append(s.out, line)
	return nil
}

func TestServe(t *testing.T) {
	lines := &script{in: []string{"move e2e4 e7e5", "move e2e4", "exit", "new"}}

	err := command.Serve(context.Background(), lines, command.NewDispatcher(game.New()))
	require.NoError(t, err)

	assert.Equal(t, []string{"OK 2", "BAD_MOVE e2e4", "OK"}, lines.out)
	assert.Equal(t, []string{"new"}, lines.in)
}

func TestServeEndOfInput(t *testing.T) {
	lines := &script{in: []string{"status"}}

	err := command.Serve(context.Background(), lines, command.NewDispatcher(game.New()))
	require.NoError(t, err)
	assert.Len(t, lines.out, 1)
}

func TestServeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lines := &script{in: []string{"status"}}
	err := command.Serve(ctx, lines, command.NewDispatcher(game.New()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, lines.out)
}
