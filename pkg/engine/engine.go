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

// Package engine lets a UCI chess engine running as a child process choose
// the local player's moves in a peer game.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"laptudirm.com/x/kibitz/pkg/game"
	"laptudirm.com/x/kibitz/pkg/peer"
)

type Config struct {
	Name string `yaml:"name"`
	Cmd  string `yaml:"cmd"`
	Dir  string `yaml:"dir"`
	Arg  string `yaml:"arg"`

	InitStr string `yaml:"init-string"`

	Options map[string]string `yaml:"options"`

	// Search limits, the first non zero one of which is used.
	MoveTime time.Duration `yaml:"movetime"`
	Depth    int           `yaml:"depth"`
	Nodes    int           `yaml:"nodes"`
}

// DefaultMoveTime is how long the engine thinks when no limit is set.
const DefaultMoveTime = time.Second

// handshakeTimeout bounds the engine's answers to uci and isready.
const handshakeTimeout = 5 * time.Second

var (
	ErrReadTimeout = errors.New("engine: read i/o timeout")
	ErrNoMove      = errors.New("engine: no move")
)

type Engine struct {
	config Config

	cmd    *exec.Cmd
	stdin  io.Closer
	writer *bufio.Writer

	lines chan string
	quit  chan struct{}

	// err is the error which ended the output; it is set before lines
	// is closed.
	err error
}

// Start runs the engine and prepares it for a new game.
func Start(config Config) (*Engine, error) {
	if config.Name == "" {
		config.Name = config.Cmd
	}

	engine := &Engine{config: config}

	process := exec.Command(config.Cmd, strings.Fields(config.Arg)...)
	process.Dir = config.Dir

	stdin, err := process.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := process.StdoutPipe()
	if err != nil {
		return nil, err
	}

	engine.cmd = process
	engine.stdin = stdin
	engine.writer = bufio.NewWriter(stdin)
	engine.lines = make(chan string)
	engine.quit = make(chan struct{})

	if err := process.Start(); err != nil {
		return nil, errors.Wrapf(err, "engine: starting %s", config.Cmd)
	}

	go engine.read(bufio.NewReader(stdout))

	if err := engine.initialize(); err != nil {
		_ = engine.Close()
		return nil, err
	}

	return engine, nil
}

func (engine *Engine) read(reader *bufio.Reader) {
	defer close(engine.lines)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			engine.err = err
			return
		}

		line = strings.Trim(line, " \n\t\r")

		logrus.Debugf("info: (%s)> %s", engine.config.Name, line)
		select {
		case engine.lines <- line:
		case <-engine.quit:
			engine.err = io.EOF
			return
		}
	}
}

func (engine *Engine) initialize() error {
	if engine.config.InitStr != "" {
		if err := engine.Write("%s", engine.config.InitStr); err != nil {
			return err
		}
	}

	if err := engine.Write("uci"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	if _, err := engine.Await(ctx, "^uciok"); err != nil {
		return errors.WithMessage(err, "engine: waiting for uciok")
	}

	names := make([]string, 0, len(engine.config.Options))
	for name := range engine.config.Options {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := engine.Write("setoption name %s value %s", name, engine.config.Options[name]); err != nil {
			return err
		}
	}

	return engine.NewGame()
}

// NewGame prepares the engine for a new game of chess.
func (engine *Engine) NewGame() error {
	if err := engine.Write("ucinewgame"); err != nil {
		return err
	}

	return engine.Synchronize()
}

// Synchronize waits for the engine to complete some time consuming task
// and synchronizes the interface with it.
func (engine *Engine) Synchronize() error {
	if err := engine.Write("isready"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	_, err := engine.Await(ctx, "^readyok")
	return err
}

// GetMove asks the engine for a move in the board's position. An engine
// which has no move to make resigns.
func (engine *Engine) GetMove(ctx context.Context, board *game.Board) (game.Move, error) {
	fen, err := board.FEN()
	if err != nil {
		return game.Move{}, err
	}

	if err := engine.Write("position fen %s", fen); err != nil {
		return game.Move{}, err
	}

	if err := engine.Synchronize(); err != nil {
		return game.Move{}, err
	}

	search, limit := engine.search()
	if err := engine.Write("%s", search); err != nil {
		return game.Move{}, err
	}

	if limit > 0 {
		// Leave the engine some time to report its move.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit+handshakeTimeout)
		defer cancel()
	}

	line, err := engine.Await(ctx, "^bestmove")
	if err != nil {
		if ctx.Err() != nil {
			// The engine is still searching.
			_ = engine.Write("stop")
		}
		return game.Move{}, err
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || fields[1] == "(none)" || fields[1] == "0000" {
		logrus.WithField("engine", engine.config.Name).Info("Engine has no move, resigning")
		return game.Move{}, errors.WithMessage(peer.ErrResign, ErrNoMove.Error())
	}

	m, err := board.ParseMove(fields[1])
	if err != nil {
		return game.Move{}, errors.WithMessagef(err, "engine: %s played", engine.config.Name)
	}

	return m, nil
}

// search returns the go command for the configured limits and how long the
// search is expected to take, or 0 if that is not known.
func (engine *Engine) search() (string, time.Duration) {
	switch {
	case engine.config.MoveTime > 0:
		return fmt.Sprintf("go movetime %d", engine.config.MoveTime.Milliseconds()), engine.config.MoveTime
	case engine.config.Depth > 0:
		return fmt.Sprintf("go depth %d", engine.config.Depth), 0
	case engine.config.Nodes > 0:
		return fmt.Sprintf("go nodes %d", engine.config.Nodes), 0
	default:
		return fmt.Sprintf("go movetime %d", DefaultMoveTime.Milliseconds()), DefaultMoveTime
	}
}

// Await waits for a line from the engine matching pattern. Other lines are
// dropped.
func (engine *Engine) Await(ctx context.Context, pattern string) (string, error) {
	regex := regexp.MustCompile(pattern)

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", errors.Wrap(ErrReadTimeout, pattern)
			}
			return "", ctx.Err()

		case line, ok := <-engine.lines:
			if !ok {
				return "", errors.Wrap(engine.err, "engine: output closed")
			}

			if regex.MatchString(line) {
				return line, nil
			}
		}
	}
}

func (engine *Engine) Write(format string, a ...any) error {
	logrus.Debugf("info: ("+engine.config.Name+")< "+format, a...)

	if _, err := fmt.Fprintf(engine.writer, format+"\n", a...); err != nil {
		return err
	}

	return engine.writer.Flush()
}

// Close asks the engine to quit, and kills it if it does not.
func (engine *Engine) Close() error {
	_ = engine.Write("quit")
	_ = engine.stdin.Close()
	close(engine.quit)

	done := make(chan error, 1)
	go func() { done <- engine.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(handshakeTimeout):
		_ = engine.cmd.Process.Kill()
		return <-done
	}
}
