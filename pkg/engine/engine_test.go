package engine_test

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptudirm.com/x/kibitz/pkg/engine"
	"laptudirm.com/x/kibitz/pkg/game"
	"laptudirm.com/x/kibitz/pkg/peer"
)

// The test binary doubles as a fake engine which plays the moves listed
// in KIBITZ_FAKE_ENGINE, in order. The move "hang" never answers.
func TestMain(m *testing.M) {
	if moves, ok := os.LookupEnv("KIBITZ_FAKE_ENGINE"); ok {
		fake(strings.Split(moves, ","))
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func fake(moves []string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch fields := strings.Fields(scanner.Text()); {
		case len(fields) == 0:
		case fields[0] == "uci":
			fmt.Println("id name fake")
			fmt.Println("uciok")
		case fields[0] == "isready":
			fmt.Println("readyok")
		case fields[0] == "go":
			move := moves[0]
			moves = moves[1:]
			if move != "hang" {
				fmt.Println("info depth 1 score cp 0")
				fmt.Println("bestmove " + move)
			}
		case fields[0] == "quit":
			return
		}
	}
}

func start(t *testing.T, config engine.Config, moves ...string) *engine.Engine {
	t.Helper()
	t.Setenv("KIBITZ_FAKE_ENGINE", strings.Join(moves, ","))

	config.Cmd = os.Args[0]
	config.Name = "fake"
	e, err := engine.Start(config)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestGetMove(t *testing.T) {
	e := start(t, engine.Config{
		MoveTime: 50 * time.Millisecond,
		Options:  map[string]string{"Hash": "16", "Threads": "1"},
	}, "e2e4", "g1f3")

	board := game.New()

	m, err := e.GetMove(context.Background(), board)
	require.NoError(t, err)
	assert.Equal(t, "e2e4", m.String())

	_, err = board.MakeMove(m)
	require.NoError(t, err)
	_, err = board.MakeMove(must(board.ParseMove("e5")))
	require.NoError(t, err)

	m, err = e.GetMove(context.Background(), board)
	require.NoError(t, err)
	assert.Equal(t, "g1f3", m.String())
}

func must(m game.Move, err error) game.Move {
	if err != nil {
		panic(err)
	}
	return m
}

func TestGetMoveResigns(t *testing.T) {
	e := start(t, engine.Config{Depth: 1}, "(none)")

	_, err := e.GetMove(context.Background(), game.New())
	assert.ErrorIs(t, err, peer.ErrResign)
}

func TestGetMoveIllegal(t *testing.T) {
	e := start(t, engine.Config{Nodes: 100}, "e2e5")

	_, err := e.GetMove(context.Background(), game.New())
	assert.ErrorIs(t, err, game.ErrIllegalMove)
}

func TestGetMoveTimeout(t *testing.T) {
	e := start(t, engine.Config{Depth: 30}, "hang")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := e.GetMove(ctx, game.New())
	assert.ErrorIs(t, err, engine.ErrReadTimeout)
}

func TestStartMissing(t *testing.T) {
	_, err := engine.Start(engine.Config{Cmd: "./no-such-engine"})
	assert.Error(t, err)
}
