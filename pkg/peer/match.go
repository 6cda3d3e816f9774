package peer

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"laptudirm.com/x/kibitz/pkg/game"
)

// ErrResign is returned by a Player which wants to resign.
var ErrResign = errors.New("peer: player resigned")

// Player chooses the local player's moves.
type Player interface {
	GetMove(ctx context.Context, board *game.Board) (game.Move, error)
}

// Outcome is how a match ended.
type Outcome struct {
	Result game.Result
	Reason string
}

// Match plays a game between a local Player and the opponent at the other
// end of a Session.
type Match struct {
	Board  *game.Board
	Side   Side // the local player's side
	Local  Player
	Remote *Session

	// OnMove, if set, is called after every move made on the board.
	OnMove func(side Side, m game.Move)
}

// Play runs the match until the game is over or one of the players
// resigns. The remote peer is informed of the end of the game.
func (match *Match) Play(ctx context.Context) (Outcome, error) {
	for !match.Board.GameIsOver() {
		toMove := Black
		if match.Board.WhiteToMove() {
			toMove = White
		}

		var (
			m   game.Move
			err error
		)

		if toMove == match.Side {
			m, err = match.Local.GetMove(ctx, match.Board)
			if errors.Is(err, ErrResign) {
				if err := match.Remote.Resign(ctx); err != nil {
					return Outcome{}, err
				}

				return Outcome{
					Result: game.GameLostBy[match.Side],
					Reason: match.Side.String() + " resigned",
				}, nil
			}
		} else {
			m, err = match.Remote.GetMove(ctx, match.Board)
			if errors.Is(err, ErrOpponentResigned) {
				return Outcome{
					Result: game.GameLostBy[match.Side.Other()],
					Reason: match.Side.Other().String() + " resigned",
				}, nil
			}
		}

		if err != nil {
			return Outcome{}, err
		}

		if err := match.make(m); err != nil {
			return Outcome{}, err
		}

		logrus.WithFields(logrus.Fields{
			"side": toMove,
			"move": m,
			"ply":  match.Board.Plies(),
		}).Debug("Move made")

		if match.OnMove != nil {
			match.OnMove(toMove, m)
		}
	}

	outcome := Outcome{Result: match.Board.Result(), Reason: match.Board.Reason()}
	if err := match.Remote.GameOver(ctx, match.Board); err != nil {
		// The opponent may already have hung up after seeing the end.
		logrus.WithError(err).Warn("Could not send the final history")
	}

	return outcome, nil
}

func (match *Match) make(m game.Move) error {
	if m.IsEdit() {
		return match.Board.Edit(m)
	}

	_, err := match.Board.MakeMove(m)
	return err
}

// Lines is a line oriented input and output, such as a terminal.
type Lines interface {
	ReadLine() (string, error)
	WriteLine(line string) error
}

// LinePlayer reads the local player's moves from lines, one per line,
// asking again when the text is not a legal move. The line "resign"
// resigns the game.
type LinePlayer struct {
	Lines Lines
}

func (player *LinePlayer) GetMove(ctx context.Context, board *game.Board) (game.Move, error) {
	for {
		if err := ctx.Err(); err != nil {
			return game.Move{}, err
		}

		line, err := player.Lines.ReadLine()
		if err != nil {
			return game.Move{}, err
		}

		token := strings.TrimSpace(line)
		switch token {
		case "":
			continue
		case "resign":
			return game.Move{}, ErrResign
		}

		m, err := board.ParseMove(token)
		if err != nil {
			if err := player.Lines.WriteLine("BAD_MOVE " + token); err != nil {
				return game.Move{}, err
			}
			continue
		}

		return m, nil
	}
}
