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

// Package peer keeps two games running in different processes in sync.
// Whenever it is the remote side's turn, the local peer sends the whole
// game history and waits for the remote peer to answer with its history,
// the last record of which is the move the opponent made.
package peer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"laptudirm.com/x/kibitz/pkg/game"
)

// Board is the game kept in sync with the peer.
type Board interface {
	// Init resets the board to the starting position.
	Init()

	Plies() int
	PastMove(ply int) game.Move

	MakeMove(m game.Move) (game.Undo, error)

	// Edit applies an edit record and saves it in the history.
	Edit(m game.Move) error
}

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Listening
	Connected
	Terminated
)

func (state State) String() string {
	switch state {
	case Disconnected:
		return "disconnected"
	case Listening:
		return "listening"
	case Connected:
		return "connected"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// Reason is why a session was terminated.
type Reason int

const (
	NoReason Reason = iota
	LostConnection
	OpponentResigned
	LocalResigned
)

func (reason Reason) String() string {
	switch reason {
	case NoReason:
		return "none"
	case LostConnection:
		return "lost connection"
	case OpponentResigned:
		return "opponent resigned"
	case LocalResigned:
		return "resigned"
	default:
		return fmt.Sprintf("Reason(%d)", int(reason))
	}
}

// Session is a game connection with one remote peer. It owns the
// listening socket (on the accepting side) and the connection, and
// closes both exactly once in Close.
type Session struct {
	setup *Setup

	listener net.Listener
	conn     net.Conn

	state  State
	reason Reason

	closeOnce sync.Once
	closeErr  error

	log *logrus.Entry
}

// Bind opens the listening socket for a hosted game on every local
// interface, at the port given by setup.
func Bind(ctx context.Context, setup *Setup) (*Session, error) {
	if err := setup.EnsureInitialized(); err != nil {
		return nil, err
	}

	var config net.ListenConfig
	listener, err := config.Listen(ctx, "tcp", fmt.Sprintf(":%d", setup.Port))
	if err != nil {
		return nil, errors.Wrapf(err, "peer: could not bind port %d", setup.Port)
	}

	session := &Session{
		setup:    setup,
		listener: listener,
		state:    Listening,
		log:      logrus.WithField("local", listener.Addr()),
	}

	session.log.WithField("addresses", setup.Addresses()).
		Info("Inform opponent of the server address")
	return session, nil
}

// Listen binds, waits for the opponent and sends the handshake.
func Listen(ctx context.Context, setup *Setup, remote Side) (*Session, error) {
	session, err := Bind(ctx, setup)
	if err != nil {
		return nil, err
	}

	if err := session.Accept(ctx, remote); err != nil {
		return nil, session.abandon(err)
	}

	return session, nil
}

// Dial connects to a hosting peer and reads its handshake, which tells
// which side the local player has.
func Dial(ctx context.Context, setup *Setup, address string) (*Session, Side, error) {
	if setup == nil {
		setup = &Setup{}
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, White, errors.Wrapf(err, "peer: could not connect to %s", address)
	}

	session := &Session{
		setup: setup,
		conn:  conn,
		state: Connected,
		log:   logrus.WithField("remote", conn.RemoteAddr()),
	}

	for {
		msg, err := session.read(ctx)
		if err != nil {
			return nil, White, session.abandon(err)
		}

		switch msg := msg.(type) {
		case Handshake:
			session.log.WithField("side", msg.Side()).Info("Connected to host")
			return session, msg.Side(), nil
		case Unknown:
			session.log.WithField("tag", msg.Type).Debug("Skipping unknown message")
		default:
			session.terminate(LostConnection)
			err := errors.Wrapf(ErrProtocol, "expected handshake, got %q", msg.Tag())
			return nil, White, session.abandon(err)
		}
	}
}

// abandon closes a session which failed to connect, keeping err as the
// primary error.
func (session *Session) abandon(err error) error {
	if closeErr := session.Close(); closeErr != nil {
		return multierror.Append(err, closeErr)
	}
	return err
}

// Accept waits for the opponent to connect and tells it which side it
// plays. No further connections are accepted.
func (session *Session) Accept(ctx context.Context, remote Side) error {
	if session.state != Listening {
		return errors.Errorf("peer: accept in state %s", session.state)
	}

	conn, err := session.accept(ctx)
	if err != nil {
		session.terminate(LostConnection)
		return err
	}

	session.conn = conn
	session.state = Connected
	session.log = session.log.WithField("remote", conn.RemoteAddr())
	session.log.Info("Established connection with remote client")

	return session.write(ctx, HandshakeFor(remote))
}

func (session *Session) accept(ctx context.Context) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		if l, ok := session.listener.(interface{ SetDeadline(time.Time) error }); ok {
			_ = l.SetDeadline(time.Unix(1, 0))
		}
	})
	defer stop()

	conn, err := session.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, errors.Wrap(err, "peer: accept")
	}

	return conn, nil
}

// Addr returns the address of the listening socket, or nil.
func (session *Session) Addr() net.Addr {
	if session.listener == nil {
		return nil
	}
	return session.listener.Addr()
}

func (session *Session) State() State   { return session.state }
func (session *Session) Reason() Reason { return session.reason }

// GetMove runs one turn of the remote player: the local history is sent
// and the opponent's move is received.
func (session *Session) GetMove(ctx context.Context, board Board) (game.Move, error) {
	if err := session.Send(ctx, board); err != nil {
		return game.Move{}, err
	}

	return session.Receive(ctx, board)
}

// Send sends the complete history of board, if there is any.
func (session *Session) Send(ctx context.Context, board Board) error {
	if err := session.ready(); err != nil {
		return err
	}

	plies := board.Plies()
	if plies == 0 {
		return nil
	}

	if plies > MaxPlies {
		return errors.Wrapf(ErrResource, "history of %d plies", plies)
	}

	moves := make([]game.Move, plies)
	for ply := range moves {
		moves[ply] = board.PastMove(ply)
	}

	return session.write(ctx, History{Moves: moves})
}

// Receive waits for the opponent's history. The board is reset and every
// record but the last is replayed on it; the last one is returned as the
// opponent's move, not yet made. If the opponent resigns instead,
// ErrOpponentResigned is returned.
func (session *Session) Receive(ctx context.Context, board Board) (game.Move, error) {
	if err := session.ready(); err != nil {
		return game.Move{}, err
	}

	for {
		msg, err := session.read(ctx)
		if err != nil {
			return game.Move{}, err
		}

		switch msg := msg.(type) {
		case History:
			return session.replay(board, msg.Moves)

		case Resign:
			session.terminate(OpponentResigned)
			return game.Move{}, ErrOpponentResigned

		case Handshake:
			session.log.Debug("Ignoring repeated handshake")

		case Unknown:
			// Probably from a newer version of the protocol.
			session.log.WithFields(logrus.Fields{
				"tag":  msg.Type,
				"size": msg.Size,
			}).Debug("Skipping unknown message")
		}
	}
}

func (session *Session) replay(board Board, moves []game.Move) (game.Move, error) {
	if len(moves) == 0 {
		session.terminate(LostConnection)
		return game.Move{}, errors.Wrap(ErrProtocol, "empty history")
	}

	board.Init()
	for ply, m := range moves[:len(moves)-1] {
		var err error
		if m.IsEdit() {
			err = board.Edit(m)
		} else {
			_, err = board.MakeMove(m)
		}

		if err != nil {
			session.terminate(LostConnection)
			return game.Move{}, errors.Wrapf(ErrProtocol, "replay ply %d: %v", ply, err)
		}
	}

	last := moves[len(moves)-1]
	session.log.WithFields(logrus.Fields{
		"plies": len(moves),
		"move":  last,
	}).Debug("Received history")
	return last, nil
}

// Resign tells the opponent that the local player resigns. The notice is
// not acknowledged.
func (session *Session) Resign(ctx context.Context) error {
	if err := session.ready(); err != nil {
		return err
	}

	if err := session.write(ctx, Resign{}); err != nil {
		return err
	}

	session.terminate(LocalResigned)
	return nil
}

// GameOver sends the final history so that the opponent's board ends up
// in the same state as the local one.
func (session *Session) GameOver(ctx context.Context, board Board) error {
	return session.Send(ctx, board)
}

// Close closes the connection and the listening socket. It may be called
// any number of times; only the first call closes anything.
func (session *Session) Close() error {
	session.closeOnce.Do(func() {
		session.terminate(LostConnection)

		var errs error
		if session.conn != nil {
			if err := session.conn.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}

		if session.listener != nil {
			if err := session.listener.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}

		session.closeErr = errs
	})

	return session.closeErr
}

func (session *Session) ready() error {
	switch session.state {
	case Connected:
		return nil
	case Terminated:
		return errors.Wrapf(ErrTerminated, "%s", session.reason)
	default:
		return errors.Errorf("peer: session is %s", session.state)
	}
}

// terminate moves the session into its terminal state. A terminated
// session keeps the reason it was first terminated for.
func (session *Session) terminate(reason Reason) {
	if session.state == Terminated {
		return
	}

	session.state = Terminated
	session.reason = reason
	if session.log != nil {
		session.log.WithField("reason", reason).Info("Session terminated")
	}
}

func (session *Session) read(ctx context.Context) (Message, error) {
	stop := session.guard(ctx)
	msg, err := Decode(session.conn)
	stop()

	if err != nil {
		session.terminate(LostConnection)
		return nil, session.cancelled(ctx, err)
	}

	session.log.WithField("tag", msg.Tag()).Trace("Received message")
	return msg, nil
}

func (session *Session) write(ctx context.Context, msg Message) error {
	stop := session.guard(ctx)
	err := Encode(session.conn, msg)
	stop()

	if err != nil {
		if errors.Is(err, ErrLostConnection) {
			session.terminate(LostConnection)
		}
		return session.cancelled(ctx, err)
	}

	session.log.WithField("tag", msg.Tag()).Trace("Sent message")
	return nil
}

// guard applies the context and the setup's timeout to the connection for
// the duration of one operation. The returned function ends the guard.
func (session *Session) guard(ctx context.Context) func() {
	ctxDeadline, hasDeadline := ctx.Deadline()
	if deadline, ok := session.setup.deadline(ctxDeadline, hasDeadline); ok {
		_ = session.conn.SetDeadline(deadline)
	} else {
		_ = session.conn.SetDeadline(time.Time{})
	}

	// An expired deadline unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() {
		_ = session.conn.SetDeadline(time.Unix(1, 0))
	})

	return func() { stop() }
}

// cancelled replaces the I/O error caused by the context being done with
// the context's error, keeping it a transport error.
func (session *Session) cancelled(ctx context.Context, err error) error {
	var transport *TransportError
	if ctx.Err() != nil && errors.As(err, &transport) {
		return &TransportError{Op: transport.Op, Err: ctx.Err()}
	}

	return err
}
