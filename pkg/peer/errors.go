package peer

import (
	"github.com/pkg/errors"
)

var (
	// ErrLostConnection matches every failure to read or write a frame.
	ErrLostConnection = errors.New("peer: lost connection")

	// ErrProtocol is returned when a peer sends frames which are malformed
	// or inconsistent with the game. The peer can't be trusted afterwards.
	ErrProtocol = errors.New("peer: protocol violation")

	// ErrResource is returned when the local history is too large to be
	// sent to the peer.
	ErrResource = errors.New("peer: history too large")

	ErrOpponentResigned = errors.New("peer: opponent resigned")
	ErrTerminated       = errors.New("peer: session terminated")
)

// TransportError is a failed or short read or write on the connection.
type TransportError struct {
	Op  string
	Err error
}

func (err *TransportError) Error() string {
	return "peer: lost connection: " + err.Op + ": " + err.Err.Error()
}

func (err *TransportError) Is(target error) bool {
	return target == ErrLostConnection
}

func (err *TransportError) Unwrap() error {
	return err.Err
}
