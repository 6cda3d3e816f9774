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

package peer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"laptudirm.com/x/kibitz/pkg/game"
)

// Every frame on the wire is
//
//	[u32 size][8 byte tag][payload]
//
// where size counts the tag and the payload. Integers are in the byte
// order of the host, so both peers must run on machines of the same
// endianness.
const (
	TagSize = 8

	TagPlayers = "players "
	TagHistory = "history "
	TagResign  = "resign  "

	// MaxPlies is the largest history a peer will accept.
	MaxPlies = 1024
)

var order = binary.NativeEndian

// Role is who controls a side, from the point of view of the peer which
// receives the handshake.
type Role byte

const (
	Human    Role = 'H' // the receiving peer's local player
	Internet Role = 'I' // the other peer
)

// Message is one decoded frame. The set of messages is closed: Handshake,
// History, Resign and Unknown.
type Message interface {
	Tag() string
	message()
}

// Handshake is sent by the accepting peer right after the connection is
// established. Roles is indexed by side, white first.
type Handshake struct {
	Roles [2]Role
}

// History is the complete list of records of a game.
type History struct {
	Moves []game.Move
}

// Resign notifies the peer that the sender has resigned.
type Resign struct{}

// Unknown is a frame with a tag this implementation does not understand.
// Its payload has been skipped.
type Unknown struct {
	Type string
	Size uint32
}

func (Handshake) Tag() string { return TagPlayers }
func (History) Tag() string   { return TagHistory }
func (Resign) Tag() string    { return TagResign }
func (m Unknown) Tag() string { return m.Type }

func (Handshake) message() {}
func (History) message()   {}
func (Resign) message()    {}
func (Unknown) message()   {}

// HandshakeFor returns the handshake to send to a peer playing remote.
// The receiver sees its own side as Human and the other as Internet.
func HandshakeFor(remote Side) Handshake {
	var hs Handshake
	hs.Roles[remote] = Human
	hs.Roles[remote.Other()] = Internet
	return hs
}

// Side returns the side the receiver of the handshake plays.
func (hs Handshake) Side() Side {
	if hs.Roles[White] == Human {
		return White
	}
	return Black
}

func payload(m Message) ([]byte, error) {
	switch m := m.(type) {
	case Handshake:
		return []byte{byte(m.Roles[White]), byte(m.Roles[Black])}, nil

	case History:
		if len(m.Moves) > MaxPlies {
			return nil, errors.Wrapf(ErrResource, "history of %d plies", len(m.Moves))
		}

		data := make([]byte, 4, 4+len(m.Moves)*game.RecordSize)
		order.PutUint32(data, uint32(len(m.Moves)))
		for _, mov := range m.Moves {
			record, err := mov.MarshalBinary()
			if err != nil {
				return nil, err
			}
			data = append(data, record...)
		}
		return data, nil

	case Resign:
		return nil, nil

	default:
		return nil, errors.Errorf("peer: can't encode %T", m)
	}
}

// Encode writes m to w as a single frame.
func Encode(w io.Writer, m Message) error {
	body, err := payload(m)
	if err != nil {
		return err
	}

	frame := make([]byte, 4+TagSize+len(body))
	order.PutUint32(frame, uint32(TagSize+len(body)))
	copy(frame[4:], m.Tag())
	copy(frame[4+TagSize:], body)

	n, err := w.Write(frame)
	switch {
	case err != nil:
		return &TransportError{Op: "send " + m.Tag(), Err: err}
	case n != len(frame):
		return &TransportError{Op: "send " + m.Tag(), Err: io.ErrShortWrite}
	}

	return nil
}

// Decode reads exactly one frame from r. Frames with an unknown tag are
// consumed completely and returned as Unknown.
func Decode(r io.Reader) (Message, error) {
	var header [4 + TagSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, &TransportError{Op: "receive header", Err: err}
	}

	size := order.Uint32(header[:4])
	tag := string(header[4:])

	if size < TagSize {
		return nil, errors.Wrapf(ErrProtocol, "frame size %d is smaller than its tag", size)
	}
	length := size - TagSize

	switch tag {
	case TagPlayers:
		return decodeHandshake(r, length)
	case TagHistory:
		return decodeHistory(r, length)
	case TagResign:
		// A resignation carries nothing, but skip whatever was sent.
		if err := discard(r, length); err != nil {
			return nil, err
		}
		return Resign{}, nil
	default:
		if err := discard(r, length); err != nil {
			return nil, err
		}
		return Unknown{Type: tag, Size: size}, nil
	}
}

func decodeHandshake(r io.Reader, length uint32) (Message, error) {
	if length != 2 {
		return nil, errors.Wrapf(ErrProtocol, "handshake payload of %d bytes", length)
	}

	var roles [2]byte
	if _, err := io.ReadFull(r, roles[:]); err != nil {
		return nil, &TransportError{Op: "receive handshake", Err: err}
	}

	hs := Handshake{Roles: [2]Role{Role(roles[0]), Role(roles[1])}}
	if hs.Roles != HandshakeFor(White).Roles && hs.Roles != HandshakeFor(Black).Roles {
		return nil, errors.Wrapf(ErrProtocol, "handshake roles %q", roles[:])
	}

	return hs, nil
}

func decodeHistory(r io.Reader, length uint32) (Message, error) {
	if length < 4 {
		return nil, errors.Wrapf(ErrProtocol, "history payload of %d bytes", length)
	}

	var count [4]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return nil, &TransportError{Op: "receive ply count", Err: err}
	}

	plies := order.Uint32(count[:])
	if plies > MaxPlies {
		return nil, errors.Wrapf(ErrProtocol, "history of %d plies", plies)
	}

	if length != 4+plies*game.RecordSize {
		return nil, errors.Wrapf(ErrProtocol, "history of %d plies in %d bytes", plies, length)
	}

	data := make([]byte, plies*game.RecordSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, &TransportError{Op: "receive history", Err: err}
	}

	moves := make([]game.Move, plies)
	for i := range moves {
		record := data[i*game.RecordSize : (i+1)*game.RecordSize]
		if err := moves[i].UnmarshalBinary(record); err != nil {
			return nil, errors.Wrapf(ErrProtocol, "ply %d: %v", i, err)
		}
	}

	return History{Moves: moves}, nil
}

func discard(r io.Reader, length uint32) error {
	if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
		return &TransportError{Op: fmt.Sprintf("skip %d bytes", length), Err: err}
	}

	return nil
}
