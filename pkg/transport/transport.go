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

// Package transport provides the line oriented connections over which a
// controller talks to the command server.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Lines reads and writes newline terminated lines.
type Lines interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

// Pipe is a Lines over a reader and a writer.
type Pipe struct {
	name string

	reader *bufio.Reader
	writer *bufio.Writer

	closer io.Closer
}

// Stdio returns a Lines over the given input and output streams, usually
// os.Stdin and os.Stdout.
func Stdio(in io.Reader, out io.Writer) *Pipe {
	return NewPipe("stdio", in, out, nil)
}

// NewPipe returns a Lines reading from r and writing to w. Closing it
// closes c if c is not nil.
func NewPipe(name string, r io.Reader, w io.Writer, c io.Closer) *Pipe {
	return &Pipe{
		name:   name,
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
		closer: c,
	}
}

// ReadLine returns the next line with its line ending removed. A final
// line without a line ending is returned before io.EOF.
func (pipe *Pipe) ReadLine() (string, error) {
	line, err := pipe.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}

	line = strings.TrimRight(line, "\r\n")
	logrus.Debugf("info: (%s)> %s", pipe.name, line)
	return line, nil
}

func (pipe *Pipe) WriteLine(line string) error {
	logrus.Debugf("info: (%s)< %s", pipe.name, line)

	if _, err := fmt.Fprintln(pipe.writer, line); err != nil {
		return err
	}

	return pipe.writer.Flush()
}

func (pipe *Pipe) Close() error {
	if pipe.closer == nil {
		return nil
	}

	return pipe.closer.Close()
}

// ListenTCP waits for one controller to connect to the given address and
// returns a Lines over that connection. The listener is closed once the
// connection has been accepted or the context is done.
func ListenTCP(ctx context.Context, address string) (*Pipe, error) {
	var config net.ListenConfig
	listener, err := config.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", address)
	}

	return AcceptTCP(ctx, listener)
}

// AcceptTCP accepts a single connection from listener, closes the listener
// and returns a Lines over the connection.
func AcceptTCP(ctx context.Context, listener net.Listener) (*Pipe, error) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = listener.Close()
		case <-done:
		}
	}()

	logrus.WithField("address", listener.Addr()).Info("Waiting for a controller")
	conn, err := listener.Accept()
	_ = listener.Close()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "accept")
	}

	logrus.WithField("remote", conn.RemoteAddr()).Info("Controller connected")
	return NewPipe(conn.RemoteAddr().String(), conn, conn, conn), nil
}
