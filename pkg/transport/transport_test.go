package transport_test

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laptudirm.com/x/kibitz/pkg/transport"
)

func TestPipe(t *testing.T) {
	var out bytes.Buffer
	lines := transport.Stdio(strings.NewReader("move e2e4\r\nstatus\nexit"), &out)

	for _, want := range []string{"move e2e4", "status", "exit"} {
		line, err := lines.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}

	_, err := lines.ReadLine()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, lines.WriteLine("OK 1"))
	require.NoError(t, lines.WriteLine("OK"))
	assert.Equal(t, "OK 1\nOK\n", out.String())
	assert.NoError(t, lines.Close())
}

func TestAcceptTCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := make(chan net.Conn, 1)
	go func() {
		conn, err := net.Dial("tcp", listener.Addr().String())
		if err != nil {
			close(client)
			return
		}
		client <- conn
	}()

	lines, err := transport.AcceptTCP(ctx, listener)
	require.NoError(t, err)
	defer lines.Close()

	conn, ok := <-client
	require.True(t, ok)
	defer conn.Close()

	_, err = conn.Write([]byte("status\n"))
	require.NoError(t, err)

	line, err := lines.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "status", line)

	require.NoError(t, lines.WriteLine("* fen"))
	response, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "* fen\n", response)

	// Only one controller is served.
	_, err = net.DialTimeout("tcp", listener.Addr().String(), time.Second)
	assert.Error(t, err)
}

func TestAcceptTCPCancelled(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = transport.AcceptTCP(ctx, listener)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcceptWebSocket(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws://" + listener.Addr().String() + "/kibitz"
	client := make(chan *websocket.Conn, 1)
	go func() {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			close(client)
			return
		}
		client <- conn
	}()

	lines, err := transport.AcceptWebSocket(ctx, listener, "/kibitz")
	require.NoError(t, err)

	conn, ok := <-client
	require.True(t, ok)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("move e2e4\n")))
	line, err := lines.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "move e2e4", line)

	require.NoError(t, lines.WriteLine("OK 1"))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "OK 1", string(data))

	require.NoError(t, conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	))
	_, err = lines.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	_ = lines.Close()
}
