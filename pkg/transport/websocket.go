package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// WebSocket is a Lines over a websocket connection. Every text message is
// one line.
type WebSocket struct {
	conn *websocket.Conn
}

// ListenWebSocket serves websocket upgrades on the given address and path
// and returns the first connection which is upgraded successfully.
func ListenWebSocket(ctx context.Context, address, path string) (*WebSocket, error) {
	var config net.ListenConfig
	listener, err := config.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", address)
	}

	return AcceptWebSocket(ctx, listener, path)
}

// AcceptWebSocket waits for one websocket controller on listener. The
// listener is closed before returning; later upgrade attempts are refused.
func AcceptWebSocket(ctx context.Context, listener net.Listener, path string) (*WebSocket, error) {
	upgrader := websocket.Upgrader{
		// Controllers are local programs, not browsers on other origins.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	var (
		mu       sync.Mutex
		accepted bool
		conns    = make(chan *websocket.Conn, 1)
	)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		if accepted {
			http.Error(w, "a controller is already connected", http.StatusConflict)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Debug("Websocket upgrade failed")
			return
		}

		accepted = true
		conns <- conn
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Debug("Websocket server stopped")
		}
	}()
	defer server.Close()

	logrus.WithField("address", listener.Addr()).Info("Waiting for a websocket controller")

	select {
	case conn := <-conns:
		logrus.WithField("remote", conn.RemoteAddr()).Info("Controller connected")
		return &WebSocket{conn: conn}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewWebSocket wraps an already established connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

func (ws *WebSocket) ReadLine() (string, error) {
	for {
		kind, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}

		if kind != websocket.TextMessage {
			logrus.WithField("type", kind).Debug("Ignoring non-text websocket message")
			continue
		}

		line := strings.TrimRight(string(data), "\r\n")
		logrus.Debugf("info: (%s)> %s", ws.conn.RemoteAddr(), line)
		return line, nil
	}
}

func (ws *WebSocket) WriteLine(line string) error {
	logrus.Debugf("info: (%s)< %s", ws.conn.RemoteAddr(), line)
	return ws.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (ws *WebSocket) Close() error {
	_ = ws.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	return ws.conn.Close()
}
