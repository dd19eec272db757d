package handlers

import (
	"context"
	"errors"

	"github.com/coder/websocket"
)

// ErrUnsupportedFrame is returned by Read for frames the lobby does not speak. The
// receive loop skips them.
var ErrUnsupportedFrame = errors.New("unsupported frame")

// maxFrameSize bounds a single client message. Lobby commands are tiny.
const maxFrameSize = 4096

// Transport is one client connection carrying one JSON object per frame.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
	RemoteAddr() string
}

type wsTransport struct {
	conn   *websocket.Conn
	remote string
}

// NewWebSocketTransport adapts an accepted websocket connection.
func NewWebSocketTransport(c *websocket.Conn, remote string) Transport {
	c.SetReadLimit(maxFrameSize)
	return &wsTransport{conn: c, remote: remote}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, ErrUnsupportedFrame
	}
	return data, nil
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code websocket.StatusCode, reason string) error {
	return t.conn.Close(code, reason)
}

func (t *wsTransport) RemoteAddr() string {
	return t.remote
}
