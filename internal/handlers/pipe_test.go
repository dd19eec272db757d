package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

var errPipeClosed = errors.New("pipe closed")

// pipe is an in-memory Transport. The test plays the client through send and next.
type pipe struct {
	in     chan []byte
	out    chan []byte
	hangup chan struct{}
	closed chan struct{}
	stall  chan struct{} // when non-nil, writes wait on it

	once     sync.Once
	hangOnce sync.Once
	mu       sync.Mutex
	code     websocket.StatusCode
	reason   string
}

func newPipe() *pipe {
	return &pipe{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		hangup: make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (p *pipe) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.hangup:
		return nil, io.EOF
	case <-p.closed:
		return nil, errPipeClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipe) Write(ctx context.Context, data []byte) error {
	if p.stall != nil {
		select {
		case <-p.stall:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case p.out <- data:
		return nil
	case <-p.closed:
		return errPipeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipe) Close(code websocket.StatusCode, reason string) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.code, p.reason = code, reason
		p.mu.Unlock()
		close(p.closed)
	})
	return nil
}

func (p *pipe) RemoteAddr() string { return "pipe" }

// send writes one client frame.
func (p *pipe) send(t *testing.T, msg map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	p.sendRaw(t, data)
}

func (p *pipe) sendRaw(t *testing.T, data []byte) {
	t.Helper()
	select {
	case p.in <- data:
	case <-time.After(waitFor):
		t.Fatal("server is not reading")
	}
}

// next returns the next frame the server wrote.
func (p *pipe) next(t *testing.T) map[string]interface{} {
	t.Helper()
	select {
	case data := <-p.out:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(waitFor):
		t.Fatal("no message from server")
		return nil
	}
}

// until skips frames up to and including the first of the given type.
func (p *pipe) until(t *testing.T, typ string) map[string]interface{} {
	t.Helper()
	for {
		msg := p.next(t)
		if msg["type"] == typ {
			return msg
		}
	}
}

// hangUp makes the server's next read fail as if the client went away.
func (p *pipe) hangUp() {
	p.hangOnce.Do(func() { close(p.hangup) })
}

// closeCode waits for the server to close the pipe and returns the status it used.
func (p *pipe) closeCode(t *testing.T) websocket.StatusCode {
	t.Helper()
	select {
	case <-p.closed:
	case <-time.After(waitFor):
		t.Fatal("server did not close the connection")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

type harness struct {
	cfg   config.Config
	lobby *lobby.Lobby
	sup   *Supervisor
	log   *logrus.Logger
	hook  *test.Hook
}

func newHarness(t *testing.T, tweak func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.HandshakeTimeout = time.Second
	if tweak != nil {
		tweak(&cfg)
	}
	require.NoError(t, cfg.Validate())

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	l := lobby.New(cfg, logger)
	sup := NewSupervisor(l, cfg, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		sup.Shutdown(ctx)
	})
	return &harness{cfg: cfg, lobby: l, sup: sup, log: logger, hook: hook}
}

// serve runs a session over p and returns a channel closed when it ends.
func (h *harness) serve(p *pipe) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.sup.HandleConnection(context.Background(), p)
	}()
	return done
}

// connect opens a session for name and consumes its admission frames.
func (h *harness) connect(t *testing.T, name string) (*pipe, <-chan struct{}) {
	t.Helper()
	p := newPipe()
	done := h.serve(p)
	p.send(t, map[string]interface{}{"type": "connect", "name": name})
	for {
		msg := p.until(t, "addUser")
		if msg["name"] == name {
			return p, done
		}
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("session did not end")
	}
}
