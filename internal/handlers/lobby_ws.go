// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
	"github.com/jason-s-yu/sudoku-lobby/internal/middleware"
	"github.com/jason-s-yu/sudoku-lobby/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Reasons a connection's context gets cancelled. They pick the close code.
var (
	errSlowConsumer = errors.New("client cannot keep up with lobby events")
	errShuttingDown = errors.New("server shutting down")
	errWriteFailed  = errors.New("write to client failed")
	errIdle         = errors.New("receive timeout")
)

// shutdownGrace bounds how long Listen waits for live sessions to wind down.
const shutdownGrace = 10 * time.Second

// Supervisor accepts lobby connections and runs one receive loop per client.
type Supervisor struct {
	lobby *lobby.Lobby
	cfg   config.Config
	log   logrus.FieldLogger

	// ctx is cancelled on shutdown; every session context derives from it.
	ctx  context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	alive    bool
	sessions sync.WaitGroup
}

// NewSupervisor creates a live supervisor feeding connections into l.
func NewSupervisor(l *lobby.Lobby, cfg config.Config, logger logrus.FieldLogger) *Supervisor {
	ctx, stop := context.WithCancel(context.Background())
	return &Supervisor{
		lobby: l,
		cfg:   cfg,
		log:   logger,
		ctx:   ctx,
		stop:  stop,
		alive: true,
	}
}

// Alive reports whether the supervisor still takes new connections.
func (s *Supervisor) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Listen serves handler on ln until ctx is cancelled or serving fails. net/http
// accepts on its own goroutine and hands every connection off immediately, so one
// slow client never holds up the accept loop.
func (s *Supervisor) Listen(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("lobby server listening")

	var serveErr error
	select {
	case serveErr = <-errc:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	s.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("http shutdown: %w", err)
	}
	return serveErr
}

// Shutdown stops taking connections, cancels every live session and waits for them
// to leave the lobby or for ctx to expire.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	s.mu.Unlock()

	s.log.Info("lobby server shutting down")
	s.stop()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("gave up waiting for lobby sessions to close")
	}
}

// ServeHTTP upgrades the request and runs the session on the handler goroutine.
func (s *Supervisor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.begin() {
		http.Error(w, errShuttingDown.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.sessions.Done()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"lobby"},
		OriginPatterns: []string{"*"}, // browsers and the desktop client both connect
	})
	if err != nil {
		s.log.Warnf("websocket accept error: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.HandleConnection(ctx, NewWebSocketTransport(c, r.RemoteAddr))
}

// begin registers a session unless the supervisor is shutting down.
func (s *Supervisor) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return false
	}
	s.sessions.Add(1)
	return true
}

// HandleConnection runs one client from handshake to removal. It returns once the
// client has left the lobby and the transport is closed.
func (s *Supervisor) HandleConnection(parent context.Context, t Transport) {
	session := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"session": session, "remote": t.RemoteAddr()})
	middleware.LogWebSocketConnect(s.log, t.RemoteAddr(), session)

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	stopOnShutdown := context.AfterFunc(s.ctx, func() { cancel(errShuttingDown) })
	defer stopOnShutdown()

	name, ok := s.handshake(ctx, t, log)
	if !ok {
		return
	}

	queue := lobby.NewQueue(s.cfg.OutboxSize)
	if _, err := s.lobby.Admit(name, queue); err != nil {
		var rejected *lobby.AdmissionError
		if errors.As(err, &rejected) {
			log.WithField("user", name).Infof("admission rejected: %s", rejected.Reason)
			s.reject(ctx, t, rejected.Reason, AdmissionRejectedError)
		} else {
			log.WithField("user", name).Errorf("admission failed: %v", err)
			_ = t.Close(websocket.StatusInternalError, "admission failed")
		}
		return
	}
	log = log.WithField("user", name)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.writePump(ctx, cancel, t, queue, log)
	}()
	go func() {
		select {
		case <-queue.Done():
			cancel(errSlowConsumer)
		case <-ctx.Done():
		}
	}()

	readErr := s.readPump(ctx, t, name, log)
	cause := context.Cause(ctx)
	cancel(nil)

	if err := s.lobby.Remove(name); err != nil {
		log.Errorf("removing user: %v", err)
	}
	queue.Close()
	<-pumpDone

	code, reason := closeStatus(cause, readErr)
	_ = t.Close(code, reason)
	if cause != nil {
		readErr = cause
	}
	middleware.LogWebSocketDisconnect(s.log, t.RemoteAddr(), session, readErr)
}

// handshake waits for the connect request. Anything else gets "not connected".
func (s *Supervisor) handshake(ctx context.Context, t Transport, log logrus.FieldLogger) (string, bool) {
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	data, err := t.Read(hctx)
	if err != nil && !errors.Is(err, ErrUnsupportedFrame) {
		log.Debugf("handshake read failed: %v", err)
		_ = t.Close(websocket.StatusPolicyViolation, "no connect request")
		return "", false
	}
	var in protocol.Inbound
	if err == nil {
		in, err = protocol.Decode(data)
	}
	if err != nil || in.Type != protocol.TypeConnect {
		log.Debugf("first message was not a connect request (err=%v type=%q)", err, in.Type)
		s.reject(ctx, t, protocol.ReasonNotConnected, NotConnectedError)
		return "", false
	}
	return in.Name, true
}

// reject sends an error message straight down the transport and closes it.
func (s *Supervisor) reject(ctx context.Context, t Transport, reason string, code websocket.StatusCode) {
	if data, err := protocol.Error(reason).Encode(); err == nil {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
		if err := t.Write(wctx, data); err != nil {
			s.log.Debugf("sending rejection %q: %v", reason, err)
		}
		cancel()
	}
	_ = t.Close(code, reason)
}

// readPump blocks on the transport, routing one command at a time, until the
// connection fails, idles out or the session is cancelled.
func (s *Supervisor) readPump(ctx context.Context, t Transport, name string, log logrus.FieldLogger) error {
	for {
		rctx, cancel := ctx, context.CancelFunc(func() {})
		if s.cfg.ReceiveTimeout > 0 {
			rctx, cancel = context.WithTimeout(ctx, s.cfg.ReceiveTimeout)
		}
		data, err := t.Read(rctx)
		idle := rctx.Err() != nil && ctx.Err() == nil
		cancel()

		if err != nil {
			if errors.Is(err, ErrUnsupportedFrame) {
				log.Debug("ignoring non-text frame")
				continue
			}
			if idle {
				return errIdle
			}
			return err
		}

		in, err := protocol.Decode(data)
		if err != nil {
			log.Debugf("ignoring malformed message: %v", err)
			continue
		}
		if err := handleLobbyMessage(s.lobby, name, in); err != nil {
			if errors.Is(err, lobby.ErrInvariant) {
				log.Errorf("lobby command %q failed: %v", in.Type, err)
			} else {
				log.Debugf("dropped lobby command %q: %v", in.Type, err)
			}
		}
	}
}

// writePump drains the user's queue to the transport. A failed or timed out write
// ends the session.
func (s *Supervisor) writePump(ctx context.Context, cancel context.CancelCauseFunc, t Transport, queue *lobby.Queue, log logrus.FieldLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-queue.Messages():
			if !ok {
				return
			}
			data, err := msg.Encode()
			if err != nil {
				log.Warnf("failed to marshal outgoing %s: %v", msg.Type(), err)
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
			err = t.Write(wctx, data)
			wcancel()
			if err != nil {
				log.Warnf("failed to write %s to client: %v", msg.Type(), err)
				cancel(fmt.Errorf("%w: %v", errWriteFailed, err))
				return
			}
		}
	}
}

func closeStatus(cause, readErr error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(cause, errShuttingDown):
		return websocket.StatusGoingAway, errShuttingDown.Error()
	case errors.Is(cause, errSlowConsumer), errors.Is(cause, errWriteFailed):
		return SlowConsumerError, errSlowConsumer.Error()
	case errors.Is(readErr, errIdle):
		return IdleTimeoutError, errIdle.Error()
	default:
		return websocket.StatusNormalClosure, "bye"
	}
}
