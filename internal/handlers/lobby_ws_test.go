package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeRequiresConnectFirst(t *testing.T) {
	h := newHarness(t, nil)
	p := newPipe()
	done := h.serve(p)

	p.send(t, map[string]interface{}{"type": "createRoom"})

	msg := p.next(t)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "not connected", msg["reason"])
	assert.Equal(t, NotConnectedError, p.closeCode(t))
	waitDone(t, done)
	assert.Empty(t, h.lobby.Snapshot().Users)
}

func TestHandshakeRejectsGarbage(t *testing.T) {
	h := newHarness(t, nil)
	p := newPipe()
	done := h.serve(p)

	p.sendRaw(t, []byte("hello"))

	assert.Equal(t, "not connected", p.next(t)["reason"])
	assert.Equal(t, NotConnectedError, p.closeCode(t))
	waitDone(t, done)
}

func TestHandshakeTimesOut(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.HandshakeTimeout = 30 * time.Millisecond })
	p := newPipe()
	done := h.serve(p)

	assert.Equal(t, websocket.StatusPolicyViolation, p.closeCode(t))
	waitDone(t, done)
	assert.Empty(t, h.lobby.Snapshot().Users)
}

func TestAdmissionRejectionClosesConnection(t *testing.T) {
	h := newHarness(t, nil)
	p := newPipe()
	done := h.serve(p)

	p.send(t, map[string]interface{}{"type": "connect", "name": "ab"})

	msg := p.next(t)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "too short user name", msg["reason"])
	assert.Equal(t, AdmissionRejectedError, p.closeCode(t))
	waitDone(t, done)
}

func TestAdmissionSendsSnapshotInOrder(t *testing.T) {
	h := newHarness(t, nil)
	_, _ = h.connect(t, "alice")

	p := newPipe()
	h.serve(p)
	p.send(t, map[string]interface{}{"type": "connect", "name": "bob"})

	var types []string
	for i := 0; i < 5; i++ {
		types = append(types, p.next(t)["type"].(string))
	}
	assert.Equal(t, []string{"connect", "serverConfig", "usersList", "roomsList", "addUser"}, types)
}

func TestDuplicateNameLeavesFirstSessionAlone(t *testing.T) {
	h := newHarness(t, nil)
	first, _ := h.connect(t, "alice")

	second := newPipe()
	done := h.serve(second)
	second.send(t, map[string]interface{}{"type": "connect", "name": "alice"})

	assert.Equal(t, "user with this name already exist", second.next(t)["reason"])
	assert.Equal(t, AdmissionRejectedError, second.closeCode(t))
	waitDone(t, done)

	_, ok := h.lobby.User("alice")
	assert.True(t, ok)
	first.send(t, map[string]interface{}{"type": "createRoom"})
	assert.Equal(t, "host", first.until(t, "join")["as"])
}

func TestSessionPlaysThroughRoomLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	alice, aliceDone := h.connect(t, "alice")
	bob, bobDone := h.connect(t, "bob")
	alice.until(t, "addUser") // bob

	alice.send(t, map[string]interface{}{"type": "createRoom"})
	assert.Equal(t, "1", alice.next(t)["id"])
	changed := alice.next(t)
	assert.Equal(t, "changeUser", changed["type"])
	assert.Equal(t, "1", changed["roomId"])
	join := alice.next(t)
	assert.Equal(t, "join", join["type"])
	assert.Equal(t, float64(1), join["roomId"])
	assert.Equal(t, "host", join["as"])

	bob.until(t, "addRoom")
	bob.send(t, map[string]interface{}{"type": "join", "roomId": "1"})
	join = bob.until(t, "join")
	assert.Equal(t, "guest", join["as"])
	assert.Equal(t, "alice", join["host"])

	guest := alice.until(t, "changeRoom")
	assert.Equal(t, "guest", guest["change"])
	assert.Equal(t, "bob", guest["guest"])

	alice.send(t, map[string]interface{}{"type": "changeRoom", "change": "difficulty", "difficulty": 2})
	diff := bob.until(t, "changeRoom")
	for diff["change"] != "difficulty" {
		diff = bob.until(t, "changeRoom")
	}
	assert.Equal(t, float64(2), diff["difficulty"])

	bob.send(t, map[string]interface{}{"type": "quit"})
	bob.until(t, "quit")

	alice.hangUp()
	waitDone(t, aliceDone)
	assert.Equal(t, websocket.StatusNormalClosure, alice.closeCode(t))

	assert.Equal(t, "1", bob.until(t, "removeRoom")["id"])
	assert.Equal(t, "alice", bob.until(t, "removeUser")["name"])

	snap := h.lobby.Snapshot()
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "bob", snap.Users[0].Name)
	assert.Empty(t, snap.Rooms)

	bob.hangUp()
	waitDone(t, bobDone)
	assert.Empty(t, h.lobby.Snapshot().Users)
}

func TestMalformedCommandsAreIgnored(t *testing.T) {
	h := newHarness(t, nil)
	p, _ := h.connect(t, "alice")

	p.sendRaw(t, []byte("{not json"))
	p.send(t, map[string]interface{}{"type": "join"})
	p.send(t, map[string]interface{}{"type": "teleport"})
	p.send(t, map[string]interface{}{"type": "createRoom"})

	assert.Equal(t, "addRoom", p.next(t)["type"])
	_, ok := h.lobby.Room(1)
	assert.True(t, ok)

	var ignored []string
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.DebugLevel {
			ignored = append(ignored, e.Message)
		}
	}
	assert.Condition(t, func() bool {
		for _, m := range ignored {
			if strings.HasPrefix(m, "ignoring malformed message") {
				return true
			}
		}
		return false
	})
}

func TestHostDisconnectHandsRoomToGuest(t *testing.T) {
	h := newHarness(t, nil)
	alice, aliceDone := h.connect(t, "alice")
	bob, _ := h.connect(t, "bob")

	alice.send(t, map[string]interface{}{"type": "createRoom"})
	bob.until(t, "addRoom")
	bob.send(t, map[string]interface{}{"type": "join", "roomId": 1})
	bob.until(t, "join")

	alice.hangUp()
	waitDone(t, aliceDone)

	host := bob.until(t, "changeRoom")
	for host["change"] != "host" {
		host = bob.until(t, "changeRoom")
	}
	assert.Equal(t, "bob", host["host"])

	room, ok := h.lobby.Room(1)
	require.True(t, ok)
	assert.Equal(t, "bob", room.Host)
	assert.Empty(t, room.Guest)
}

func TestStalledWriterIsDisconnected(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.WriteTimeout = 20 * time.Millisecond })
	p := newPipe()
	p.stall = make(chan struct{})
	done := h.serve(p)

	p.send(t, map[string]interface{}{"type": "connect", "name": "slow"})

	assert.Equal(t, SlowConsumerError, p.closeCode(t))
	waitDone(t, done)
	_, ok := h.lobby.User("slow")
	assert.False(t, ok)
}

func TestOverflowingQueueIsDisconnected(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.OutboxSize = 8 })
	alice, _ := h.connect(t, "alice")

	slow := newPipe()
	slow.stall = make(chan struct{})
	slowDone := h.serve(slow)
	slow.send(t, map[string]interface{}{"type": "connect", "name": "slow"})
	require.Eventually(t, func() bool {
		_, ok := h.lobby.User("slow")
		return ok
	}, waitFor, 5*time.Millisecond)

	for i := 0; i < 4; i++ {
		alice.send(t, map[string]interface{}{"type": "createRoom"})
		alice.until(t, "join")
		alice.send(t, map[string]interface{}{"type": "quit"})
		alice.until(t, "quit")
	}

	assert.Equal(t, SlowConsumerError, slow.closeCode(t))
	waitDone(t, slowDone)
	assert.Equal(t, "slow", alice.until(t, "removeUser")["name"])
}

func TestIdleClientTimesOut(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.ReceiveTimeout = 40 * time.Millisecond })
	p, done := h.connect(t, "alice")

	assert.Equal(t, IdleTimeoutError, p.closeCode(t))
	waitDone(t, done)
	assert.Empty(t, h.lobby.Snapshot().Users)
}

func TestShutdownClosesSessionsAndRefusesNewOnes(t *testing.T) {
	h := newHarness(t, nil)
	p, done := h.connect(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	h.sup.Shutdown(ctx)

	assert.Equal(t, websocket.StatusGoingAway, p.closeCode(t))
	waitDone(t, done)
	assert.False(t, h.sup.Alive())
	assert.Empty(t, h.lobby.Snapshot().Users)

	w := httptest.NewRecorder()
	h.sup.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
