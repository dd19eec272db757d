package handlers

import (
	"testing"

	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
	"github.com/jason-s-yu/sudoku-lobby/internal/protocol"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct{}

func (sink) Enqueue(protocol.Message) error { return nil }

func decoded(t *testing.T, raw string) protocol.Inbound {
	t.Helper()
	in, err := protocol.Decode([]byte(raw))
	require.NoError(t, err)
	return in
}

func TestHandleLobbyMessageRoutes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	l := lobby.New(config.Default(), logger)
	for _, name := range []string{"alice", "bob"} {
		_, err := l.Admit(name, sink{})
		require.NoError(t, err)
	}

	require.NoError(t, handleLobbyMessage(l, "alice", decoded(t, `{"type":"createRoom"}`)))
	require.NoError(t, handleLobbyMessage(l, "alice", decoded(t, `{"type":"lock","roomId":"1","lock":true}`)))
	room, _ := l.Room(1)
	assert.True(t, room.Locked)

	require.NoError(t, handleLobbyMessage(l, "bob", decoded(t, `{"type":"join","roomId":1}`)))

	// lock always targets the host's own room, whatever roomId says.
	require.NoError(t, handleLobbyMessage(l, "alice", decoded(t, `{"type":"lock","roomId":"7","lock":false}`)))
	room, _ = l.Room(1)
	assert.False(t, room.Locked)

	require.NoError(t, handleLobbyMessage(l, "alice", decoded(t, `{"type":"changeRoom","change":"difficulty","difficulty":"3"}`)))
	room, _ = l.Room(1)
	assert.Equal(t, "bob", room.Guest)
	assert.Equal(t, lobby.Extreme, room.Difficulty)

	require.NoError(t, handleLobbyMessage(l, "bob", decoded(t, `{"type":"quit"}`)))
	user, _ := l.User("bob")
	assert.Equal(t, protocol.NoRoom, user.RoomID)
}

func TestHandleLobbyMessageRejectsIncompleteCommands(t *testing.T) {
	logger, _ := test.NewNullLogger()
	l := lobby.New(config.Default(), logger)
	_, err := l.Admit("alice", sink{})
	require.NoError(t, err)

	for _, raw := range []string{
		`{"type":"join"}`,
		`{"type":"lock","roomId":1}`,
		`{"type":"changeRoom","change":"difficulty"}`,
	} {
		assert.ErrorIs(t, handleLobbyMessage(l, "alice", decoded(t, raw)), errMissingField, raw)
	}
}

func TestHandleLobbyMessageIgnoresUnknown(t *testing.T) {
	logger, _ := test.NewNullLogger()
	l := lobby.New(config.Default(), logger)
	_, err := l.Admit("alice", sink{})
	require.NoError(t, err)

	for _, raw := range []string{
		`{"type":"dance"}`,
		`{}`,
		`{"type":"connect","name":"mallory"}`,
		`{"type":"changeRoom","change":"color","difficulty":1}`,
	} {
		assert.NoError(t, handleLobbyMessage(l, "alice", decoded(t, raw)), raw)
	}
	assert.Len(t, l.Snapshot().Users, 1)
}
