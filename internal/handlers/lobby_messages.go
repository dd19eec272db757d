// internal/handlers/lobby_messages.go
package handlers

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/sudoku-lobby/internal/lobby"
	"github.com/jason-s-yu/sudoku-lobby/internal/protocol"
)

// errMissingField marks a command that lacks a field its type requires.
var errMissingField = errors.New("missing field")

// handleLobbyMessage routes one decoded command from an admitted user. Unknown
// types, including a second connect, are ignored.
func handleLobbyMessage(l *lobby.Lobby, name string, in protocol.Inbound) error {
	switch in.Type {
	case protocol.TypeCreateRoom:
		_, err := l.CreateRoom(name)
		return err

	case protocol.TypeJoin:
		if !in.RoomID.Set {
			return fmt.Errorf("join: roomId: %w", errMissingField)
		}
		_, err := l.JoinRoom(name, in.RoomID.Value)
		return err

	case protocol.TypeLock:
		if in.Lock == nil {
			return fmt.Errorf("lock: lock: %w", errMissingField)
		}
		return l.LockRoom(name, *in.Lock)

	case protocol.TypeQuit:
		return l.QuitRoom(name)

	case protocol.TypeChangeRoom:
		if in.Change != protocol.ChangeDifficulty {
			return nil
		}
		if !in.Difficulty.Set {
			return fmt.Errorf("changeRoom: difficulty: %w", errMissingField)
		}
		return l.ChangeDifficulty(name, lobby.Difficulty(in.Difficulty.Value))

	default:
		return nil
	}
}
