package lobby

import (
	"errors"

	"github.com/jason-s-yu/sudoku-lobby/internal/protocol"
)

// AdmissionError is a rejected connect handshake. Reason is sent to the client verbatim.
type AdmissionError struct {
	Reason string
}

func (e *AdmissionError) Error() string {
	return "admission rejected: " + e.Reason
}

var (
	ErrNameTooShort = &AdmissionError{Reason: protocol.ReasonNameTooShort}
	ErrNameTooLong  = &AdmissionError{Reason: protocol.ReasonNameTooLong}
	ErrNameTaken    = &AdmissionError{Reason: protocol.ReasonNameTaken}
	ErrServerFull   = &AdmissionError{Reason: protocol.ReasonServerFull}
)

// Out-of-state commands. The lobby reports them to the caller, which drops the
// command without telling the client.
var (
	ErrUnknownUser   = errors.New("unknown user")
	ErrAlreadyInRoom = errors.New("user already in a room")
	ErrNotInRoom     = errors.New("user not in a room")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomOccupied  = errors.New("room already has a guest")
	ErrNotHost       = errors.New("user is not the room host")
	ErrLobbyFull     = errors.New("room limit reached")
	ErrBadDifficulty = errors.New("unknown difficulty")
)

// ErrInvariant marks a broken lobby invariant: a programming error, never a client mistake.
var ErrInvariant = errors.New("lobby invariant violated")
