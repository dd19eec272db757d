package lobby

import "github.com/google/uuid"

// EventKind names a lobby mutation recorded in the journal.
type EventKind string

const (
	EventUserAdmitted    EventKind = "user_admitted"
	EventUserRemoved     EventKind = "user_removed"
	EventRoomCreated     EventKind = "room_created"
	EventRoomJoined      EventKind = "room_joined"
	EventRoomLeft        EventKind = "room_left"
	EventRoomHostChanged EventKind = "room_host_changed"
	EventRoomRemoved     EventKind = "room_removed"
	EventRoomLocked      EventKind = "room_locked"
	EventRoomDifficulty  EventKind = "room_difficulty"
)

// Event is one journal record.
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Kind      EventKind              `json:"kind"`
	User      string                 `json:"user,omitempty"`
	RoomID    int                    `json:"room_id,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Timestamp int64                  `json:"timestamp"` // unix millis
}

// Journal receives every lobby mutation in the order it happened. Record is called
// with the lobby lock held and must not block.
type Journal interface {
	Record(ev Event)
}
