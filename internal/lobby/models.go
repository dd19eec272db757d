// internal/lobby/models.go
package lobby

import "github.com/jason-s-yu/sudoku-lobby/internal/protocol"

// Difficulty is the puzzle level a host picks for the room.
type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
	Extreme
)

var difficultyNames = [...]string{"easy", "medium", "hard", "extreme"}

// Valid reports whether d is one of the known levels.
func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Extreme
}

func (d Difficulty) String() string {
	if !d.Valid() {
		return "unknown"
	}
	return difficultyNames[d]
}

// Player fills one slot of a room. The zero value is an empty slot.
type Player struct {
	Name   string
	outbox Outbox
}

// Occupied reports whether somebody sits in the slot.
func (p Player) Occupied() bool {
	return p.Name != ""
}

// Room is a two-slot game session. A room always has a host while it is registered.
type Room struct {
	ID         int
	Host       Player
	Guest      Player
	Locked     bool
	Difficulty Difficulty
}

// promoteGuest hands the host slot to the guest and empties the guest slot.
func (r *Room) promoteGuest() {
	r.Host = r.Guest
	r.Guest = Player{}
}

func (r *Room) view() RoomView {
	return RoomView{
		ID:         r.ID,
		Host:       r.Host.Name,
		Guest:      r.Guest.Name,
		Locked:     r.Locked,
		Difficulty: r.Difficulty,
	}
}

// User is a connected client that passed admission.
type User struct {
	Name   string
	RoomID int // protocol.NoRoom when not in a room
	outbox Outbox
}

// InRoom reports whether the user occupies a room slot.
func (u *User) InRoom() bool {
	return u.RoomID != protocol.NoRoom
}

// UserView is a read-only copy of a user's lobby-visible state.
type UserView struct {
	Name   string `json:"name"`
	RoomID int    `json:"roomId"`
}

// RoomView is a read-only copy of a room's lobby-visible state.
type RoomView struct {
	ID         int        `json:"id"`
	Host       string     `json:"host"`
	Guest      string     `json:"guest"`
	Locked     bool       `json:"locked"`
	Difficulty Difficulty `json:"difficulty"`
}

// Snapshot is the full lobby as a newly admitted client first sees it.
type Snapshot struct {
	Users []UserView `json:"users"`
	Rooms []RoomView `json:"rooms"`
}

// UsersList renders the user half of the snapshot as a usersList message.
func (s Snapshot) UsersList() protocol.Message {
	roomIDs := make([]string, 0, len(s.Users))
	names := make([]string, 0, len(s.Users))
	for _, u := range s.Users {
		roomIDs = append(roomIDs, protocol.FormatRoomID(u.RoomID))
		names = append(names, u.Name)
	}
	return protocol.UsersList(roomIDs, names)
}

// RoomsList renders the room half of the snapshot as a roomsList message.
func (s Snapshot) RoomsList() protocol.Message {
	ids := make([]string, 0, len(s.Rooms))
	hosts := make([]string, 0, len(s.Rooms))
	guests := make([]string, 0, len(s.Rooms))
	locks := make([]bool, 0, len(s.Rooms))
	for _, r := range s.Rooms {
		ids = append(ids, protocol.FormatRoomID(r.ID))
		hosts = append(hosts, r.Host)
		guests = append(guests, r.Guest)
		locks = append(locks, r.Locked)
	}
	return protocol.RoomsList(ids, hosts, guests, locks)
}
