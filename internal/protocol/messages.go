// internal/protocol/messages.go
package protocol

import (
	"encoding/json"
	"strconv"
)

// Message types. Some names are used in both directions.
const (
	TypeConnect      = "connect"
	TypeError        = "error"
	TypeServerConfig = "serverConfig"
	TypeUsersList    = "usersList"
	TypeAddUser      = "addUser"
	TypeRemoveUser   = "removeUser"
	TypeChangeUser   = "changeUser"
	TypeRoomsList    = "roomsList"
	TypeAddRoom      = "addRoom"
	TypeRemoveRoom   = "removeRoom"
	TypeChangeRoom   = "changeRoom"
	TypeCreateRoom   = "createRoom"
	TypeJoin         = "join"
	TypeLock         = "lock"
	TypeQuit         = "quit"
)

// Values of the "change" field.
const (
	ChangeRoomID     = "roomId"
	ChangeHost       = "host"
	ChangeGuest      = "guest"
	ChangeLock       = "lock"
	ChangeDifficulty = "difficulty"
)

// Roles carried by the "as" field of a join reply.
const (
	AsHost  = "host"
	AsGuest = "guest"
)

// Admission error reasons. The client shows them verbatim.
const (
	ReasonNotConnected = "not connected"
	ReasonNameTooShort = "too short user name"
	ReasonNameTooLong  = "too long user name"
	ReasonNameTaken    = "user with this name already exist"
	ReasonServerFull   = "server full"
)

// NoRoom is the wire id of "not in any room".
const NoRoom = 0

// Message is one outbound JSON object. Every message carries a "type" key.
type Message map[string]interface{}

// Type returns the message's type field.
func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

// Encode renders the message as a single JSON object.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// FormatRoomID renders a room id the way the list and change events carry it.
func FormatRoomID(id int) string {
	return strconv.Itoa(id)
}

func Connected() Message {
	return Message{"type": TypeConnect}
}

func Error(reason string) Message {
	return Message{"type": TypeError, "reason": reason}
}

// ServerConfig copies settings into a serverConfig message.
func ServerConfig(settings map[string]interface{}) Message {
	msg := Message{}
	for k, v := range settings {
		msg[k] = v
	}
	msg["type"] = TypeServerConfig
	return msg
}

func UsersList(roomIDs, names []string) Message {
	return Message{"type": TypeUsersList, "roomIds": roomIDs, "names": names}
}

func AddUser(name string, roomID int) Message {
	return Message{"type": TypeAddUser, "roomId": FormatRoomID(roomID), "name": name}
}

func RemoveUser(name string) Message {
	return Message{"type": TypeRemoveUser, "name": name}
}

func ChangeUserRoom(name string, roomID int) Message {
	return Message{
		"type":   TypeChangeUser,
		"change": ChangeRoomID,
		"name":   name,
		"roomId": FormatRoomID(roomID),
	}
}

func RoomsList(ids, hosts, guests []string, locks []bool) Message {
	return Message{
		"type":   TypeRoomsList,
		"ids":    ids,
		"hosts":  hosts,
		"guests": guests,
		"locks":  locks,
	}
}

func AddRoom(id int, host, guest string, locked bool) Message {
	return Message{
		"type":   TypeAddRoom,
		"id":     FormatRoomID(id),
		"host":   host,
		"guest":  guest,
		"locked": locked,
	}
}

func RemoveRoom(id int) Message {
	return Message{"type": TypeRemoveRoom, "id": FormatRoomID(id)}
}

func changeRoom(id int, change string) Message {
	return Message{"type": TypeChangeRoom, "change": change, "roomId": FormatRoomID(id)}
}

func RoomHostChanged(id int, host string) Message {
	m := changeRoom(id, ChangeHost)
	m["host"] = host
	return m
}

func RoomGuestChanged(id int, guest string) Message {
	m := changeRoom(id, ChangeGuest)
	m["guest"] = guest
	return m
}

func RoomLockChanged(id int, locked bool) Message {
	m := changeRoom(id, ChangeLock)
	m["lock"] = locked
	return m
}

func RoomDifficultyChanged(id int, difficulty int) Message {
	m := changeRoom(id, ChangeDifficulty)
	m["difficulty"] = difficulty
	return m
}

// Join is the private reply telling a user which room it entered and as what.
// Unlike the broadcast events its roomId is numeric.
func Join(roomID int, as, host, guest string, locked bool, difficulty int) Message {
	return Message{
		"type":       TypeJoin,
		"roomId":     roomID,
		"as":         as,
		"host":       host,
		"guest":      guest,
		"locked":     locked,
		"difficulty": difficulty,
	}
}

func Quit() Message {
	return Message{"type": TypeQuit}
}
