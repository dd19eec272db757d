// internal/lobby/rooms.go
package lobby

import (
	"fmt"
	"slices"

	"github.com/jason-s-yu/sudoku-lobby/internal/protocol"
	"github.com/sirupsen/logrus"
)

// CreateRoom opens a new room hosted by the named user, who must not be in a room.
// Everyone receives addRoom and changeUser; the host alone receives join.
func (l *Lobby) CreateRoom(name string) (RoomView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, err := l.userUnsafe(name)
	if err != nil {
		return RoomView{}, err
	}
	if u.InRoom() {
		return RoomView{}, fmt.Errorf("create by %q: %w", name, ErrAlreadyInRoom)
	}
	if l.cfg.MaxRooms > 0 && len(l.rooms) >= l.cfg.MaxRooms {
		return RoomView{}, fmt.Errorf("create by %q: %w", name, ErrLobbyFull)
	}

	id := l.lastRoomID + 1
	if _, existing := l.findRoomUnsafe(id); existing != nil {
		return RoomView{}, fmt.Errorf("%w: room id %d allocated twice", ErrInvariant, id)
	}
	l.lastRoomID = id

	room := &Room{
		ID:         id,
		Host:       Player{Name: u.Name, outbox: u.outbox},
		Difficulty: Easy,
	}
	l.rooms = append(l.rooms, room)
	u.RoomID = id

	l.broadcastUnsafe(protocol.AddRoom(room.ID, room.Host.Name, room.Guest.Name, room.Locked))
	l.broadcastUnsafe(protocol.ChangeUserRoom(u.Name, room.ID))
	l.sendUnsafe(u.Name, u.outbox, protocol.Join(room.ID, protocol.AsHost, room.Host.Name, room.Guest.Name, room.Locked, int(room.Difficulty)))

	l.recordUnsafe(EventRoomCreated, u.Name, room.ID, nil)
	l.roomLog(room.ID, u.Name).Info("room created")
	return room.view(), nil
}

// JoinRoom seats the named user as guest of room id. Missing and full rooms are
// refused, as is a user already in a room. The lock flag does not gate joining.
func (l *Lobby) JoinRoom(name string, id int) (RoomView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, err := l.userUnsafe(name)
	if err != nil {
		return RoomView{}, err
	}
	if u.InRoom() {
		return RoomView{}, fmt.Errorf("join %d by %q: %w", id, name, ErrAlreadyInRoom)
	}
	_, room := l.findRoomUnsafe(id)
	switch {
	case room == nil:
		return RoomView{}, fmt.Errorf("join %d by %q: %w", id, name, ErrRoomNotFound)
	case room.Guest.Occupied():
		return RoomView{}, fmt.Errorf("join %d by %q: %w", id, name, ErrRoomOccupied)
	}

	room.Guest = Player{Name: u.Name, outbox: u.outbox}
	u.RoomID = room.ID

	l.sendUnsafe(u.Name, u.outbox, protocol.Join(room.ID, protocol.AsGuest, room.Host.Name, room.Guest.Name, room.Locked, int(room.Difficulty)))
	l.broadcastUnsafe(protocol.RoomGuestChanged(room.ID, room.Guest.Name))
	l.broadcastUnsafe(protocol.ChangeUserRoom(u.Name, room.ID))

	l.recordUnsafe(EventRoomJoined, u.Name, room.ID, nil)
	l.roomLog(room.ID, u.Name).Info("guest joined room")
	return room.view(), nil
}

// LockRoom sets the lock flag of the named user's room. Only the host may do it.
func (l *Lobby) LockRoom(name string, locked bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.hostedRoomUnsafe(name)
	if err != nil {
		return fmt.Errorf("lock by %q: %w", name, err)
	}
	room.Locked = locked
	l.broadcastUnsafe(protocol.RoomLockChanged(room.ID, locked))

	l.recordUnsafe(EventRoomLocked, name, room.ID, map[string]interface{}{"locked": locked})
	l.roomLog(room.ID, name).WithField("locked", locked).Info("room lock changed")
	return nil
}

// ChangeDifficulty sets the difficulty of the named user's room. Only the host may
// do it, and only the two occupants are told.
func (l *Lobby) ChangeDifficulty(name string, d Difficulty) error {
	if !d.Valid() {
		return fmt.Errorf("difficulty %d by %q: %w", int(d), name, ErrBadDifficulty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.hostedRoomUnsafe(name)
	if err != nil {
		return fmt.Errorf("difficulty by %q: %w", name, err)
	}
	room.Difficulty = d

	msg := protocol.RoomDifficultyChanged(room.ID, int(d))
	l.sendUnsafe(room.Host.Name, room.Host.outbox, msg)
	if room.Guest.Occupied() {
		l.sendUnsafe(room.Guest.Name, room.Guest.outbox, msg)
	}

	l.recordUnsafe(EventRoomDifficulty, name, room.ID, map[string]interface{}{"difficulty": d.String()})
	l.roomLog(room.ID, name).WithField("difficulty", d).Info("room difficulty changed")
	return nil
}

// QuitRoom takes the named user out of its room and acknowledges with quit.
func (l *Lobby) QuitRoom(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, err := l.userUnsafe(name)
	if err != nil {
		return err
	}
	if !u.InRoom() {
		return fmt.Errorf("quit by %q: %w", name, ErrNotInRoom)
	}
	if err := l.departUnsafe(u); err != nil {
		return err
	}
	l.sendUnsafe(u.Name, u.outbox, protocol.Quit())
	return nil
}

// hostedRoomUnsafe returns the room the named user hosts.
func (l *Lobby) hostedRoomUnsafe(name string) (*Room, error) {
	u, err := l.userUnsafe(name)
	if err != nil {
		return nil, err
	}
	if !u.InRoom() {
		return nil, ErrNotInRoom
	}
	_, room := l.findRoomUnsafe(u.RoomID)
	if room == nil {
		return nil, fmt.Errorf("%w: user %q points at missing room %d", ErrInvariant, name, u.RoomID)
	}
	if room.Host.Name != u.Name {
		return nil, ErrNotHost
	}
	return room, nil
}

// departUnsafe empties u's slot. A leaving guest frees the guest slot, a leaving host
// hands the room to the guest, and a sole occupant takes the room down with it, so
// no hostless room is ever observable. Everyone then sees u's room id cleared.
func (l *Lobby) departUnsafe(u *User) error {
	idx, room := l.findRoomUnsafe(u.RoomID)
	if room == nil {
		u.RoomID = protocol.NoRoom
		return fmt.Errorf("%w: user %q points at missing room", ErrInvariant, u.Name)
	}

	switch {
	case room.Guest.Occupied() && room.Guest.Name == u.Name:
		room.Guest = Player{}
		l.broadcastUnsafe(protocol.RoomGuestChanged(room.ID, ""))
		l.recordUnsafe(EventRoomLeft, u.Name, room.ID, nil)
		l.roomLog(room.ID, u.Name).Info("guest left room")
	case room.Host.Name != u.Name:
		u.RoomID = protocol.NoRoom
		return fmt.Errorf("%w: user %q is neither host nor guest of room %d", ErrInvariant, u.Name, room.ID)
	case room.Guest.Occupied():
		room.promoteGuest()
		l.broadcastUnsafe(protocol.RoomHostChanged(room.ID, room.Host.Name))
		l.recordUnsafe(EventRoomHostChanged, room.Host.Name, room.ID, map[string]interface{}{"previous": u.Name})
		l.roomLog(room.ID, u.Name).WithField("host", room.Host.Name).Info("host left, guest promoted")
	default:
		l.rooms = slices.Delete(l.rooms, idx, idx+1)
		l.broadcastUnsafe(protocol.RemoveRoom(room.ID))
		l.recordUnsafe(EventRoomRemoved, u.Name, room.ID, nil)
		l.roomLog(room.ID, u.Name).Info("room removed")
	}

	u.RoomID = protocol.NoRoom
	l.broadcastUnsafe(protocol.ChangeUserRoom(u.Name, protocol.NoRoom))
	return nil
}

func (l *Lobby) roomLog(roomID int, user string) logrus.FieldLogger {
	return l.log.WithFields(logrus.Fields{"room": roomID, "user": user})
}
