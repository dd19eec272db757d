// internal/lobby/lobby.go
package lobby

import (
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Lobby owns every connected user and every open room. All reads and mutations of
// either registry, and every room id allocation, happen under mu for the whole
// logical operation. Methods suffixed Unsafe expect the caller to hold mu.
type Lobby struct {
	mu sync.Mutex

	cfg     config.Config
	log     logrus.FieldLogger
	journal Journal
	now     func() time.Time

	users      map[string]*User
	order      []*User // admission order, drives snapshots and broadcasts
	rooms      []*Room // creation order
	lastRoomID int
}

// Option customises a Lobby.
type Option func(*Lobby)

// WithJournal records every mutation into j.
func WithJournal(j Journal) Option {
	return func(l *Lobby) { l.journal = j }
}

// WithClock overrides the time source used to stamp journal events.
func WithClock(now func() time.Time) Option {
	return func(l *Lobby) { l.now = now }
}

// New creates an empty lobby governed by cfg.
func New(cfg config.Config, logger logrus.FieldLogger, opts ...Option) *Lobby {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &Lobby{
		cfg:   cfg,
		log:   logger,
		now:   time.Now,
		users: make(map[string]*User),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit runs the admission checks for name and, if they pass, queues the connect
// acknowledgement, server config, user list and room list to outbox before the
// user becomes visible to anyone else. Every user, the newcomer included, then
// receives addUser. A rejected admission leaves the lobby untouched.
func (l *Lobby) Admit(name string, outbox Outbox) (UserView, error) {
	length := utf8.RuneCountInString(name)
	if length < l.cfg.MinNameLength {
		return UserView{}, ErrNameTooShort
	}
	if length > l.cfg.MaxNameLength {
		return UserView{}, ErrNameTooLong
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.users[name]; taken {
		return UserView{}, ErrNameTaken
	}
	if len(l.users) >= l.cfg.MaxUsers {
		return UserView{}, ErrServerFull
	}

	snap := l.snapshotUnsafe()
	for _, msg := range []protocol.Message{
		protocol.Connected(),
		protocol.ServerConfig(l.cfg.ServerConfig()),
		snap.UsersList(),
		snap.RoomsList(),
	} {
		if err := outbox.Enqueue(msg); err != nil {
			return UserView{}, fmt.Errorf("queueing %s for %q: %w", msg.Type(), name, err)
		}
	}

	u := &User{Name: name, RoomID: protocol.NoRoom, outbox: outbox}
	l.users[name] = u
	l.order = append(l.order, u)

	l.broadcastUnsafe(protocol.AddUser(u.Name, u.RoomID))
	l.recordUnsafe(EventUserAdmitted, u.Name, protocol.NoRoom, nil)
	l.log.WithField("user", name).Infof("user admitted (%d/%d)", len(l.users), l.cfg.MaxUsers)
	return UserView{Name: u.Name, RoomID: u.RoomID}, nil
}

// Remove takes a disconnected user out of the lobby. If the user occupied a room,
// the room is cleaned up exactly as for an explicit quit (minus the quit reply)
// before the record disappears; the remaining users then receive removeUser.
func (l *Lobby) Remove(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[name]
	if !ok {
		return fmt.Errorf("%w: removing unknown user %q", ErrInvariant, name)
	}

	var departErr error
	if u.InRoom() {
		departErr = l.departUnsafe(u)
	}

	delete(l.users, name)
	l.order = slices.DeleteFunc(l.order, func(o *User) bool { return o == u })

	l.broadcastUnsafe(protocol.RemoveUser(name))
	l.recordUnsafe(EventUserRemoved, name, protocol.NoRoom, nil)
	l.log.WithField("user", name).Infof("user removed (%d/%d)", len(l.users), l.cfg.MaxUsers)
	return departErr
}

// Snapshot returns a copy of the current users and rooms.
func (l *Lobby) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotUnsafe()
}

// User looks up a connected user by exact name.
func (l *Lobby) User(name string) (UserView, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.users[name]
	if !ok {
		return UserView{}, false
	}
	return UserView{Name: u.Name, RoomID: u.RoomID}, true
}

// Room looks up an open room by id.
func (l *Lobby) Room(id int) (RoomView, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, r := l.findRoomUnsafe(id)
	if r == nil {
		return RoomView{}, false
	}
	return r.view(), true
}

// Broadcast sends msg to every connected user and returns the names of those whose
// outbox refused it. Each recipient gets exactly one attempt.
func (l *Lobby) Broadcast(msg protocol.Message) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.broadcastUnsafe(msg)
}

// CheckInvariants verifies the registries are consistent: every room has a host,
// every occupant is a connected user pointing back at the room, and ids are unique.
func (l *Lobby) CheckInvariants() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.order) != len(l.users) {
		return fmt.Errorf("%w: %d users in order, %d in map", ErrInvariant, len(l.order), len(l.users))
	}
	for _, u := range l.order {
		if l.users[u.Name] != u {
			return fmt.Errorf("%w: user %q registered twice", ErrInvariant, u.Name)
		}
		if u.InRoom() {
			if _, r := l.findRoomUnsafe(u.RoomID); r == nil || (r.Host.Name != u.Name && r.Guest.Name != u.Name) {
				return fmt.Errorf("%w: user %q points at room %d it does not occupy", ErrInvariant, u.Name, u.RoomID)
			}
		}
	}
	seen := make(map[int]bool, len(l.rooms))
	for _, r := range l.rooms {
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate room id %d", ErrInvariant, r.ID)
		}
		seen[r.ID] = true
		if !r.Host.Occupied() {
			return fmt.Errorf("%w: room %d has no host", ErrInvariant, r.ID)
		}
		for _, p := range []Player{r.Host, r.Guest} {
			if !p.Occupied() {
				continue
			}
			if u, ok := l.users[p.Name]; !ok || u.RoomID != r.ID {
				return fmt.Errorf("%w: room %d occupant %q is not in it", ErrInvariant, r.ID, p.Name)
			}
		}
	}
	return nil
}

func (l *Lobby) snapshotUnsafe() Snapshot {
	snap := Snapshot{
		Users: make([]UserView, 0, len(l.order)),
		Rooms: make([]RoomView, 0, len(l.rooms)),
	}
	for _, u := range l.order {
		snap.Users = append(snap.Users, UserView{Name: u.Name, RoomID: u.RoomID})
	}
	for _, r := range l.rooms {
		snap.Rooms = append(snap.Rooms, r.view())
	}
	return snap
}

func (l *Lobby) userUnsafe(name string) (*User, error) {
	u, ok := l.users[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, name)
	}
	return u, nil
}

func (l *Lobby) findRoomUnsafe(id int) (int, *Room) {
	for i, r := range l.rooms {
		if r.ID == id {
			return i, r
		}
	}
	return -1, nil
}

// broadcastUnsafe enqueues msg for every user in admission order.
func (l *Lobby) broadcastUnsafe(msg protocol.Message) []string {
	var failed []string
	for _, u := range l.order {
		if !l.sendUnsafe(u.Name, u.outbox, msg) {
			failed = append(failed, u.Name)
		}
	}
	return failed
}

func (l *Lobby) sendUnsafe(name string, outbox Outbox, msg protocol.Message) bool {
	if err := outbox.Enqueue(msg); err != nil {
		l.log.WithFields(logrus.Fields{
			"user":  name,
			"event": msg.Type(),
		}).Warnf("dropped lobby event: %v", err)
		return false
	}
	return true
}

func (l *Lobby) recordUnsafe(kind EventKind, user string, roomID int, detail map[string]interface{}) {
	if l.journal == nil {
		return
	}
	l.journal.Record(Event{
		ID:        uuid.New(),
		Kind:      kind,
		User:      user,
		RoomID:    roomID,
		Detail:    detail,
		Timestamp: l.now().UnixMilli(),
	})
}
