// Package state owns the shared user and room records and their snapshot
// persistence. Records are only handed out as copies; all mutation goes
// through per-entity methods so a merge and its readback never interleave.
package state

import (
	"errors"
	"sync"

	"github.com/atomirex/syncroom-server/internal/merge"
)

// ErrAlreadyOnline is returned when a second live session claims an
// identity that is already online.
var ErrAlreadyOnline = errors.New("id is already online")

// UserRecord is the persistent per-identity record. It outlives any single
// connection: state survives reconnects, while Online and Room reflect the
// current session only.
type UserRecord struct {
	ID     string         `json:"id"`
	State  map[string]any `json:"state"`
	Room   string         `json:"room,omitempty"`
	Online bool           `json:"online"`
}

// RoomRecord holds the shared state visible to all members of a room.
// Rooms are created lazily on first join and never removed, even when the
// last member leaves.
type RoomRecord struct {
	Name  string         `json:"room"`
	State map[string]any `json:"state"`
}

// Store is the in-memory state shared by every session.
type Store struct {
	mu    sync.RWMutex
	users map[string]*UserRecord
	rooms map[string]*RoomRecord
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]*UserRecord),
		rooms: make(map[string]*RoomRecord),
	}
}

// ClaimUser marks the identity online, creating its record on first auth.
// It returns a copy of the record for the authed reply, or ErrAlreadyOnline
// if another live session already holds the identity.
func (s *Store) ClaimUser(id string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		u = &UserRecord{ID: id, State: make(map[string]any)}
		s.users[id] = u
	}
	if u.Online {
		return UserRecord{}, ErrAlreadyOnline
	}
	u.Online = true
	return copyUser(u), nil
}

// ReleaseUser marks the identity offline and clears its room. Safe to call
// for identities that were never claimed.
func (s *Store) ReleaseUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Online = false
		u.Room = ""
	}
}

// SetUserRoom records which room the identity currently occupies; empty
// string clears it.
func (s *Store) SetUserRoom(id, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Room = room
	}
}

// ReplaceUserState swaps the identity's state wholesale, as a join with a
// user payload does. The provided map is copied.
func (s *Store) ReplaceUserState(id string, st map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.State = merge.Clone(st)
	}
}

// MergeUserState applies a delta to the identity's state and prunes
// nil-valued keys.
func (s *Store) MergeUserState(id string, delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.State = merge.Apply(u.State, delta)
	}
}

// UserState returns a copy of the identity's state and whether the record
// exists.
func (s *Store) UserState(id string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return merge.Clone(u.State), true
}

// EnsureRoom creates the room record if it does not exist yet.
func (s *Store) EnsureRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name]; !ok {
		s.rooms[name] = &RoomRecord{Name: name, State: make(map[string]any)}
	}
}

// MergeRoomState applies a delta to the room's shared state and prunes
// nil-valued keys.
func (s *Store) MergeRoomState(name string, delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[name]; ok {
		r.State = merge.Apply(r.State, delta)
	}
}

// RoomState returns a copy of the room's shared state and whether the room
// exists.
func (s *Store) RoomState(name string) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[name]
	if !ok {
		return nil, false
	}
	return merge.Clone(r.State), true
}

// Rooms returns a copy of the full room map, used by the debug surface and
// the snapshot writer.
func (s *Store) Rooms() map[string]RoomRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]RoomRecord, len(s.rooms))
	for name, r := range s.rooms {
		out[name] = RoomRecord{Name: r.Name, State: merge.Clone(r.State)}
	}
	return out
}

// Users returns a copy of the full user map.
func (s *Store) Users() map[string]UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]UserRecord, len(s.users))
	for id, u := range s.users {
		out[id] = copyUser(u)
	}
	return out
}

// Clear wipes both maps. Debug use only; live sessions keep their
// identities but their records are gone until the next write.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*UserRecord)
	s.rooms = make(map[string]*RoomRecord)
}

func copyUser(u *UserRecord) UserRecord {
	return UserRecord{
		ID:     u.ID,
		State:  merge.Clone(u.State),
		Room:   u.Room,
		Online: u.Online,
	}
}
