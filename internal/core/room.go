package core

// Room is the broadcast scope for a set of sessions. Membership is owned
// by the hub and only touched under its lock; the shared room state itself
// lives in the state store.
type Room struct {
	Name     string
	sessions map[*Session]struct{}
}

func newRoom(name string) *Room {
	return &Room{
		Name:     name,
		sessions: make(map[*Session]struct{}),
	}
}

func (r *Room) add(s *Session) {
	r.sessions[s] = struct{}{}
}

func (r *Room) remove(s *Session) {
	delete(r.sessions, s)
}

// broadcast fans an event out to every member, the sender included.
// Delivery is best effort: a member whose event buffer is full misses the
// event rather than stalling the room.
func (r *Room) broadcast(ev *Event) {
	for s := range r.sessions {
		select {
		case s.Events <- ev:
		default:
		}
	}
}
