package core

// Lifecycle is the stage of a session's protocol progression. Each packet
// kind is only legal in one lifecycle stage; the terminal Disconnected
// stage accepts nothing.
type Lifecycle int

const (
	// LifecycleConnected is the initial stage, right after transport accept.
	LifecycleConnected Lifecycle = iota
	// LifecycleAuthed means the session holds an identity but no room.
	LifecycleAuthed
	// LifecycleInRoom means the session is a member of exactly one room.
	LifecycleInRoom
	// LifecycleDisconnected is terminal; entered once on transport close.
	LifecycleDisconnected
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleConnected:
		return "connected"
	case LifecycleAuthed:
		return "authed"
	case LifecycleInRoom:
		return "in room"
	case LifecycleDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
