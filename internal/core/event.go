package core

import "github.com/atomirex/syncroom-server/internal/state"

// EventKind is a notification the engine emits to sessions.
type EventKind int

const (
	// EventAuthed confirms authentication, carrying the full user record.
	EventAuthed EventKind = iota
	// EventJoined delivers the private room snapshot to a new member.
	EventJoined
	// EventConnected announces a new member to the room.
	EventConnected
	// EventDisconnected announces that a member left the room.
	EventDisconnected
	// EventLeftRoom confirms a voluntary leave to the leaving session.
	EventLeftRoom
	// EventUpdate echoes a reliable or unreliable delta to the room.
	EventUpdate
	// EventBatchedUpdate echoes a batched delta sequence to the room.
	EventBatchedUpdate
	// EventError reports a per-packet error to the offending session.
	EventError
)

// Event describes something that happened in the engine. Only the fields
// relevant to the Kind are populated.
type Event struct {
	Kind   EventKind
	UserID string
	Room   string
	Reason string

	// UpdateKind is the original packet kind for update echoes.
	UpdateKind string
	// Delta is the raw client delta, nils included.
	Delta map[string]any
	// Deltas is the original ordered sequence for batched echoes.
	Deltas []map[string]any

	// User is the full record for EventAuthed.
	User state.UserRecord
	// RoomState and Members form the EventJoined snapshot.
	RoomState map[string]any
	Members   map[string]map[string]any
	// UserState is the new member's state for EventConnected.
	UserState map[string]any

	Err *EngineError
}
