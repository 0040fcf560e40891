// Package proto defines the JSON wire protocol spoken over the websocket.
package proto

import "encoding/json"

// Inbound is the envelope for packets coming from the client. Data carries
// the kind-specific payload: an object for singular updates, an array of
// objects for batched ones.
type Inbound struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client-to-server packet kinds.
const (
	KindAuth      = "auth"
	KindJoin      = "join"
	KindLeaveRoom = "leaveroom"

	KindUserUpdatedReliable   = "user_updated_reliable"
	KindUserUpdatedUnreliable = "user_updated_unreliable"
	KindUserUpdatedBatched    = "user_updated_batched"

	KindStateUpdatedReliable   = "state_updated_reliable"
	KindStateUpdatedUnreliable = "state_updated_unreliable"
	KindStateUpdatedBatched    = "state_updated_batched"
)

// Server-to-client event kinds. Update echoes reuse the inbound kind names.
const (
	KindAuthed       = "authed"
	KindJoined       = "joined"
	KindConnected    = "connected"
	KindDisconnected = "disconnected"
	KindLeftRoom     = "leftroom"
	KindError        = "error"
)

var validKinds = map[string]struct{}{
	KindAuth:                   {},
	KindJoin:                   {},
	KindLeaveRoom:              {},
	KindUserUpdatedReliable:    {},
	KindUserUpdatedUnreliable:  {},
	KindUserUpdatedBatched:     {},
	KindStateUpdatedReliable:   {},
	KindStateUpdatedUnreliable: {},
	KindStateUpdatedBatched:    {},
}

// ValidKind reports whether kind is a recognized client packet kind. The
// transport checks this before any packet reaches the dispatcher.
func ValidKind(kind string) bool {
	_, ok := validKinds[kind]
	return ok
}

// Outbound is the envelope for packets sent to the client.
type Outbound struct {
	Kind  string `json:"kind"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AuthedData echoes the full user record back to a freshly authenticated
// session.
type AuthedData struct {
	ID     string         `json:"id"`
	State  map[string]any `json:"state"`
	Room   string         `json:"room,omitempty"`
	Online bool           `json:"online"`
}

// JoinedData is the private snapshot a session receives after joining:
// the room's shared state plus every online member's state keyed by id.
type JoinedData struct {
	Room    string                    `json:"room"`
	State   map[string]any            `json:"state"`
	Members map[string]map[string]any `json:"members"`
}

// ConnectedData announces a new room member to the room.
type ConnectedData struct {
	ID    string         `json:"id"`
	State map[string]any `json:"state"`
}

// DisconnectedData announces that a member left the room, with the
// transport close reason or "left" for a voluntary leave.
type DisconnectedData struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// LeftRoomData confirms a leave back to the leaving session.
type LeftRoomData struct {
	Reason string `json:"reason"`
}

// UpdateData is the echo of a reliable or unreliable delta. Delta is the
// raw client delta, nils included, so receivers can apply the same
// merge-and-prune locally.
type UpdateData struct {
	ID    string         `json:"id"`
	Delta map[string]any `json:"delta"`
}

// BatchedUpdateData is the echo of a batched update: the original ordered
// sequence, so receivers can replay the merges in the same order.
type BatchedUpdateData struct {
	ID     string           `json:"id"`
	Deltas []map[string]any `json:"deltas"`
}

// Error describes a protocol, state, or validation error. Type names the
// offending packet kind or category; errors go only to the sender.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
