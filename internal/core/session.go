package core

// Session is one live connection as seen by the engine. All fields except
// ID and Events are owned by the hub and only touched under its lock.
type Session struct {
	// ID is the transport connection identifier.
	ID string
	// Events is drained by the transport write loop. Sends never block;
	// a full buffer drops the event (slow consumer).
	Events chan *Event

	identity  string
	lifecycle Lifecycle
	room      string

	user  burstChannel
	state burstChannel
}

// NewSession constructs a session in the Connected stage.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		Events:    make(chan *Event, 64),
		lifecycle: LifecycleConnected,
	}
}

// burstChannel tracks burst coalescing for one update channel of one
// session. While locked, unreliable deltas accumulate in pending instead
// of being broadcast.
type burstChannel struct {
	locked  bool
	pending map[string]any
}
