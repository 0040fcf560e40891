package core

// Error types sent back to clients. Each names the packet kind or category
// that failed; the transport maps them onto proto.Error.
const (
	ErrTypePacket      = "packet"
	ErrTypeAuth        = "auth"
	ErrTypeJoin        = "join"
	ErrTypeLeaveRoom   = "leaveroom"
	ErrTypeUserUpdate  = "update_user"
	ErrTypeStateUpdate = "update_state"
)

// EngineError is a non-fatal, per-packet error reported only to the
// offending session. The session stays connected.
type EngineError struct {
	Type    string
	Message string
}

func (e *EngineError) Error() string {
	return e.Message
}

func engineError(errType, msg string) *EngineError {
	return &EngineError{Type: errType, Message: msg}
}
