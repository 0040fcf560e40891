package core

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atomirex/syncroom-server/internal/merge"
	"github.com/atomirex/syncroom-server/internal/metrics"
	"github.com/atomirex/syncroom-server/internal/proto"
	"github.com/atomirex/syncroom-server/internal/state"
)

// Hub is the protocol engine. It owns room membership and every session's
// lifecycle, and serializes all handler bodies and burst flushes under one
// lock so a merge and its broadcast are atomic per entity.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room

	store   *state.Store
	window  time.Duration
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub builds a hub over the given store. window is the burst-coalescing
// interval for unreliable updates.
func NewHub(store *state.Store, window time.Duration, logger *zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]*Room),
		store:   store,
		window:  window,
		log:     logger,
		metrics: m,
	}
}

// Register announces a freshly accepted connection.
func (h *Hub) Register(s *Session) {
	h.metrics.ActiveSessions.Inc()
	h.log.Info().Str("session_id", s.ID).Msg("session connected")
}

// Dispatch routes one inbound packet. The transport has already filtered
// unrecognized kinds, but the check is repeated here so the engine is safe
// against any caller.
func (h *Hub) Dispatch(s *Session, kind string, data json.RawMessage) {
	if !proto.ValidKind(kind) {
		h.mu.Lock()
		h.sendError(s, ErrTypePacket, "invalid packet type")
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch kind {
	case proto.KindAuth:
		h.handleAuth(s, data)
	case proto.KindJoin:
		h.handleJoin(s, data)
	case proto.KindLeaveRoom:
		h.handleLeave(s)
	case proto.KindUserUpdatedReliable, proto.KindUserUpdatedUnreliable:
		h.handleUserUpdate(s, kind, data)
	case proto.KindUserUpdatedBatched:
		h.handleUserBatched(s, data)
	case proto.KindStateUpdatedReliable, proto.KindStateUpdatedUnreliable:
		h.handleStateUpdate(s, kind, data)
	case proto.KindStateUpdatedBatched:
		h.handleStateBatched(s, data)
	}
}

func (h *Hub) handleAuth(s *Session, data json.RawMessage) {
	if s.lifecycle != LifecycleConnected {
		h.sendError(s, ErrTypeAuth, "need to be in the connected state to send an auth packet")
		return
	}

	payload, ok := decodeObject(data)
	if !ok {
		h.sendError(s, ErrTypeAuth, "auth packet was not an object")
		return
	}
	id, ok := payload["id"].(string)
	if !ok {
		h.sendError(s, ErrTypeAuth, "no valid 'id' found in auth packet")
		return
	}

	user, err := h.store.ClaimUser(id)
	if err != nil {
		if errors.Is(err, state.ErrAlreadyOnline) {
			h.sendError(s, ErrTypeAuth, "id is already online")
			return
		}
		h.sendError(s, ErrTypeAuth, err.Error())
		return
	}

	s.identity = id
	s.lifecycle = LifecycleAuthed

	h.log.Info().Str("session_id", s.ID).Str("user_id", id).Msg("session authed")
	h.send(s, &Event{Kind: EventAuthed, User: user})
}

func (h *Hub) handleJoin(s *Session, data json.RawMessage) {
	if s.lifecycle != LifecycleAuthed {
		h.sendError(s, ErrTypeJoin, "need to be in the authed state to send a join packet")
		return
	}

	payload, ok := decodeObject(data)
	if !ok {
		h.sendError(s, ErrTypeJoin, "join packet was not an object")
		return
	}
	roomName, ok := payload["room"].(string)
	if !ok {
		h.sendError(s, ErrTypeJoin, "no 'room' in join packet")
		return
	}

	// An optional state object replaces, not merges, the user's state.
	if st, ok := payload["state"].(map[string]any); ok {
		h.store.ReplaceUserState(s.identity, st)
	}

	h.store.EnsureRoom(roomName)
	room := h.room(roomName)
	room.add(s)

	h.store.SetUserRoom(s.identity, roomName)
	s.room = roomName
	s.lifecycle = LifecycleInRoom

	h.log.Info().Str("session_id", s.ID).Str("user_id", s.identity).Str("room", roomName).Msg("session joined room")

	roomState, _ := h.store.RoomState(roomName)
	userState, _ := h.store.UserState(s.identity)

	// The joiner gets its private snapshot before the room hears about it,
	// so a client always sees the room before being told about itself.
	h.send(s, &Event{
		Kind:      EventJoined,
		Room:      roomName,
		RoomState: roomState,
		Members:   h.memberStates(room),
	})
	h.broadcast(room, proto.KindConnected, &Event{
		Kind:      EventConnected,
		Room:      roomName,
		UserID:    s.identity,
		UserState: userState,
	})
}

func (h *Hub) handleLeave(s *Session) {
	if s.lifecycle != LifecycleInRoom {
		h.sendError(s, ErrTypeLeaveRoom, "need to be in a room to send a leaveroom packet")
		return
	}

	room := h.room(s.room)
	room.remove(s)

	h.broadcast(room, proto.KindDisconnected, &Event{
		Kind:   EventDisconnected,
		Room:   room.Name,
		UserID: s.identity,
		Reason: "left",
	})

	h.store.SetUserRoom(s.identity, "")
	s.room = ""
	s.lifecycle = LifecycleAuthed

	h.log.Info().Str("session_id", s.ID).Str("user_id", s.identity).Str("room", room.Name).Msg("session left room")
	h.send(s, &Event{Kind: EventLeftRoom, Reason: "user initiated"})
}

func (h *Hub) handleUserUpdate(s *Session, kind string, data json.RawMessage) {
	if s.lifecycle != LifecycleInRoom {
		h.sendError(s, ErrTypeUserUpdate, "you need to be in a room")
		return
	}
	delta, ok := decodeObject(data)
	if !ok {
		h.sendError(s, ErrTypeUserUpdate, "update payload needs to be an object")
		return
	}

	if kind == proto.KindUserUpdatedUnreliable && s.user.locked {
		s.user.pending = merge.Merge(s.user.pending, delta)
		h.metrics.CoalescedDeltas.Inc()
		return
	}

	h.applyUserDelta(s, kind, delta)
}

// applyUserDelta merges and broadcasts one user delta, then arms the burst
// window for unreliable kinds. Called with the hub lock held.
func (h *Hub) applyUserDelta(s *Session, kind string, delta map[string]any) {
	h.store.MergeUserState(s.identity, delta)
	h.broadcast(h.room(s.room), kind, &Event{
		Kind:       EventUpdate,
		UpdateKind: kind,
		Room:       s.room,
		UserID:     s.identity,
		Delta:      delta,
	})

	if kind == proto.KindUserUpdatedUnreliable {
		s.user.locked = true
		time.AfterFunc(h.window, func() { h.flushUserBurst(s) })
	}
}

// flushUserBurst is the trailing edge of the burst window. A pending delta
// is applied exactly like a fresh arrival, re-arming the window, so a
// continuous stream settles at one broadcast per window.
func (h *Hub) flushUserBurst(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s.user.locked = false
	pending := s.user.pending
	s.user.pending = nil

	// The session may have left the room or disconnected mid-window.
	if pending == nil || s.lifecycle != LifecycleInRoom {
		return
	}
	h.applyUserDelta(s, proto.KindUserUpdatedUnreliable, pending)
}

func (h *Hub) handleStateUpdate(s *Session, kind string, data json.RawMessage) {
	if s.lifecycle != LifecycleInRoom {
		h.sendError(s, ErrTypeStateUpdate, "you need to be in a room")
		return
	}
	delta, ok := decodeObject(data)
	if !ok {
		h.sendError(s, ErrTypeStateUpdate, "update payload needs to be an object")
		return
	}

	if kind == proto.KindStateUpdatedUnreliable && s.state.locked {
		s.state.pending = merge.Merge(s.state.pending, delta)
		h.metrics.CoalescedDeltas.Inc()
		return
	}

	h.applyStateDelta(s, kind, delta)
}

func (h *Hub) applyStateDelta(s *Session, kind string, delta map[string]any) {
	h.store.MergeRoomState(s.room, delta)
	h.broadcast(h.room(s.room), kind, &Event{
		Kind:       EventUpdate,
		UpdateKind: kind,
		Room:       s.room,
		UserID:     s.identity,
		Delta:      delta,
	})

	if kind == proto.KindStateUpdatedUnreliable {
		s.state.locked = true
		time.AfterFunc(h.window, func() { h.flushStateBurst(s) })
	}
}

func (h *Hub) flushStateBurst(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s.state.locked = false
	pending := s.state.pending
	s.state.pending = nil

	if pending == nil || s.lifecycle != LifecycleInRoom {
		return
	}
	h.applyStateDelta(s, proto.KindStateUpdatedUnreliable, pending)
}

func (h *Hub) handleUserBatched(s *Session, data json.RawMessage) {
	deltas, ok := h.validateBatch(s, ErrTypeUserUpdate, data)
	if !ok {
		return
	}

	// Each merge sees the previous one's pruned result.
	for _, delta := range deltas {
		h.store.MergeUserState(s.identity, delta)
	}

	// The original sequence goes out, not the folded result, so receivers
	// replay the same ordered merge.
	h.broadcast(h.room(s.room), proto.KindUserUpdatedBatched, &Event{
		Kind:       EventBatchedUpdate,
		UpdateKind: proto.KindUserUpdatedBatched,
		Room:       s.room,
		UserID:     s.identity,
		Deltas:     deltas,
	})
}

func (h *Hub) handleStateBatched(s *Session, data json.RawMessage) {
	deltas, ok := h.validateBatch(s, ErrTypeStateUpdate, data)
	if !ok {
		return
	}

	for _, delta := range deltas {
		h.store.MergeRoomState(s.room, delta)
	}

	h.broadcast(h.room(s.room), proto.KindStateUpdatedBatched, &Event{
		Kind:       EventBatchedUpdate,
		UpdateKind: proto.KindStateUpdatedBatched,
		Room:       s.room,
		UserID:     s.identity,
		Deltas:     deltas,
	})
}

// validateBatch checks lifecycle and batch shape. Either every element is
// an object or the whole batch is rejected; partial application never
// happens.
func (h *Hub) validateBatch(s *Session, errType string, data json.RawMessage) ([]map[string]any, bool) {
	if s.lifecycle != LifecycleInRoom {
		h.sendError(s, errType, "you need to be in a room")
		return nil, false
	}

	elems, ok := decodeArray(data)
	if !ok || len(elems) == 0 {
		h.sendError(s, errType, "update payload needs to be a non-empty array")
		return nil, false
	}

	deltas := make([]map[string]any, 0, len(elems))
	for _, el := range elems {
		obj, ok := el.(map[string]any)
		if !ok {
			h.sendError(s, errType, "update payload needs to be an object")
			return nil, false
		}
		deltas = append(deltas, obj)
	}
	return deltas, true
}

// Disconnect tears the session down on transport close. Idempotent: only
// the first call has any effect, later close signals and in-flight burst
// flushes are no-ops.
func (h *Hub) Disconnect(s *Session, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.lifecycle == LifecycleDisconnected {
		return
	}

	h.log.Info().Str("session_id", s.ID).Str("user_id", s.identity).Str("reason", reason).Msg("session disconnected")

	if s.lifecycle != LifecycleConnected {
		if s.lifecycle == LifecycleInRoom {
			room := h.room(s.room)
			room.remove(s)
			h.broadcast(room, proto.KindDisconnected, &Event{
				Kind:   EventDisconnected,
				Room:   room.Name,
				UserID: s.identity,
				Reason: reason,
			})
		}
		h.store.ReleaseUser(s.identity)
	}

	s.room = ""
	s.lifecycle = LifecycleDisconnected
	h.metrics.ActiveSessions.Dec()
}

// RoomMembers returns every online member's state keyed by identity, or
// false when no session currently occupies the room. Used by the debug
// surface.
func (h *Hub) RoomMembers(name string) (map[string]map[string]any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[name]
	if !ok || len(room.sessions) == 0 {
		return nil, false
	}
	return h.memberStates(room), true
}

// room returns the membership group, creating it lazily. Groups, like room
// records, are never removed once created.
func (h *Hub) room(name string) *Room {
	r, ok := h.rooms[name]
	if !ok {
		r = newRoom(name)
		h.rooms[name] = r
	}
	return r
}

func (h *Hub) memberStates(room *Room) map[string]map[string]any {
	members := make(map[string]map[string]any, len(room.sessions))
	for member := range room.sessions {
		if member.identity == "" {
			continue
		}
		if st, ok := h.store.UserState(member.identity); ok {
			members[member.identity] = st
		}
	}
	return members
}

func (h *Hub) broadcast(room *Room, kind string, ev *Event) {
	room.broadcast(ev)
	h.metrics.Broadcasts.WithLabelValues(kind).Inc()
}

func (h *Hub) send(s *Session, ev *Event) {
	select {
	case s.Events <- ev:
	default:
		h.log.Warn().Str("session_id", s.ID).Msg("event buffer full, dropping event")
	}
}

func (h *Hub) sendError(s *Session, errType, msg string) {
	h.metrics.Errors.WithLabelValues(errType).Inc()
	h.log.Warn().Str("session_id", s.ID).Str("type", errType).Str("reason", msg).Msg("rejected packet")
	h.send(s, &Event{Kind: EventError, Err: engineError(errType, msg)})
}

func decodeObject(data json.RawMessage) (map[string]any, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func decodeArray(data json.RawMessage) ([]any, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	arr, ok := v.([]any)
	return arr, ok
}
