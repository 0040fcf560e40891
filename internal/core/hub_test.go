package core

import (
	"testing"
	"time"
)

func TestAuthJoinUpdateScenario(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	alice := NewSession("conn-a")
	h.Register(alice)

	dispatch(h, alice, "auth", map[string]any{"id": "alice"})
	authed := mustEvent(t, alice.Events, EventAuthed)
	if authed.User.ID != "alice" || !authed.User.Online {
		t.Fatalf("unexpected authed record: %+v", authed.User)
	}

	dispatch(h, alice, "join", map[string]any{"room": "r1", "state": map[string]any{"hp": 100}})
	joined := mustEvent(t, alice.Events, EventJoined)
	if joined.Room != "r1" {
		t.Fatalf("unexpected joined room: %q", joined.Room)
	}
	// The private snapshot precedes the connected broadcast and already
	// includes the joiner itself.
	if hp := joined.Members["alice"]["hp"]; hp != float64(100) {
		t.Fatalf("unexpected member snapshot: %+v", joined.Members)
	}
	connected := mustEvent(t, alice.Events, EventConnected)
	if connected.UserID != "alice" {
		t.Fatalf("unexpected connected event: %+v", connected)
	}

	bob := NewSession("conn-b")
	h.Register(bob)
	dispatch(h, bob, "auth", map[string]any{"id": "bob"})
	mustEvent(t, bob.Events, EventAuthed)
	dispatch(h, bob, "join", map[string]any{"room": "r1"})

	bobJoined := mustEvent(t, bob.Events, EventJoined)
	if hp := bobJoined.Members["alice"]["hp"]; hp != float64(100) {
		t.Fatalf("bob's snapshot missing alice: %+v", bobJoined.Members)
	}
	aliceSawBob := mustEvent(t, alice.Events, EventConnected)
	if aliceSawBob.UserID != "bob" {
		t.Fatalf("alice expected connected(bob), got %+v", aliceSawBob)
	}

	dispatch(h, alice, "user_updated_reliable", map[string]any{"hp": 90})
	mustEvent(t, bob.Events, EventConnected) // bob's own join announcement
	upd := mustEvent(t, bob.Events, EventUpdate)
	if upd.UserID != "alice" || upd.Delta["hp"] != float64(90) {
		t.Fatalf("unexpected update echo: %+v", upd)
	}

	st, _ := h.store.UserState("alice")
	if st["hp"] != float64(90) {
		t.Fatalf("stored state not merged: %+v", st)
	}
}

func TestLifecycleViolationsRejectedWithoutStateChange(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)
	s := NewSession("conn")
	h.Register(s)

	// Everything except auth is illegal while Connected.
	dispatch(h, s, "join", map[string]any{"room": "r1"})
	mustError(t, s.Events, ErrTypeJoin)
	dispatchRaw(h, s, "leaveroom", "")
	mustError(t, s.Events, ErrTypeLeaveRoom)
	dispatch(h, s, "user_updated_reliable", map[string]any{"x": 1})
	mustError(t, s.Events, ErrTypeUserUpdate)
	dispatch(h, s, "state_updated_batched", []map[string]any{{"x": 1}})
	mustError(t, s.Events, ErrTypeStateUpdate)

	if s.lifecycle != LifecycleConnected {
		t.Fatalf("lifecycle changed to %v", s.lifecycle)
	}

	// Double auth is illegal once Authed.
	dispatch(h, s, "auth", map[string]any{"id": "u1"})
	mustEvent(t, s.Events, EventAuthed)
	dispatch(h, s, "auth", map[string]any{"id": "u2"})
	mustError(t, s.Events, ErrTypeAuth)
	if s.identity != "u1" {
		t.Fatalf("identity changed: %q", s.identity)
	}
}

func TestUnknownKindProducesPacketError(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)
	s := NewSession("conn")
	h.Register(s)

	dispatchRaw(h, s, "bogus_kind", "{}")
	mustError(t, s.Events, ErrTypePacket)
	if s.lifecycle != LifecycleConnected {
		t.Fatalf("lifecycle changed to %v", s.lifecycle)
	}
}

func TestAuthValidation(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	cases := []struct {
		name    string
		payload string
	}{
		{"not an object", `"alice"`},
		{"missing id", `{}`},
		{"id not a string", `{"id": 42}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession("conn-" + tc.name)
			h.Register(s)
			dispatchRaw(h, s, "auth", tc.payload)
			mustError(t, s.Events, ErrTypeAuth)
			if s.lifecycle != LifecycleConnected {
				t.Fatalf("lifecycle changed to %v", s.lifecycle)
			}
		})
	}
}

func TestSecondAuthForOnlineIdentityRejected(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	first := NewSession("conn-1")
	second := NewSession("conn-2")
	h.Register(first)
	h.Register(second)

	dispatch(h, first, "auth", map[string]any{"id": "u1"})
	mustEvent(t, first.Events, EventAuthed)

	dispatch(h, second, "auth", map[string]any{"id": "u1"})
	err := mustError(t, second.Events, ErrTypeAuth)
	if err.Message != "id is already online" {
		t.Fatalf("unexpected message: %q", err.Message)
	}

	// The first session's auth is untouched.
	if first.lifecycle != LifecycleAuthed || first.identity != "u1" {
		t.Fatalf("first session disturbed: %v %q", first.lifecycle, first.identity)
	}
}

func TestLeaveRoom(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	alice := NewSession("conn-a")
	bob := NewSession("conn-b")
	h.Register(alice)
	h.Register(bob)
	authJoin(t, h, alice, "alice", "r1")
	authJoin(t, h, bob, "bob", "r1")
	mustEvent(t, alice.Events, EventConnected) // bob's join

	dispatchRaw(h, alice, "leaveroom", "")

	left := mustEvent(t, alice.Events, EventLeftRoom)
	if left.Reason != "user initiated" {
		t.Fatalf("unexpected leftroom reason: %q", left.Reason)
	}
	disc := mustEvent(t, bob.Events, EventDisconnected)
	if disc.UserID != "alice" || disc.Reason != "left" {
		t.Fatalf("unexpected disconnected event: %+v", disc)
	}
	if alice.lifecycle != LifecycleAuthed {
		t.Fatalf("expected authed after leave, got %v", alice.lifecycle)
	}

	users := h.store.Users()
	if users["alice"].Room != "" {
		t.Fatalf("user room not cleared: %q", users["alice"].Room)
	}
}

func TestBatchedUpdatesOrderSensitiveAndEchoOriginalSequence(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	alice := NewSession("conn-a")
	h.Register(alice)
	authJoin(t, h, alice, "alice", "r1")

	dispatch(h, alice, "user_updated_batched", []map[string]any{{"x": 1}, {"x": nil}})
	ev := mustEvent(t, alice.Events, EventBatchedUpdate)
	if len(ev.Deltas) != 2 {
		t.Fatalf("expected original sequence, got %+v", ev.Deltas)
	}
	st, _ := h.store.UserState("alice")
	if _, present := st["x"]; present {
		t.Fatalf("x should be deleted, state: %+v", st)
	}

	dispatch(h, alice, "user_updated_batched", []map[string]any{{"x": nil}, {"x": 1}})
	mustEvent(t, alice.Events, EventBatchedUpdate)
	st, _ = h.store.UserState("alice")
	if st["x"] != float64(1) {
		t.Fatalf("reverse order should end with x=1, state: %+v", st)
	}
}

func TestBatchedRejectsMalformedWithoutPartialApplication(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	alice := NewSession("conn-a")
	h.Register(alice)
	authJoin(t, h, alice, "alice", "r1")

	dispatchRaw(h, alice, "state_updated_batched", `[]`)
	mustError(t, alice.Events, ErrTypeStateUpdate)

	dispatchRaw(h, alice, "state_updated_batched", `[{"a": 1}, "oops"]`)
	mustError(t, alice.Events, ErrTypeStateUpdate)

	st, _ := h.store.RoomState("r1")
	if len(st) != 0 {
		t.Fatalf("partial application happened: %+v", st)
	}
}

func TestRoomStateUpdates(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	alice := NewSession("conn-a")
	bob := NewSession("conn-b")
	h.Register(alice)
	h.Register(bob)
	authJoin(t, h, alice, "alice", "r1")
	authJoin(t, h, bob, "bob", "r1")

	dispatch(h, alice, "state_updated_reliable", map[string]any{"round": 2})
	mustEvent(t, bob.Events, EventUpdate)

	st, _ := h.store.RoomState("r1")
	if st["round"] != float64(2) {
		t.Fatalf("room state not merged: %+v", st)
	}

	// Late joiners see the merged room state in their snapshot.
	carol := NewSession("conn-c")
	h.Register(carol)
	dispatch(h, carol, "auth", map[string]any{"id": "carol"})
	mustEvent(t, carol.Events, EventAuthed)
	dispatch(h, carol, "join", map[string]any{"room": "r1"})
	joined := mustEvent(t, carol.Events, EventJoined)
	if joined.RoomState["round"] != float64(2) {
		t.Fatalf("snapshot missing room state: %+v", joined.RoomState)
	}
}

func TestDisconnectWhileInRoom(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	alice := NewSession("conn-a")
	bob := NewSession("conn-b")
	h.Register(alice)
	h.Register(bob)
	authJoin(t, h, alice, "alice", "r1")
	authJoin(t, h, bob, "bob", "r1")
	mustEvent(t, alice.Events, EventConnected)

	h.Disconnect(bob, "transport error")

	disc := mustEvent(t, alice.Events, EventDisconnected)
	if disc.UserID != "bob" || disc.Reason != "transport error" {
		t.Fatalf("unexpected disconnected event: %+v", disc)
	}

	users := h.store.Users()
	if users["bob"].Online || users["bob"].Room != "" {
		t.Fatalf("bob's record not released: %+v", users["bob"])
	}

	// A second close signal is a no-op: no duplicate broadcast.
	h.Disconnect(bob, "transport error")
	mustNoEvent(t, alice.Events)
}

func TestReauthAfterDisconnect(t *testing.T) {
	h := newTestHub(50 * time.Millisecond)

	s := NewSession("conn-1")
	h.Register(s)
	authJoin(t, h, s, "u1", "r1")
	h.Disconnect(s, "gone")

	again := NewSession("conn-2")
	h.Register(again)
	dispatch(h, again, "auth", map[string]any{"id": "u1"})
	mustEvent(t, again.Events, EventAuthed)
}
