package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/atomirex/syncroom-server/internal/metrics"
	"github.com/atomirex/syncroom-server/internal/state"
)

func newTestHub(window time.Duration) *Hub {
	logger := zerolog.Nop()
	return NewHub(state.NewStore(), window, &logger, metrics.New(prometheus.NewRegistry()))
}

func dispatch(h *Hub, s *Session, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	h.Dispatch(s, kind, data)
}

func dispatchRaw(h *Hub, s *Session, kind, payload string) {
	h.Dispatch(s, kind, json.RawMessage(payload))
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func mustError(t *testing.T, ch <-chan *Event, errType string) *EngineError {
	t.Helper()

	ev := mustEvent(t, ch, EventError)
	if ev.Err == nil || ev.Err.Type != errType {
		t.Fatalf("expected %q error, got %+v", errType, ev.Err)
	}
	return ev.Err
}

// authJoin drives a session through auth and join so tests can start from
// the InRoom stage.
func authJoin(t *testing.T, h *Hub, s *Session, id, room string) {
	t.Helper()

	dispatch(h, s, "auth", map[string]any{"id": id})
	mustEvent(t, s.Events, EventAuthed)
	dispatch(h, s, "join", map[string]any{"room": room})
	mustEvent(t, s.Events, EventJoined)
	mustEvent(t, s.Events, EventConnected)
}
