package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atomirex/syncroom-server/internal/core"
	"github.com/atomirex/syncroom-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Session.
type WSHandler struct {
	hub     *core.Hub
	log     *zerolog.Logger
	limiter *RateLimiter
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger, limiter *RateLimiter) stdhttp.Handler {
	return &WSHandler{hub: hub, log: logger, limiter: limiter}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !h.limiter.Allow() {
		stdhttp.Error(w, "too many connections", stdhttp.StatusTooManyRequests)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	session := core.NewSession(uuid.NewString())
	h.hub.Register(session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	// The transport guarantees exactly one disconnect per session; the hub
	// additionally tolerates repeats.
	h.hub.Disconnect(session, closeReason(err))

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s > 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop delivers inbound packets to the hub. Unrecognized kinds are
// rejected here, before dispatch, so nothing malformed reaches a handler.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !proto.ValidKind(inbound.Kind) {
			h.log.Warn().Str("session_id", session.ID).Str("kind", inbound.Kind).Msg("bad packet kind")
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Kind:  proto.KindError,
				Error: &proto.Error{Type: "packet", Message: "invalid packet type"},
			}); err != nil {
				return err
			}
			continue
		}

		h.hub.Dispatch(session, inbound.Kind, inbound.Data)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case event, ok := <-session.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func closeReason(err error) string {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return "transport close"
	default:
		if status := websocket.CloseStatus(err); status > 0 {
			return fmt.Sprintf("close status %d", status)
		}
		return err.Error()
	}
}
