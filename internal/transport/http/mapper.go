package http

import (
	"github.com/atomirex/syncroom-server/internal/core"
	"github.com/atomirex/syncroom-server/internal/proto"
)

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventAuthed:
		return proto.Outbound{
			Kind: proto.KindAuthed,
			Data: proto.AuthedData{
				ID:     event.User.ID,
				State:  event.User.State,
				Room:   event.User.Room,
				Online: event.User.Online,
			},
		}
	case core.EventJoined:
		return proto.Outbound{
			Kind: proto.KindJoined,
			Data: proto.JoinedData{
				Room:    event.Room,
				State:   event.RoomState,
				Members: event.Members,
			},
		}
	case core.EventConnected:
		return proto.Outbound{
			Kind: proto.KindConnected,
			Data: proto.ConnectedData{
				ID:    event.UserID,
				State: event.UserState,
			},
		}
	case core.EventDisconnected:
		return proto.Outbound{
			Kind: proto.KindDisconnected,
			Data: proto.DisconnectedData{
				ID:     event.UserID,
				Reason: event.Reason,
			},
		}
	case core.EventLeftRoom:
		return proto.Outbound{
			Kind: proto.KindLeftRoom,
			Data: proto.LeftRoomData{Reason: event.Reason},
		}
	case core.EventUpdate:
		return proto.Outbound{
			Kind: event.UpdateKind,
			Data: proto.UpdateData{
				ID:    event.UserID,
				Delta: event.Delta,
			},
		}
	case core.EventBatchedUpdate:
		return proto.Outbound{
			Kind: event.UpdateKind,
			Data: proto.BatchedUpdateData{
				ID:     event.UserID,
				Deltas: event.Deltas,
			},
		}
	case core.EventError:
		if event.Err == nil {
			return proto.Outbound{Kind: proto.KindError, Error: &proto.Error{Type: "unknown", Message: "unknown error"}}
		}
		return proto.Outbound{
			Kind:  proto.KindError,
			Error: &proto.Error{Type: event.Err.Type, Message: event.Err.Message},
		}
	default:
		return proto.Outbound{Kind: proto.KindError, Error: &proto.Error{Type: "unknown", Message: "unmapped event"}}
	}
}
