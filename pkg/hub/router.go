package hub

import (
	"context"
	"encoding/json"

	"boardcast/internal/logging"
	"boardcast/pkg/domain"
	"boardcast/pkg/protocol"
)

// NewRouter builds the invoke router for a hub, one handler per
// client→server call.
func NewRouter(h *Hub, logger *logging.Logger) *protocol.Router {
	r := protocol.NewRouter(logger)

	r.Register(domain.MessageTypeJoinBoard, protocol.HandlerFunc(
		func(ctx context.Context, conn domain.Connection, msg *domain.Message) error {
			var req domain.JoinBoardRequest
			if err := unmarshal(msg, &req); err != nil {
				return err
			}
			return h.Join(ctx, conn.ID(), req.BoardID)
		}))

	r.Register(domain.MessageTypeLeaveBoard, protocol.HandlerFunc(
		func(ctx context.Context, conn domain.Connection, msg *domain.Message) error {
			var req domain.LeaveBoardRequest
			if err := unmarshal(msg, &req); err != nil {
				return err
			}
			return h.Leave(ctx, conn.ID(), req.BoardID)
		}))

	r.Register(domain.MessageTypeSendTyping, protocol.HandlerFunc(
		func(ctx context.Context, conn domain.Connection, msg *domain.Message) error {
			var req domain.TypingRequest
			if err := unmarshal(msg, &req); err != nil {
				return err
			}
			return h.StartTyping(ctx, conn.ID(), req.BoardID, req.Context)
		}))

	r.Register(domain.MessageTypeStopTyping, protocol.HandlerFunc(
		func(ctx context.Context, conn domain.Connection, msg *domain.Message) error {
			var req domain.StopTypingRequest
			if err := unmarshal(msg, &req); err != nil {
				return err
			}
			return h.StopTyping(ctx, conn.ID(), req.BoardID)
		}))

	r.Register(domain.MessageTypePing, protocol.HandlerFunc(
		func(ctx context.Context, conn domain.Connection, msg *domain.Message) error {
			return h.Ping(ctx, conn.ID())
		}))

	return r
}

func unmarshal(msg *domain.Message, v any) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return domain.NewDomainError(domain.ErrCodeInvalid, "failed to unmarshal invoke payload", err)
	}
	return nil
}
