package messaging

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/access"
	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
)

type OrderLookup interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
}

// Sessions is the connection-level boundary: it applies the access rules to
// room membership and turns chat failures into error frames for the one
// session that caused them.
type Sessions struct {
	rooms  *Registry
	chat   *ChatService
	orders OrderLookup
	buffer int
	logger *zap.Logger
}

func NewSessions(rooms *Registry, chat *ChatService, orders OrderLookup, buffer int, logger *zap.Logger) *Sessions {
	return &Sessions{
		rooms:  rooms,
		chat:   chat,
		orders: orders,
		buffer: buffer,
		logger: logger.With(zap.String("component", "sessions")),
	}
}

func (h *Sessions) Connect(identity domain.Identity) *Session {
	s := NewSession(identity, h.buffer)
	h.logger.Debug("session connected", zap.String("session_id", s.ID()), zap.String("user_id", identity.UserID))
	return s
}

// Join admits s to the order's room when the access rules allow it. A denied
// or unknown order is ignored without telling the client.
func (h *Sessions) Join(ctx context.Context, s *Session, orderID string) bool {
	id := s.Identity()
	o, err := h.orders.GetOrder(ctx, orderID)
	if err != nil || !access.CanAccessOrder(id, o) {
		h.logger.Warn("room join ignored",
			zap.String("order_id", orderID),
			zap.String("user_id", id.UserID),
			zap.Bool("order_found", err == nil))
		return false
	}
	if h.rooms.Join(orderID, s) {
		h.rooms.Broadcast(orderID, Frame{Type: FramePresenceJoin, Data: presence(orderID, id)})
	}
	return true
}

func (h *Sessions) Leave(s *Session, orderID string) {
	if h.rooms.Leave(orderID, s) {
		h.rooms.Broadcast(orderID, Frame{Type: FramePresenceLeave, Data: presence(orderID, s.Identity())})
	}
}

// SendMessage posts content on the order thread. Failures go back to s only.
func (h *Sessions) SendMessage(ctx context.Context, s *Session, orderID, content string) {
	if _, err := h.chat.Send(ctx, s.Identity(), orderID, content); err != nil {
		h.SendError(s, err)
	}
}

// SendError queues an error frame for s alone.
func (h *Sessions) SendError(s *Session, err error) {
	frame, _ := json.Marshal(Frame{Type: FrameError, Data: map[string]string{"error": apperr.PublicMessage(err)}})
	if err := s.Send(frame); err != nil {
		h.logger.Debug("error frame dropped", zap.String("session_id", s.ID()), zap.Error(err))
	}
}

// Disconnect removes s from every room and closes it. Later calls do
// nothing.
func (h *Sessions) Disconnect(s *Session) {
	s.disconnect.Do(func() {
		for _, orderID := range h.rooms.LeaveAll(s) {
			h.rooms.Broadcast(orderID, Frame{Type: FramePresenceLeave, Data: presence(orderID, s.Identity())})
		}
		s.Close()
		h.logger.Debug("session disconnected", zap.String("session_id", s.ID()))
	})
}

func presence(orderID string, id domain.Identity) map[string]string {
	return map[string]string{"order_id": orderID, "user_id": id.UserID}
}

