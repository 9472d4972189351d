package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/access"
	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
	"github.com/sudo-init-do/skillbridge/internal/store"
)

const maxContentLength = 4000

// ChatStore is the slice of the gateway chat needs.
type ChatStore interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	InsertMessage(ctx context.Context, m domain.Message) error
	ListMessages(ctx context.Context, orderID string) ([]domain.Message, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, evt domain.Event) error
}

// MessagePayload is the new_message frame body.
type MessagePayload struct {
	MessageID         string `json:"message_id"`
	OrderID           string `json:"order_id"`
	SenderID          string `json:"sender_id"`
	SenderDisplayName string `json:"sender_display_name"`
	Content           string `json:"content"`
	CreatedAt         string `json:"created_at"`
	CreatedAtDisplay  string `json:"created_at_display"`
}

type ChatService struct {
	store      ChatStore
	rooms      *Registry
	dispatcher Dispatcher
	tz         *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

func NewChatService(st ChatStore, rooms *Registry, dispatcher Dispatcher, tz *time.Location, logger *zap.Logger) *ChatService {
	if tz == nil {
		tz = time.UTC
	}
	return &ChatService{
		store:      st,
		rooms:      rooms,
		dispatcher: dispatcher,
		tz:         tz,
		logger:     logger.With(zap.String("component", "chat")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Send persists a message from sender on the order thread and broadcasts it
// to the order's room. Nothing is written or broadcast unless every check
// passes.
func (c *ChatService) Send(ctx context.Context, sender domain.Identity, orderID, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, apperr.InvalidArgument("message content must not be empty")
	}
	if len(content) > maxContentLength {
		return domain.Message{}, apperr.InvalidArgument("message too long")
	}

	o, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.Message{}, apperr.NotFound("order not found")
		}
		return domain.Message{}, apperr.Storage("load order", err)
	}
	if !access.CanActOnOrder(sender, o, access.ActionChat) {
		c.logger.Warn("chat send denied",
			zap.String("order_id", orderID),
			zap.String("actor_id", sender.UserID))
		return domain.Message{}, apperr.Unauthorized("not a participant in this order")
	}

	m := domain.Message{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		SenderID:  sender.UserID,
		Content:   content,
		CreatedAt: c.now(),
	}
	if err := c.store.InsertMessage(ctx, m); err != nil {
		c.logger.Error("insert message failed", zap.String("order_id", o.ID), zap.Error(err))
		return domain.Message{}, apperr.Storage("insert message", err)
	}

	name := c.displayName(ctx, m.SenderID)
	c.rooms.Broadcast(o.ID, Frame{Type: FrameNewMessage, Data: c.render(m, name)})

	if c.dispatcher != nil {
		evt := domain.Event{
			ID:         uuid.NewString(),
			Type:       domain.EventMessageNew,
			ActorID:    sender.UserID,
			ActorName:  name,
			Order:      o,
			Message:    &m,
			OccurredAt: m.CreatedAt,
		}
		// The message is committed; a notification failure is only logged.
		if err := c.dispatcher.Dispatch(ctx, evt); err != nil {
			c.logger.Error("message notification failed",
				zap.String("order_id", o.ID),
				zap.String("message_id", m.ID),
				zap.Error(err))
		}
	}
	return m, nil
}

func (c *ChatService) displayName(ctx context.Context, userID string) string {
	if u, err := c.store.GetUser(ctx, userID); err == nil {
		return u.DisplayName()
	}
	return userID
}

func (c *ChatService) render(m domain.Message, name string) MessagePayload {
	return MessagePayload{
		MessageID:         m.ID,
		OrderID:           m.OrderID,
		SenderID:          m.SenderID,
		SenderDisplayName: name,
		Content:           m.Content,
		CreatedAt:         m.CreatedAt.UTC().Format(time.RFC3339),
		CreatedAtDisplay:  m.CreatedAt.In(c.tz).Format("03:04 PM"),
	}
}

// History returns the thread oldest first. A missing order and an order the
// requester may not read both yield an empty list.
func (c *ChatService) History(ctx context.Context, requester domain.Identity, orderID string) ([]domain.Message, error) {
	empty := []domain.Message{}
	o, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return empty, nil
		}
		return nil, apperr.Storage("load order", err)
	}
	if !access.CanAccessOrder(requester, o) {
		c.logger.Warn("chat history denied",
			zap.String("order_id", orderID),
			zap.String("actor_id", requester.UserID))
		return empty, nil
	}

	msgs, err := c.store.ListMessages(ctx, o.ID)
	if err != nil {
		return nil, apperr.Storage("list messages", err)
	}
	if msgs == nil {
		return empty, nil
	}
	return msgs, nil
}

// Payloads renders messages the same way live frames are rendered.
func (c *ChatService) Payloads(ctx context.Context, msgs []domain.Message) []MessagePayload {
	out := make([]MessagePayload, 0, len(msgs))
	names := map[string]string{}
	for _, m := range msgs {
		name, ok := names[m.SenderID]
		if !ok {
			name = c.displayName(ctx, m.SenderID)
			names[m.SenderID] = name
		}
		out = append(out, c.render(m, name))
	}
	return out
}
