package domain

import "time"

type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderAccepted  EventType = "order.accepted"
	EventOrderCompleted EventType = "order.completed"
	EventOrderCancelled EventType = "order.cancelled"
	EventMessageNew     EventType = "message.new"
)

// Event describes a committed state change. The order is the state after
// the change; Message is set only for EventMessageNew. ActorName is the
// actor's display name when the producer already resolved it.
type Event struct {
	ID         string    `json:"event_id"`
	Type       EventType `json:"event_type"`
	ActorID    string    `json:"actor_id"`
	ActorAdmin bool      `json:"actor_admin,omitempty"`
	ActorName  string    `json:"actor_name,omitempty"`
	Order      Order     `json:"order"`
	Message    *Message  `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
