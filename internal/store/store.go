// Package store is the persistence gateway. Services depend on the Gateway
// interface; Postgres backs it in production and Memory backs it in tests
// and local runs.
package store

import (
	"context"
	"errors"

	"github.com/sudo-init-do/skillbridge/internal/domain"
)

var (
	ErrNoRows    = errors.New("store: no rows")
	ErrConflict  = errors.New("store: stale status")
	ErrDuplicate = errors.New("store: duplicate")
)

type Gateway interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetService(ctx context.Context, id string) (domain.Service, error)

	GetOrder(ctx context.Context, id string) (domain.Order, error)
	InsertOrder(ctx context.Context, o domain.Order) error
	// SaveOrder writes o only while the stored status still equals expected,
	// returning ErrConflict otherwise. This is the compare-and-set that keeps
	// concurrent transitions on one order from overwriting each other.
	SaveOrder(ctx context.Context, o domain.Order, expected domain.OrderStatus) error
	ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error)

	InsertMessage(ctx context.Context, m domain.Message) error
	// ListMessages returns the order's messages oldest first.
	ListMessages(ctx context.Context, orderID string) ([]domain.Message, error)

	InsertNotification(ctx context.Context, n domain.Notification) error
	GetNotification(ctx context.Context, id string) (domain.Notification, error)
	UpdateNotification(ctx context.Context, n domain.Notification) error
	DeleteNotification(ctx context.Context, id string) error
	// ListNotifications returns the newest limit notifications for userID.
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	ClearNotifications(ctx context.Context, userID string) (int64, error)

	InsertReview(ctx context.Context, r domain.Review) error
}
