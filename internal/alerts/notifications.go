package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
	"github.com/sudo-init-do/skillbridge/internal/store"
)

const FeedSize = 10

// NotificationStore is the slice of the gateway the notification service
// needs.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n domain.Notification) error
	GetNotification(ctx context.Context, id string) (domain.Notification, error)
	UpdateNotification(ctx context.Context, n domain.Notification) error
	DeleteNotification(ctx context.Context, id string) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	ClearNotifications(ctx context.Context, userID string) (int64, error)
}

// NotificationService owns in-app notifications. Every call is scoped to
// the authenticated recipient.
type NotificationService struct {
	store  NotificationStore
	logger *zap.Logger
	tz     *time.Location
	now    func() time.Time
}

func NewNotificationService(st NotificationStore, tz *time.Location, logger *zap.Logger) *NotificationService {
	if tz == nil {
		tz = time.UTC
	}
	return &NotificationService{
		store:  st,
		logger: logger.With(zap.String("component", "notifications")),
		tz:     tz,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *NotificationService) Create(ctx context.Context, userID, title, body, link string) (domain.Notification, error) {
	if userID == "" {
		return domain.Notification{}, apperr.InvalidArgument("recipient is required")
	}
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Link:      link,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return domain.Notification{}, apperr.Storage("insert notification", err)
	}
	return n, nil
}

func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int, error) {
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Storage("count unread", err)
	}
	return n, nil
}

func (s *NotificationService) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = FeedSize
	}
	list, err := s.store.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Storage("list notifications", err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

// owned loads a notification and checks it belongs to actor.
func (s *NotificationService) owned(ctx context.Context, actor domain.Identity, id string) (domain.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.Notification{}, apperr.NotFound("notification not found")
		}
		return domain.Notification{}, apperr.Storage("load notification", err)
	}
	if n.UserID != actor.UserID {
		s.logger.Warn("notification access denied",
			zap.String("notification_id", id),
			zap.String("actor_id", actor.UserID))
		return domain.Notification{}, apperr.Unauthorized("not your notification")
	}
	return n, nil
}

// MarkRead flags one notification as read. Marking an already-read
// notification succeeds without a write.
func (s *NotificationService) MarkRead(ctx context.Context, actor domain.Identity, id string) (domain.Notification, error) {
	n, err := s.owned(ctx, actor, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if n.IsRead {
		return n, nil
	}
	n.IsRead = true
	if err := s.store.UpdateNotification(ctx, n); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.Notification{}, apperr.NotFound("notification not found")
		}
		return domain.Notification{}, apperr.Storage("update notification", err)
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	changed, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperr.Storage("mark all read", err)
	}
	return changed, nil
}

func (s *NotificationService) Delete(ctx context.Context, actor domain.Identity, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteNotification(ctx, id); err != nil && !errors.Is(err, store.ErrNoRows) {
		return apperr.Storage("delete notification", err)
	}
	return nil
}

func (s *NotificationService) ClearAll(ctx context.Context, userID string) (int64, error) {
	removed, err := s.store.ClearNotifications(ctx, userID)
	if err != nil {
		return 0, apperr.Storage("clear notifications", err)
	}
	return removed, nil
}

type FeedItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Link        string    `json:"link"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
	DisplayTime string    `json:"display_time"`
}

type Feed struct {
	Notifications []FeedItem `json:"notifications"`
	UnreadCount   int        `json:"unread_count"`
}

// Feed returns the most recent notifications plus the unread count, shaped
// for the header dropdown.
func (s *NotificationService) Feed(ctx context.Context, userID string) (Feed, error) {
	list, err := s.ListRecent(ctx, userID, FeedSize)
	if err != nil {
		return Feed{}, err
	}
	unread, err := s.CountUnread(ctx, userID)
	if err != nil {
		return Feed{}, err
	}

	items := make([]FeedItem, 0, len(list))
	for _, n := range list {
		link := n.Link
		if link == "" {
			link = "#"
		}
		items = append(items, FeedItem{
			ID:          n.ID,
			Title:       n.Title,
			Body:        n.Body,
			Link:        link,
			IsRead:      n.IsRead,
			CreatedAt:   n.CreatedAt,
			DisplayTime: n.CreatedAt.In(s.tz).Format("Jan 02, 03:04 PM"),
		})
	}
	return Feed{Notifications: items, UnreadCount: unread}, nil
}
