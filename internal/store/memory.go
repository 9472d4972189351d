package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sudo-init-do/skillbridge/internal/domain"
)

// Memory is an in-process Gateway. Every call runs under one mutex, which
// gives the same per-operation atomicity the Postgres gateway gets from
// its transactions.
type Memory struct {
	mu            sync.Mutex
	users         map[string]domain.User
	services      map[string]domain.Service
	orders        map[string]domain.Order
	messages      map[string][]domain.Message
	notifications map[string]domain.Notification
	notifOrder    []string
	reviews       map[string]domain.Review
}

var _ Gateway = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[string]domain.User),
		services:      make(map[string]domain.Service),
		orders:        make(map[string]domain.Order),
		messages:      make(map[string][]domain.Message),
		notifications: make(map[string]domain.Notification),
		reviews:       make(map[string]domain.Review),
	}
}

// PutUser and PutService seed records owned by collaborators outside the core.
func (m *Memory) PutUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) PutService(s domain.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
}

func (m *Memory) GetUser(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, ErrNoRows
	}
	return u, nil
}

func (m *Memory) GetService(_ context.Context, id string) (domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return domain.Service{}, ErrNoRows
	}
	return s, nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, ErrNoRows
	}
	return o, nil
}

func (m *Memory) InsertOrder(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return ErrDuplicate
	}
	m.orders[o.ID] = o
	return nil
}

func (m *Memory) SaveOrder(_ context.Context, o domain.Order, expected domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[o.ID]
	if !ok {
		return ErrNoRows
	}
	if cur.Status != expected {
		return ErrConflict
	}
	m.orders[o.ID] = o
	return nil
}

func (m *Memory) ListOrdersForUser(_ context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.IsParty(userID) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) InsertMessage(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.OrderID] = append(m.messages[msg.OrderID], msg)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, orderID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.Message(nil), m.messages[orderID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) InsertNotification(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[n.ID]; ok {
		return ErrDuplicate
	}
	m.notifications[n.ID] = n
	m.notifOrder = append(m.notifOrder, n.ID)
	return nil
}

func (m *Memory) GetNotification(_ context.Context, id string) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.Notification{}, ErrNoRows
	}
	return n, nil
}

func (m *Memory) UpdateNotification(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[n.ID]; !ok {
		return ErrNoRows
	}
	m.notifications[n.ID] = n
	return nil
}

func (m *Memory) DeleteNotification(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[id]; !ok {
		return ErrNoRows
	}
	delete(m.notifications, id)
	m.compactNotifOrder()
	return nil
}

// ListNotifications walks insertion order backwards, so ties on CreatedAt
// still come out newest first.
func (m *Memory) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for i := len(m.notifOrder) - 1; i >= 0; i-- {
		n, ok := m.notifications[m.notifOrder[i]]
		if !ok || n.UserID != userID {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) CountUnread(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *Memory) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for id, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			m.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (m *Memory) ClearNotifications(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, n := range m.notifications {
		if n.UserID == userID {
			delete(m.notifications, id)
			removed++
		}
	}
	m.compactNotifOrder()
	return removed, nil
}

// compactNotifOrder drops ids of deleted notifications. Callers hold m.mu.
func (m *Memory) compactNotifOrder() {
	kept := m.notifOrder[:0]
	for _, id := range m.notifOrder {
		if _, ok := m.notifications[id]; ok {
			kept = append(kept, id)
		}
	}
	m.notifOrder = kept
}

func (m *Memory) InsertReview(_ context.Context, r domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[r.OrderID]; ok {
		return ErrDuplicate
	}
	m.reviews[r.OrderID] = r
	return nil
}
