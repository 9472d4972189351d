package messaging

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Frame is the envelope of every server-to-client websocket message.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	FrameNewMessage    = "new_message"
	FramePresenceJoin  = "presence_join"
	FramePresenceLeave = "presence_leave"
	FrameError         = "error"
)

type room struct {
	orderID string
	mu      sync.Mutex
	members map[*Session]struct{}
	closed  bool
}

// Registry tracks which sessions are in which order room. Lock order is
// registry then room; a room is removed once its last member leaves.
type Registry struct {
	mu          sync.Mutex
	rooms       map[string]*room
	memberships map[*Session]map[string]struct{}
	logger      *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		rooms:       make(map[string]*room),
		memberships: make(map[*Session]map[string]struct{}),
		logger:      logger.With(zap.String("component", "rooms")),
	}
}

// Join adds s to the room for orderID and reports whether it was newly
// added. Joining twice is a no-op.
func (r *Registry) Join(orderID string, s *Session) bool {
	for {
		r.mu.Lock()
		rm, ok := r.rooms[orderID]
		if !ok {
			rm = &room{orderID: orderID, members: make(map[*Session]struct{})}
			r.rooms[orderID] = rm
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if rm.closed {
			// Emptied and evicted between the lookup and the lock.
			rm.mu.Unlock()
			continue
		}
		_, already := rm.members[s]
		rm.members[s] = struct{}{}
		rm.mu.Unlock()

		r.track(s, orderID)
		return !already
	}
}

// Leave removes s from the room and reports whether it was a member.
func (r *Registry) Leave(orderID string, s *Session) bool {
	r.mu.Lock()
	rm := r.rooms[orderID]
	r.mu.Unlock()
	r.untrack(s, orderID)
	if rm == nil {
		return false
	}

	rm.mu.Lock()
	_, was := rm.members[s]
	delete(rm.members, s)
	empty := len(rm.members) == 0
	if empty {
		rm.closed = true
	}
	rm.mu.Unlock()

	if empty {
		r.mu.Lock()
		if r.rooms[orderID] == rm {
			delete(r.rooms, orderID)
		}
		r.mu.Unlock()
	}
	return was
}

// LeaveAll removes s from every room it joined and returns those rooms.
func (r *Registry) LeaveAll(s *Session) []string {
	rooms := r.RoomsOf(s)
	for _, id := range rooms {
		r.Leave(id, s)
	}
	return rooms
}

// Broadcast delivers frame to every member of the room and returns how many
// sessions accepted it. Holding the room lock while queueing keeps frames in
// the same order for every member.
func (r *Registry) Broadcast(orderID string, frame Frame) int {
	payload, err := json.Marshal(frame)
	if err != nil {
		r.logger.Error("marshal frame", zap.String("type", frame.Type), zap.Error(err))
		return 0
	}

	r.mu.Lock()
	rm := r.rooms[orderID]
	r.mu.Unlock()
	if rm == nil {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	delivered := 0
	for s := range rm.members {
		if err := s.Send(payload); err != nil {
			r.logger.Warn("frame dropped",
				zap.String("order_id", orderID),
				zap.String("session_id", s.ID()),
				zap.String("type", frame.Type),
				zap.Error(err))
			if errors.Is(err, ErrSlowConsumer) {
				s.Close()
			}
			continue
		}
		delivered++
	}
	return delivered
}

// Members returns how many sessions are in the room.
func (r *Registry) Members(orderID string) int {
	r.mu.Lock()
	rm := r.rooms[orderID]
	r.mu.Unlock()
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) RoomsOf(s *Session) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.memberships[s]))
	for id := range r.memberships[s] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) track(s *Session, orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.memberships[s]
	if !ok {
		set = make(map[string]struct{})
		r.memberships[s] = set
	}
	set[orderID] = struct{}{}
}

func (r *Registry) untrack(s *Session, orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.memberships[s]
	delete(set, orderID)
	if len(set) == 0 {
		delete(r.memberships, s)
	}
}
