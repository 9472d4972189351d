package messaging

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/sudo-init-do/skillbridge/internal/domain"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowConsumer  = errors.New("session outbound buffer full")
)

const defaultSendBuffer = 64

// Session is one live client connection. Frames are queued on a buffered
// channel that the transport's write loop drains.
type Session struct {
	id       string
	identity domain.Identity

	mu     sync.Mutex
	closed bool
	send   chan []byte

	disconnect sync.Once
}

func NewSession(identity domain.Identity, buffer int) *Session {
	if buffer < 1 {
		buffer = defaultSendBuffer
	}
	return &Session{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, buffer),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Identity() domain.Identity { return s.identity }

// Send queues payload without blocking.
func (s *Session) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Outbound is closed once the session is closed.
func (s *Session) Outbound() <-chan []byte { return s.send }

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
