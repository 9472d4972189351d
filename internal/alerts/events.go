package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/domain"
)

var ErrPublisherBusy = errors.New("event publisher inbox full")

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes domain events to a topic keyed by order id, so all
// events for one order land on the same partition. Publish only queues;
// a single goroutine drains the inbox into the writer.
type KafkaPublisher struct {
	w      messageWriter
	logger *zap.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewKafkaPublisher(brokers []string, topic string, buf int, logger *zap.Logger) *KafkaPublisher {
	l := logger.With(zap.String("component", "event_publisher"))
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		ErrorLogger:  zap.NewStdLog(l),
	}
	l.Info("kafka publisher initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return newKafkaPublisher(w, buf, l)
}

func newKafkaPublisher(w messageWriter, buf int, logger *zap.Logger) *KafkaPublisher {
	if buf < 1 {
		buf = 256
	}
	return &KafkaPublisher{
		w:       w,
		logger:  logger,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start drains the inbox until Close is called.
func (p *KafkaPublisher) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			if err := p.w.WriteMessages(wctx, m); err != nil {
				p.logger.Warn("kafka write failed", zap.ByteString("key", m.Key), zap.Error(err))
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			p.logger.Error("kafka writer close failed", zap.Error(err))
		}
	}()
}

func (p *KafkaPublisher) Publish(_ context.Context, evt domain.Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(evt.Order.ID),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("event publisher closed")
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return ErrPublisherBusy
	}
}

// Close flushes queued events and waits for the writer to shut down.
func (p *KafkaPublisher) Close() {
	p.mu.Lock()
	started := p.started
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	if started {
		<-p.closeCh
	}
}
