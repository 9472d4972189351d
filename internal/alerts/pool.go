package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/apperr"
)

var (
	ErrQueueFull   = errors.New("email queue full")
	ErrQueueClosed = errors.New("email queue closed")
)

const attemptTimeout = 30 * time.Second

// JobSender performs one delivery attempt for a job.
type JobSender interface {
	Deliver(ctx context.Context, job EmailJob) error
}

// MailSender sends jobs straight through a Mailer.
type MailSender struct {
	Mailer Mailer
}

func (s MailSender) Deliver(ctx context.Context, job EmailJob) error {
	return s.Mailer.Send(ctx, job.Envelope)
}

// EmailPool runs email jobs on a fixed set of workers behind a bounded
// queue. Submit never blocks; jobs that do not fit are dropped and logged.
type EmailPool struct {
	sender  JobSender
	workers int
	retry   RetryConfig
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan EmailJob
	wg     sync.WaitGroup
}

func NewEmailPool(sender JobSender, workers, queueSize int, retry RetryConfig, logger *zap.Logger) *EmailPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &EmailPool{
		sender:  sender,
		workers: workers,
		retry:   retry,
		logger:  logger.With(zap.String("component", "email_pool")),
		jobs:    make(chan EmailJob, queueSize),
	}
}

// Start launches the workers. Deliveries do not inherit ctx's
// cancellation: once ctx is done each remaining job still gets one attempt,
// so Close drains the queue within a bounded time.
func (p *EmailPool) Start(ctx context.Context) {
	deliverCtx := context.WithoutCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for job := range p.jobs {
				retry := p.retry
				if ctx.Err() != nil {
					retry.MaxRetries = 1
				}
				p.deliver(deliverCtx, retry, id, job)
			}
		}(i)
	}
	p.logger.Info("email pool started", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.jobs)))
}

func (p *EmailPool) Submit(job EmailJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return apperr.Delivery("submit email", ErrQueueClosed)
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return apperr.Delivery("submit email", ErrQueueFull)
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *EmailPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *EmailPool) deliver(ctx context.Context, retry RetryConfig, worker int, job EmailJob) {
	attempts := 0
	err := retryWithBackoff(ctx, retry, func() error {
		attempts++
		actx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()
		return p.sender.Deliver(actx, job)
	})
	if err != nil {
		p.logger.Error("email delivery failed",
			zap.Int("worker", worker),
			zap.String("task", job.Task),
			zap.String("order_id", job.OrderID),
			zap.String("recipient_id", job.RecipientID),
			zap.Int("attempts", attempts),
			zap.Error(apperr.Delivery("send email", err)))
		return
	}
	p.logger.Debug("email delivered",
		zap.String("task", job.Task),
		zap.String("order_id", job.OrderID),
		zap.Int("attempts", attempts))
}
