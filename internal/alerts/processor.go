package alerts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// NewEmailMux routes every email task type to a handler that sends through
// mailer.
func NewEmailMux(mailer Mailer, logger *zap.Logger) *asynq.ServeMux {
	log := logger.With(zap.String("component", "email_processor"))
	handle := func(ctx context.Context, t *asynq.Task) error {
		var job EmailJob
		if err := json.Unmarshal(t.Payload(), &job); err != nil {
			log.Error("bad email payload", zap.String("task", t.Type()), zap.Error(err))
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		if err := mailer.Send(ctx, job.Envelope); err != nil {
			log.Warn("email send failed",
				zap.String("task", t.Type()),
				zap.String("order_id", job.OrderID),
				zap.Error(err))
			return err
		}
		log.Info("email sent",
			zap.String("task", t.Type()),
			zap.String("order_id", job.OrderID),
			zap.String("recipient_id", job.RecipientID))
		return nil
	}

	mux := asynq.NewServeMux()
	for _, task := range []string{TaskOrderPlaced, TaskOrderAccepted, TaskOrderCompleted, TaskOrderCancelled} {
		mux.HandleFunc(task, handle)
	}
	return mux
}

// Processor consumes the email queue.
type Processor struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewProcessor(redis asynq.RedisConnOpt, mailer Mailer, concurrency int, logger *zap.Logger) *Processor {
	if concurrency < 1 {
		concurrency = 5
	}
	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueEmails: 10,
		},
		Logger: logger.With(zap.String("component", "asynq")).Sugar(),
	})
	return &Processor{
		server: server,
		mux:    NewEmailMux(mailer, logger),
		logger: logger.With(zap.String("component", "email_processor")),
	}
}

// Run processes tasks until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.server.Start(p.mux); err != nil {
		return err
	}
	p.logger.Info("asynq processor started")
	<-ctx.Done()
	p.server.Shutdown()
	p.logger.Info("asynq processor stopped")
	return nil
}
