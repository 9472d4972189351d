package alerts

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Enqueuer hands email jobs to asynq so they survive a restart. The
// processor performs the actual send.
type Enqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func NewEnqueuer(client *asynq.Client, maxRetry int) *Enqueuer {
	return &Enqueuer{client: client, maxRetry: maxRetry}
}

func NewEmailTask(job EmailJob, maxRetry int) (*asynq.Task, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(job.Task, b, asynq.Queue(queueEmails), asynq.MaxRetry(maxRetry)), nil
}

func (e *Enqueuer) Deliver(ctx context.Context, job EmailJob) error {
	task, err := NewEmailTask(job, e.maxRetry)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task)
	return err
}

func (e *Enqueuer) Close() error { return e.client.Close() }
