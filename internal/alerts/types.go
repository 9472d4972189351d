package alerts

import "time"

// Task type constants
const (
	TaskOrderPlaced    = "email:order_placed"
	TaskOrderAccepted  = "email:order_accepted"
	TaskOrderCompleted = "email:order_completed"
	TaskOrderCancelled = "email:order_cancelled"
)

const queueEmails = "emails"

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// EmailJob is one message to one recipient, as handed to the worker pool
// and serialized into asynq task payloads.
type EmailJob struct {
	Task        string        `json:"task"`
	OrderID     string        `json:"order_id"`
	RecipientID string        `json:"recipient_id"`
	Envelope    EmailEnvelope `json:"envelope"`
	QueuedAt    time.Time     `json:"queued_at"`
}
