package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
)

// UserLookup resolves recipients to their email address and display name.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
}

// EmailQueue accepts jobs without blocking the caller.
type EmailQueue interface {
	Submit(job EmailJob) error
}

// EventPublisher forwards committed events to an external stream.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.Event) error
}

// Dispatcher turns a committed event into persisted notifications, email
// jobs and a published event, in that order.
type Dispatcher struct {
	notifs *NotificationService
	users  UserLookup
	emails EmailQueue
	events EventPublisher
	appURL string
	logger *zap.Logger
}

type DispatcherOption func(*Dispatcher)

func WithEventPublisher(p EventPublisher) DispatcherOption {
	return func(d *Dispatcher) { d.events = p }
}

func NewDispatcher(notifs *NotificationService, users UserLookup, emails EmailQueue, appURL string, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifs: notifs,
		users:  users,
		emails: emails,
		appURL: appURL,
		logger: logger.With(zap.String("component", "dispatcher")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type notice struct {
	recipient string
	title     string
	body      string
}

type mail struct {
	recipient string
	task      string
	subject   string
	body      string
}

type plan struct {
	notices []notice
	mails   []mail
}

func (d *Dispatcher) orderLink(o domain.Order) string {
	return d.appURL + "/orders/" + o.ID
}

// planFor is the fan-out table: who gets an in-app notice and who gets an
// email for each event type.
func planFor(evt domain.Event) plan {
	o := evt.Order
	title := o.ServiceTitle
	if title == "" {
		title = "your service"
	}

	switch evt.Type {
	case domain.EventOrderCreated:
		return plan{
			notices: []notice{{o.SellerID, "New Order Received", fmt.Sprintf("You have a new order for %s.", title)}},
			mails: []mail{
				{o.BuyerID, TaskOrderPlaced, "Your order has been sent successfully", fmt.Sprintf("Your order for %s was sent to the seller.", title)},
				{o.SellerID, TaskOrderPlaced, "New order received", fmt.Sprintf("You have a new order for %s.", title)},
			},
		}
	case domain.EventOrderAccepted:
		return plan{
			notices: []notice{{o.BuyerID, fmt.Sprintf("Order #%s Accepted", o.ID), fmt.Sprintf("Your order for %s has been accepted.", title)}},
			mails: []mail{
				{o.BuyerID, TaskOrderAccepted, "Your order has been accepted", fmt.Sprintf("Your order for %s has been accepted.", title)},
				{o.SellerID, TaskOrderAccepted, "Order accepted successfully", fmt.Sprintf("You accepted the order for %s.", title)},
			},
		}
	case domain.EventOrderCompleted:
		return plan{
			notices: []notice{{o.BuyerID, fmt.Sprintf("Order #%s Completed", o.ID), fmt.Sprintf("Your order for %s is ready!", title)}},
			mails: []mail{
				{o.BuyerID, TaskOrderCompleted, "Your order has been completed", fmt.Sprintf("Your order for %s is ready!", title)},
				{o.SellerID, TaskOrderCompleted, "Order marked as completed", fmt.Sprintf("The order for %s is marked as completed.", title)},
			},
		}
	case domain.EventOrderCancelled:
		var recipients []string
		if evt.ActorAdmin {
			recipients = []string{o.BuyerID, o.SellerID}
		} else {
			recipients = []string{o.Counterpart(evt.ActorID)}
		}
		var p plan
		for _, r := range recipients {
			if r == "" {
				continue
			}
			p.notices = append(p.notices, notice{r, fmt.Sprintf("Order #%s Cancelled", o.ID), fmt.Sprintf("The order for %s was cancelled.", title)})
			p.mails = append(p.mails, mail{r, TaskOrderCancelled, "Order cancelled", fmt.Sprintf("The order for %s was cancelled.", title)})
		}
		return p
	case domain.EventMessageNew:
		recipient := o.Counterpart(evt.ActorID)
		if recipient == "" {
			return plan{}
		}
		return plan{
			notices: []notice{{recipient, "New Message", fmt.Sprintf("New message from %s", evt.ActorName)}},
		}
	}
	return plan{}
}

// Dispatch fans evt out. It returns a StorageFailure when a notification
// could not be persisted. Email and stream failures are logged only.
func (d *Dispatcher) Dispatch(ctx context.Context, evt domain.Event) error {
	if evt.Type == domain.EventMessageNew && evt.ActorName == "" {
		evt.ActorName = d.displayName(ctx, evt.ActorID)
	}
	p := planFor(evt)
	link := d.orderLink(evt.Order)

	var errs []error
	for _, n := range p.notices {
		if _, err := d.notifs.Create(ctx, n.recipient, n.title, n.body, link); err != nil {
			d.logger.Error("notification insert failed",
				zap.String("order_id", evt.Order.ID),
				zap.String("recipient_id", n.recipient),
				zap.String("event", string(evt.Type)),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	for _, m := range p.mails {
		d.queueEmail(ctx, evt, m, link)
	}

	if d.events != nil {
		if err := d.events.Publish(ctx, evt); err != nil {
			d.logger.Warn("event publish failed",
				zap.String("event_id", evt.ID),
				zap.String("event", string(evt.Type)),
				zap.Error(apperr.Delivery("publish event", err)))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (d *Dispatcher) displayName(ctx context.Context, userID string) string {
	if u, err := d.users.GetUser(ctx, userID); err == nil {
		return u.DisplayName()
	}
	return userID
}

func (d *Dispatcher) queueEmail(ctx context.Context, evt domain.Event, m mail, link string) {
	if d.emails == nil {
		return
	}
	u, err := d.users.GetUser(ctx, m.recipient)
	if err != nil {
		d.logger.Warn("email recipient lookup failed",
			zap.String("order_id", evt.Order.ID),
			zap.String("recipient_id", m.recipient),
			zap.Error(apperr.Delivery("lookup recipient", err)))
		return
	}
	if u.Email == "" {
		return
	}

	job := EmailJob{
		Task:        m.task,
		OrderID:     evt.Order.ID,
		RecipientID: u.ID,
		Envelope: EmailEnvelope{
			To:      u.Email,
			Subject: m.subject,
			Body:    fmt.Sprintf("Hi %s,\n\n%s\n\nView the order: %s\n", u.DisplayName(), m.body, link),
		},
		QueuedAt: time.Now().UTC(),
	}
	if err := d.emails.Submit(job); err != nil {
		d.logger.Warn("email not queued",
			zap.String("order_id", evt.Order.ID),
			zap.String("recipient_id", u.ID),
			zap.String("task", m.task),
			zap.Error(err))
	}
}
