package marketplace

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/skillbridge/internal/access"
	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
)

var validNext = map[domain.OrderStatus]map[domain.OrderStatus]bool{
	domain.StatusPending:    {domain.StatusInProgress: true, domain.StatusCancelled: true},
	domain.StatusInProgress: {domain.StatusCompleted: true, domain.StatusCancelled: true},
	domain.StatusCompleted:  {},
	domain.StatusCancelled:  {},
}

func CanTransition(from, to domain.OrderStatus) bool {
	return validNext[from][to]
}

var transitionEvents = map[domain.OrderStatus]domain.EventType{
	domain.StatusInProgress: domain.EventOrderAccepted,
	domain.StatusCompleted:  domain.EventOrderCompleted,
	domain.StatusCancelled:  domain.EventOrderCancelled,
}

var transitionActions = map[domain.OrderStatus]access.Action{
	domain.StatusInProgress: access.ActionAccept,
	domain.StatusCompleted:  access.ActionComplete,
	domain.StatusCancelled:  access.ActionCancel,
}

// PlaceOrderRequest carries the buyer's free-text details. Deadline is a
// YYYY-MM-DD date or empty.
type PlaceOrderRequest struct {
	ServiceID      string `json:"service_id"`
	Requirements   string `json:"requirements"`
	Scope          string `json:"scope"`
	BudgetTier     string `json:"budget_tier"`
	Deadline       string `json:"deadline"`
	IdempotencyKey string `json:"-"`
}

// NewOrder builds a pending order against svc for buyerID. The price is
// copied from the service so later repricing never touches the order.
func NewOrder(svc domain.Service, buyerID string, req PlaceOrderRequest, now time.Time) (domain.Order, domain.Event, error) {
	if buyerID == "" {
		return domain.Order{}, domain.Event{}, apperr.Unauthorized("missing buyer identity")
	}
	if svc.UserID == buyerID {
		return domain.Order{}, domain.Event{}, apperr.InvalidArgument("you cannot order your own service")
	}

	tier := strings.TrimSpace(req.BudgetTier)
	switch tier {
	case "":
		tier = domain.TierStandard
	case domain.TierBasic, domain.TierStandard, domain.TierPremium:
	default:
		return domain.Order{}, domain.Event{}, apperr.InvalidArgument(fmt.Sprintf("unknown budget tier %q", tier))
	}

	var deadline *time.Time
	if d := strings.TrimSpace(req.Deadline); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return domain.Order{}, domain.Event{}, apperr.InvalidArgument("deadline must be YYYY-MM-DD")
		}
		deadline = &t
	}

	o := domain.Order{
		ID:           uuid.NewString(),
		ServiceID:    svc.ID,
		ServiceTitle: svc.Title,
		BuyerID:      buyerID,
		SellerID:     svc.UserID,
		TotalCents:   svc.PriceCents,
		Status:       domain.StatusPending,
		Requirements: req.Requirements,
		Scope:        req.Scope,
		BudgetTier:   tier,
		Deadline:     deadline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return o, newEvent(domain.EventOrderCreated, domain.Identity{UserID: buyerID}, o, now), nil
}

// Transition moves o to target on behalf of actor and describes the change.
// It performs no I/O; persisting the result and fanning out the event is
// the caller's job.
//
// Strangers are rejected before the status is looked at, so a denied caller
// learns nothing about the order's state.
func Transition(o domain.Order, actor domain.Identity, target domain.OrderStatus, now time.Time) (domain.Order, domain.Event, error) {
	if !access.CanAccessOrder(actor, o) {
		return o, domain.Event{}, apperr.Unauthorized("not a participant in this order")
	}
	if !CanTransition(o.Status, target) {
		return o, domain.Event{}, apperr.InvalidTransition(fmt.Sprintf("cannot move order from %s to %s", o.Status, target))
	}
	if !access.CanActOnOrder(actor, o, transitionActions[target]) {
		return o, domain.Event{}, apperr.Unauthorized(fmt.Sprintf("not allowed to %s this order", transitionActions[target]))
	}

	next := o
	next.Status = target
	next.UpdatedAt = now
	if target == domain.StatusCompleted {
		at := now
		next.CompletedAt = &at
	}
	return next, newEvent(transitionEvents[target], actor, next, now), nil
}

func newEvent(t domain.EventType, actor domain.Identity, o domain.Order, now time.Time) domain.Event {
	return domain.Event{
		ID:         uuid.NewString(),
		Type:       t,
		ActorID:    actor.UserID,
		ActorAdmin: actor.IsAdmin() && !o.IsParty(actor.UserID),
		Order:      o,
		OccurredAt: now,
	}
}
