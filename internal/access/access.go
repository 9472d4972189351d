// Package access decides who may read, write or drive an order. Every
// function is a pure predicate over an identity and an order already loaded
// by the caller.
package access

import "github.com/sudo-init-do/skillbridge/internal/domain"

type Action string

const (
	ActionRead     Action = "read"
	ActionChat     Action = "chat"
	ActionAccept   Action = "accept"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionReview   Action = "review"
)

// CanAccessOrder reports whether actor may see the order and join its room.
func CanAccessOrder(actor domain.Identity, order domain.Order) bool {
	return order.IsParty(actor.UserID) || actor.IsAdmin()
}

// CanActOnOrder applies the per-action rule table. It checks who may act,
// not whether the order's current status allows it.
func CanActOnOrder(actor domain.Identity, order domain.Order, action Action) bool {
	switch action {
	case ActionRead:
		return CanAccessOrder(actor, order)
	case ActionChat:
		// Admins can read the thread but never author into it.
		return order.IsParty(actor.UserID)
	case ActionAccept, ActionComplete:
		return actor.UserID != "" && actor.UserID == order.SellerID
	case ActionCancel:
		return CanCancel(actor, order)
	case ActionReview:
		return actor.UserID != "" && actor.UserID == order.BuyerID
	}
	return false
}

// CanCancel: the buyer only before acceptance, the seller until completion,
// admins on any open order.
func CanCancel(actor domain.Identity, order domain.Order) bool {
	if actor.UserID == "" {
		return false
	}
	switch {
	case actor.UserID == order.SellerID:
		return order.Status == domain.StatusPending || order.Status == domain.StatusInProgress
	case actor.UserID == order.BuyerID:
		return order.Status == domain.StatusPending
	case actor.IsAdmin():
		return !order.Status.Terminal()
	}
	return false
}
