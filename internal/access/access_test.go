package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sudo-init-do/skillbridge/internal/access"
	"github.com/sudo-init-do/skillbridge/internal/domain"
)

var (
	buyer    = domain.Identity{UserID: "buyer", Role: domain.RoleMember}
	seller   = domain.Identity{UserID: "seller", Role: domain.RoleMember}
	stranger = domain.Identity{UserID: "stranger", Role: domain.RoleMember}
	admin    = domain.Identity{UserID: "admin", Role: domain.RoleAdmin}
	nobody   = domain.Identity{}
)

func order(status domain.OrderStatus) domain.Order {
	return domain.Order{ID: "o1", BuyerID: "buyer", SellerID: "seller", Status: status}
}

func TestCanAccessOrder(t *testing.T) {
	o := order(domain.StatusPending)
	assert.True(t, access.CanAccessOrder(buyer, o))
	assert.True(t, access.CanAccessOrder(seller, o))
	assert.True(t, access.CanAccessOrder(admin, o))
	assert.False(t, access.CanAccessOrder(stranger, o))
	assert.False(t, access.CanAccessOrder(nobody, o))
}

func TestCanActOnOrder(t *testing.T) {
	tests := []struct {
		name   string
		actor  domain.Identity
		status domain.OrderStatus
		action access.Action
		want   bool
	}{
		{"seller accepts", seller, domain.StatusPending, access.ActionAccept, true},
		{"buyer cannot accept", buyer, domain.StatusPending, access.ActionAccept, false},
		{"admin cannot accept", admin, domain.StatusPending, access.ActionAccept, false},
		{"seller completes", seller, domain.StatusInProgress, access.ActionComplete, true},
		{"buyer cannot complete", buyer, domain.StatusInProgress, access.ActionComplete, false},
		{"buyer chats", buyer, domain.StatusPending, access.ActionChat, true},
		{"seller chats", seller, domain.StatusCompleted, access.ActionChat, true},
		{"admin cannot chat", admin, domain.StatusPending, access.ActionChat, false},
		{"stranger cannot chat", stranger, domain.StatusPending, access.ActionChat, false},
		{"admin reads", admin, domain.StatusPending, access.ActionRead, true},
		{"stranger cannot read", stranger, domain.StatusPending, access.ActionRead, false},
		{"buyer cancels pending", buyer, domain.StatusPending, access.ActionCancel, true},
		{"buyer cannot cancel accepted", buyer, domain.StatusInProgress, access.ActionCancel, false},
		{"seller cancels accepted", seller, domain.StatusInProgress, access.ActionCancel, true},
		{"seller cannot cancel completed", seller, domain.StatusCompleted, access.ActionCancel, false},
		{"admin cancels accepted", admin, domain.StatusInProgress, access.ActionCancel, true},
		{"admin cannot cancel cancelled", admin, domain.StatusCancelled, access.ActionCancel, false},
		{"stranger cannot cancel", stranger, domain.StatusPending, access.ActionCancel, false},
		{"buyer reviews", buyer, domain.StatusCompleted, access.ActionReview, true},
		{"seller cannot review", seller, domain.StatusCompleted, access.ActionReview, false},
		{"unknown action", seller, domain.StatusPending, access.Action("refund"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, access.CanActOnOrder(tt.actor, order(tt.status), tt.action))
		})
	}
}
