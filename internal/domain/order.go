package domain

import "time"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusInProgress OrderStatus = "in_progress"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

const (
	TierBasic    = "Basic"
	TierStandard = "Standard"
	TierPremium  = "Premium"
)

// Service is the listing an order is placed against. Only the fields the
// order flow reads are carried here.
type Service struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

type Order struct {
	ID           string      `json:"id"`
	ServiceID    string      `json:"service_id"`
	ServiceTitle string      `json:"service_title"`
	BuyerID      string      `json:"buyer_id"`
	SellerID     string      `json:"seller_id"`
	TotalCents   int64       `json:"total_cents"`
	Status       OrderStatus `json:"status"`
	Requirements string      `json:"requirements,omitempty"`
	Scope        string      `json:"scope,omitempty"`
	BudgetTier   string      `json:"budget_tier,omitempty"`
	DeliveryNote string      `json:"delivery_note,omitempty"`
	Deadline     *time.Time  `json:"deadline,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	CompletedAt  *time.Time  `json:"completed_at"`
}

func (o Order) IsParty(userID string) bool {
	return userID != "" && (userID == o.BuyerID || userID == o.SellerID)
}

// Counterpart returns the other party of the order, or "" when userID is
// not a party.
func (o Order) Counterpart(userID string) string {
	switch userID {
	case o.BuyerID:
		return o.SellerID
	case o.SellerID:
		return o.BuyerID
	}
	return ""
}

type Review struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
