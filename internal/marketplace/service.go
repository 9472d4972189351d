package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/access"
	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
	"github.com/sudo-init-do/skillbridge/internal/store"
)

// ErrDispatch marks an error raised after the order change was saved. The
// returned order is the committed state.
var ErrDispatch = errors.New("order saved but fan-out failed")

// Dispatcher receives every committed order event.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt domain.Event) error
}

// Idempotency remembers which order a buyer's Idempotency-Key produced.
// A key is first reserved with a pending token, then either bound to the
// order id or released when placement fails.
type Idempotency interface {
	// Reserve claims key for buyerID with token. When the key is already
	// held it reports the current value (a pending token or an order id).
	Reserve(ctx context.Context, buyerID, key, token string) (current string, reserved bool, err error)
	Remember(ctx context.Context, buyerID, key, orderID string) error
	// Release drops the key only while it still holds token.
	Release(ctx context.Context, buyerID, key, token string) error
}

const (
	idemPendingPrefix = "pending:"
	idemPollInterval  = 25 * time.Millisecond
	idemWaitLimit     = 5 * time.Second
)

type Service struct {
	store      store.Gateway
	dispatcher Dispatcher
	idem       Idempotency
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithIdempotency(idem Idempotency) Option { return func(s *Service) { s.idem = idem } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(gw store.Gateway, dispatcher Dispatcher, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:      gw,
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("component", "orders")),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder creates a pending order for the buyer and notifies the seller.
func (s *Service) PlaceOrder(ctx context.Context, buyer domain.Identity, req PlaceOrderRequest) (domain.Order, error) {
	if strings.TrimSpace(req.ServiceID) == "" {
		return domain.Order{}, apperr.InvalidArgument("service_id is required")
	}

	if s.idem != nil && req.IdempotencyKey != "" {
		token := idemPendingPrefix + uuid.NewString()
		existing, owned, err := s.claimKey(ctx, buyer.UserID, req.IdempotencyKey, token)
		if err != nil {
			return domain.Order{}, err
		}
		if !owned {
			return existing, nil
		}
		order, err := s.placeOrder(ctx, buyer, req)
		if err != nil && !errors.Is(err, ErrDispatch) {
			if rerr := s.idem.Release(context.WithoutCancel(ctx), buyer.UserID, req.IdempotencyKey, token); rerr != nil {
				s.logger.Warn("idempotency release failed", zap.String("buyer_id", buyer.UserID), zap.Error(rerr))
			}
			return order, err
		}
		if rerr := s.idem.Remember(ctx, buyer.UserID, req.IdempotencyKey, order.ID); rerr != nil {
			s.logger.Warn("idempotency remember failed", zap.String("order_id", order.ID), zap.Error(rerr))
		}
		return order, err
	}
	return s.placeOrder(ctx, buyer, req)
}

// claimKey reserves the buyer's key. It returns true when this request must
// place the order; otherwise it returns the order placed under the key.
// A request that finds the key still pending waits for the holder, and
// gives up with InvalidTransition after idemWaitLimit.
func (s *Service) claimKey(ctx context.Context, buyerID, key, token string) (domain.Order, bool, error) {
	deadline := time.Now().Add(idemWaitLimit)
	for {
		current, reserved, err := s.idem.Reserve(ctx, buyerID, key, token)
		if err != nil {
			s.logger.Warn("idempotency reserve failed, placing without key", zap.String("buyer_id", buyerID), zap.Error(err))
			return domain.Order{}, true, nil
		}
		if reserved {
			return domain.Order{}, true, nil
		}
		if current != "" && !strings.HasPrefix(current, idemPendingPrefix) {
			o, err := s.store.GetOrder(ctx, current)
			if err == nil {
				return o, false, nil
			}
			if !errors.Is(err, store.ErrNoRows) {
				return domain.Order{}, false, apperr.Storage("load order", err)
			}
		}
		if time.Now().After(deadline) {
			return domain.Order{}, false, apperr.InvalidTransition("a request with this Idempotency-Key is still in progress")
		}
		select {
		case <-ctx.Done():
			return domain.Order{}, false, ctx.Err()
		case <-time.After(idemPollInterval):
		}
	}
}

func (s *Service) placeOrder(ctx context.Context, buyer domain.Identity, req PlaceOrderRequest) (domain.Order, error) {
	svc, err := s.store.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.Order{}, apperr.NotFound("service not found")
		}
		return domain.Order{}, apperr.Storage("load service", err)
	}

	order, evt, err := NewOrder(svc, buyer.UserID, req, s.now())
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.store.InsertOrder(ctx, order); err != nil {
		s.logger.Error("insert order failed", zap.String("service_id", svc.ID), zap.Error(err))
		return domain.Order{}, apperr.Storage("insert order", err)
	}
	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", order.BuyerID),
		zap.String("seller_id", order.SellerID),
		zap.Int64("total_cents", order.TotalCents))

	return order, s.dispatch(ctx, evt)
}

func (s *Service) Accept(ctx context.Context, orderID string, actor domain.Identity) (domain.Order, error) {
	return s.transition(ctx, orderID, actor, domain.StatusInProgress, nil)
}

// Complete finishes the order. A non-empty note is stored as the seller's
// delivery note.
func (s *Service) Complete(ctx context.Context, orderID string, actor domain.Identity, deliveryNote string) (domain.Order, error) {
	return s.transition(ctx, orderID, actor, domain.StatusCompleted, func(o *domain.Order) {
		if note := strings.TrimSpace(deliveryNote); note != "" {
			o.DeliveryNote = note
		}
	})
}

func (s *Service) Cancel(ctx context.Context, orderID string, actor domain.Identity) (domain.Order, error) {
	return s.transition(ctx, orderID, actor, domain.StatusCancelled, nil)
}

func (s *Service) transition(ctx context.Context, orderID string, actor domain.Identity, target domain.OrderStatus, mutate func(*domain.Order)) (domain.Order, error) {
	current, err := s.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	next, evt, err := Transition(current, actor, target, s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			s.logger.Warn("order transition denied",
				zap.String("order_id", orderID),
				zap.String("actor_id", actor.UserID),
				zap.String("target", string(target)))
		}
		return current, err
	}
	if mutate != nil {
		mutate(&next)
		evt.Order = next
	}

	if err := s.store.SaveOrder(ctx, next, current.Status); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return current, apperr.InvalidTransition("order was changed by another request")
		case errors.Is(err, store.ErrNoRows):
			return current, apperr.NotFound("order not found")
		}
		s.logger.Error("save order failed", zap.String("order_id", orderID), zap.Error(err))
		return current, apperr.Storage("save order", err)
	}
	s.logger.Info("order transitioned",
		zap.String("order_id", orderID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
		zap.String("actor_id", actor.UserID))

	return next, s.dispatch(ctx, evt)
}

// dispatch fans the committed event out. The order change already stands,
// so a failure here is returned alongside the updated order.
func (s *Service) dispatch(ctx context.Context, evt domain.Event) error {
	if s.dispatcher == nil {
		return nil
	}
	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		s.logger.Error("dispatch failed",
			zap.String("order_id", evt.Order.ID),
			zap.String("event", string(evt.Type)),
			zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	return nil
}

// Get returns the order when actor may read it. Missing and forbidden
// orders both come back as NotFound.
func (s *Service) Get(ctx context.Context, orderID string, actor domain.Identity) (domain.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !access.CanAccessOrder(actor, o) {
		s.logger.Warn("order read denied", zap.String("order_id", orderID), zap.String("actor_id", actor.UserID))
		return domain.Order{}, apperr.NotFound("order not found")
	}
	return o, nil
}

// ListMine returns every order where actor is buyer or seller, newest first.
func (s *Service) ListMine(ctx context.Context, actor domain.Identity) ([]domain.Order, error) {
	orders, err := s.store.ListOrdersForUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Storage("list orders", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// Review records the buyer's rating for a completed order. One review per
// order.
func (s *Service) Review(ctx context.Context, orderID string, actor domain.Identity, rating int, comment string) (domain.Review, error) {
	if rating < 1 || rating > 5 {
		return domain.Review{}, apperr.InvalidArgument("rating must be between 1 and 5")
	}
	if len(comment) > 1000 {
		return domain.Review{}, apperr.InvalidArgument("comment too long (max 1000 characters)")
	}

	o, err := s.load(ctx, orderID)
	if err != nil {
		return domain.Review{}, err
	}
	if !access.CanActOnOrder(actor, o, access.ActionReview) {
		return domain.Review{}, apperr.Unauthorized("only the buyer can review this order")
	}
	if o.Status != domain.StatusCompleted {
		return domain.Review{}, apperr.InvalidTransition("can only review completed orders")
	}

	r := domain.Review{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: s.now(),
	}
	if err := s.store.InsertReview(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Review{}, apperr.InvalidTransition("review already exists for this order")
		}
		return domain.Review{}, apperr.Storage("insert review", err)
	}
	return r, nil
}

func (s *Service) load(ctx context.Context, orderID string) (domain.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return domain.Order{}, apperr.NotFound("order not found")
		}
		return domain.Order{}, apperr.Storage("load order", err)
	}
	return o, nil
}
