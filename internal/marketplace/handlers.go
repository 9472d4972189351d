package marketplace

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
	"github.com/sudo-init-do/skillbridge/internal/middleware"
)

const headerIdempotencyKey = "Idempotency-Key"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register mounts the order routes on an authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/orders", h.PlaceOrder)
	g.GET("/orders", h.ListOrders)
	g.GET("/orders/:id", h.GetOrder)
	g.POST("/orders/:id/accept", h.AcceptOrder)
	g.POST("/orders/:id/complete", h.CompleteOrder)
	g.POST("/orders/:id/cancel", h.CancelOrder)
	g.POST("/orders/:id/review", h.ReviewOrder)
}

// PlaceOrder - buyer orders a service
func (h *Handler) PlaceOrder(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req PlaceOrderRequest
	if err := c.Bind(&req); err != nil || req.ServiceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.IdempotencyKey = c.Request().Header.Get(headerIdempotencyKey)

	order, err := h.svc.PlaceOrder(c.Request().Context(), id, req)
	if err != nil && !errors.Is(err, ErrDispatch) {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, orderResponse(order, err))
}

func (h *Handler) AcceptOrder(c echo.Context) error {
	return h.transition(c, func(ctx context.Context, orderID string, actor domain.Identity) (domain.Order, error) {
		return h.svc.Accept(ctx, orderID, actor)
	})
}

// CompleteOrder - seller marks the work delivered, with an optional note
func (h *Handler) CompleteOrder(c echo.Context) error {
	var body struct {
		DeliveryNote string `json:"delivery_note"`
	}
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
		}
	}
	return h.transition(c, func(ctx context.Context, orderID string, actor domain.Identity) (domain.Order, error) {
		return h.svc.Complete(ctx, orderID, actor, body.DeliveryNote)
	})
}

func (h *Handler) CancelOrder(c echo.Context) error {
	return h.transition(c, func(ctx context.Context, orderID string, actor domain.Identity) (domain.Order, error) {
		return h.svc.Cancel(ctx, orderID, actor)
	})
}

type transitionFunc func(ctx context.Context, orderID string, actor domain.Identity) (domain.Order, error)

func (h *Handler) transition(c echo.Context, fn transitionFunc) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id"})
	}

	order, err := fn(c.Request().Context(), orderID, id)
	if err != nil && !errors.Is(err, ErrDispatch) {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, orderResponse(order, err))
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	order, err := h.svc.Get(c.Request().Context(), c.Param("id"), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// ListOrders - every order where the caller is buyer or seller
func (h *Handler) ListOrders(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.svc.ListMine(c.Request().Context(), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

func (h *Handler) ReviewOrder(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	review, err := h.svc.Review(c.Request().Context(), c.Param("id"), id, body.Rating, body.Comment)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, review)
}

// orderResponse carries the committed order. A fan-out failure is reported
// as a warning so the client does not retry a mutation that already stands.
func orderResponse(o domain.Order, dispatchErr error) echo.Map {
	resp := echo.Map{"order": o}
	if dispatchErr != nil {
		resp["warning"] = "order saved but notifications could not be delivered"
	}
	return resp
}
