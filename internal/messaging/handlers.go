package messaging

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/domain"
	"github.com/sudo-init-do/skillbridge/internal/middleware"
)

type Handler struct {
	chat *ChatService
}

func NewHandler(chat *ChatService) *Handler { return &Handler{chat: chat} }

// Register mounts the message routes on an authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/orders/:id/messages", h.ListMessages)
	g.POST("/orders/:id/messages", h.SendMessage)
}

// SendMessage - buyer or seller sends a message in an order thread
func (h *Handler) SendMessage(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing order id"})
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	m, err := h.chat.Send(c.Request().Context(), id, orderID, body.Content)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, h.chat.Payloads(c.Request().Context(), []domain.Message{m})[0])
}

// ListMessages - thread history, oldest first
func (h *Handler) ListMessages(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	msgs, err := h.chat.History(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": h.chat.Payloads(c.Request().Context(), msgs)})
}
