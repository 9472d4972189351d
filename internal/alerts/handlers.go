package alerts

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/middleware"
)

type Handler struct {
	svc *NotificationService
}

func NewHandler(svc *NotificationService) *Handler { return &Handler{svc: svc} }

// Register mounts the notification routes on an authenticated group.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/feed", h.Feed)
	g.GET("/notifications/unread-count", h.UnreadCount)
	g.POST("/notifications/read-all", h.MarkAllRead)
	g.POST("/notifications/:id/read", h.MarkRead)
	g.DELETE("/notifications/:id", h.Delete)
	g.DELETE("/notifications", h.Clear)
}

// List returns current user's notifications, newest first
func (h *Handler) List(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit := FeedSize
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 100"})
		}
		limit = n
	}
	items, err := h.svc.ListRecent(c.Request().Context(), id.UserID, limit)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

func (h *Handler) Feed(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	feed, err := h.svc.Feed(c.Request().Context(), id.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, feed)
}

func (h *Handler) UnreadCount(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	n, err := h.svc.CountUnread(c.Request().Context(), id.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

// MarkRead marks specific notification as read
func (h *Handler) MarkRead(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	nid := c.Param("id")
	if nid == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing notification id"})
	}
	n, err := h.svc.MarkRead(c.Request().Context(), id, nid)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	changed, err := h.svc.MarkAllRead(c.Request().Context(), id.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": changed})
}

func (h *Handler) Delete(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.svc.Delete(c.Request().Context(), id, c.Param("id")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Clear(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	removed, err := h.svc.ClearAll(c.Request().Context(), id.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": removed})
}
