package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/skillbridge/internal/apperr"
	"github.com/sudo-init-do/skillbridge/internal/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// inbound is a client-to-server frame.
type inbound struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
	Content string `json:"content"`
}

type Transport struct {
	sessions *Sessions
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewTransport accepts websocket upgrades. An empty allowedOrigins list
// accepts any origin.
func NewTransport(sessions *Sessions, allowedOrigins []string, logger *zap.Logger) *Transport {
	return &Transport{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger.With(zap.String("component", "ws")),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(strings.TrimRight(a, "/"), origin) {
				return true
			}
		}
		return false
	}
}

// Handle upgrades an authenticated request and serves the session until
// the client goes away.
func (t *Transport) Handle(c echo.Context) error {
	id, ok := middleware.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	conn, err := t.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		t.logger.Debug("upgrade failed", zap.Error(err))
		return nil
	}

	s := t.sessions.Connect(id)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.writePump(conn, s)
	}()

	t.readPump(context.WithoutCancel(c.Request().Context()), conn, s)
	t.sessions.Disconnect(s)
	<-done
	return nil
}

func (t *Transport) readPump(ctx context.Context, conn *websocket.Conn, s *Session) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Debug("read failed", zap.String("session_id", s.ID()), zap.Error(err))
			}
			return
		}
		if s.Closed() {
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			t.sessions.SendError(s, apperr.InvalidArgument("malformed frame"))
			continue
		}
		switch msg.Type {
		case "join":
			t.sessions.Join(ctx, s, msg.OrderID)
		case "leave":
			t.sessions.Leave(s, msg.OrderID)
		case "send_message":
			t.sessions.SendMessage(ctx, s, msg.OrderID, msg.Content)
		default:
			t.sessions.SendError(s, apperr.InvalidArgument("unknown frame type"))
		}
	}
}

// writePump drains the session's outbound queue. It returns when the
// session is closed or a write fails; either way the connection is closed,
// which unblocks the read loop.
func (t *Transport) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
