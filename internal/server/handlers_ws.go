package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/martlabs/orderpulse/internal/logging"
	"github.com/martlabs/orderpulse/internal/realtime"
)

const maxFrameBytes = 4 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from arbitrary storefront origins;
		// authentication happens in-band after the upgrade.
		return true
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	allowed, reason := s.limits.Acquire(ip)
	if !allowed {
		slog.Warn("websocket connection rejected", "ip", ip, "reason", reason)
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many connections"})
	}
	defer s.limits.Release(ip)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		return nil
	}

	conn := s.registry.Register(ws)
	defer s.registry.Remove(conn.ID())

	log := logging.WithConnection(conn.ID().String())
	log.Debug("websocket connection established", "ip", ip)

	ws.SetReadLimit(maxFrameBytes)
	ws.SetPongHandler(func(string) error {
		conn.Pong()
		return nil
	})

	conn.Send(realtime.ConnectionEstablishedFrame(conn.ID()))

	ctx := c.Request().Context()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read ended", "error", err)
			}
			return nil
		}
		if resp := s.dispatcher.Handle(ctx, conn, raw); resp != nil {
			conn.Send(resp)
		}
	}
}
