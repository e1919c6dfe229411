package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Realtime endpoint; clients authenticate in-band after the upgrade
	s.echo.GET("/ws", s.handleWebSocket)

	rateLimited := newRateLimiter(s.config.HTTPRate, s.config.HTTPBurst)

	// Signed webhook from the payment collaborator
	s.echo.POST("/webhooks/payment", s.handlePaymentWebhook, rateLimited)

	// Order API
	api := s.echo.Group("/api", rateLimited)
	api.GET("/orders/:id", s.handleGetOrder)
	api.PATCH("/orders/:id/status", s.handleUpdateOrderStatus)
	api.GET("/sellers/:id/analytics", s.handleSellerAnalytics)
}
