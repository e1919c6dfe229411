package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/martlabs/orderpulse/internal/domain"
)

const userIDHeader = "X-User-ID"

// handleGetOrder returns an order with its items. Not-found and
// access-denied are deliberately indistinguishable to the caller.
func (s *Server) handleGetOrder(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid order id"})
	}
	userID, err := uuid.Parse(c.Request().Header.Get(userIDHeader))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or invalid " + userIDHeader})
	}

	order, err := s.orders.GetByID(c.Request().Context(), orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return orderAccessDenied(c)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	if !canViewOrder(order, userID) {
		return orderAccessDenied(c)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"order":    order,
		"tracking": domain.TrackingFor(order),
	})
}

// handleUpdateOrderStatus transitions an order along the lifecycle graph.
func (s *Server) handleUpdateOrderStatus(c echo.Context) error {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid order id"})
	}

	var req struct {
		Status domain.OrderStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "status is required"})
	}

	order, err := s.processor.TransitionStatus(c.Request().Context(), orderID, req.Status)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrStatusConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": "order status changed concurrently"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, order)
}

// handleSellerAnalytics returns a seller's aggregate for one UTC day.
// The date query parameter defaults to today.
func (s *Server) handleSellerAnalytics(c echo.Context) error {
	sellerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid seller id"})
	}

	day := time.Now().UTC()
	if raw := c.QueryParam("date"); raw != "" {
		day, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		}
	}

	row, err := s.analytics.GetSellerDay(c.Request().Context(), sellerID, day)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, row)
}

func canViewOrder(order *domain.Order, userID uuid.UUID) bool {
	if order.BuyerUserID == userID {
		return true
	}
	for _, item := range order.Items {
		if item.SellerID == userID {
			return true
		}
	}
	return false
}

func orderAccessDenied(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": "Order not found or access denied"})
}
