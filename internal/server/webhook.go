package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/martlabs/orderpulse/internal/domain"
	"github.com/martlabs/orderpulse/internal/metrics"
	"github.com/martlabs/orderpulse/internal/orders"
)

const (
	signatureHeader = "X-Payment-Signature"
	maxWebhookBody  = 256 * 1024
)

// handlePaymentWebhook receives "payment succeeded" events. The body is
// authenticated with an HMAC-SHA256 signature over the raw bytes; delivery
// is at-least-once, so replays of a processed event answer 200 with the
// existing order.
func (s *Server) handlePaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("read_error").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}
	if len(body) > maxWebhookBody {
		metrics.WebhookRequestsTotal.WithLabelValues("too_large").Inc()
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
	}

	if !s.verifySignature(body, c.Request().Header.Get(signatureHeader)) {
		metrics.WebhookRequestsTotal.WithLabelValues("bad_signature").Inc()
		slog.Warn("payment webhook signature rejected", "ip", c.RealIP())
		return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid signature"})
	}

	var evt domain.PaymentEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("bad_payload").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed payload"})
	}

	order, err := s.processor.ProcessPaymentSucceeded(c.Request().Context(), evt)
	if errors.Is(err, orders.ErrInvalidPaymentEvent) {
		metrics.WebhookRequestsTotal.WithLabelValues("invalid_event").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("error").Inc()
		slog.Error("processing payment event", "error", err)
		// 5xx so the sender retries; processing is idempotent.
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "processing failed"})
	}

	metrics.WebhookRequestsTotal.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, map[string]any{
		"orderId": order.ID,
		"status":  order.Status,
	})
}

// verifySignature checks an HMAC-SHA256 hex signature, with or without the
// conventional "sha256=" prefix, in constant time.
func (s *Server) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	if len(signature) > 7 && signature[:7] == "sha256=" {
		signature = signature[7:]
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}
