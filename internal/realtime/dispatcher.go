package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/martlabs/orderpulse/internal/domain"
	"github.com/martlabs/orderpulse/internal/metrics"
)

// Client-facing error messages. Ownership failures deliberately read the
// same as not-found so order existence never leaks.
const (
	errInvalidFormat    = "Invalid message format"
	errNotAuthenticated = "Not authenticated"
	errOrderAccess      = "Order not found or access denied"
	errUnknownType      = "Unknown message type"
	errAuthFailed       = "Authentication failed"
	errInternal         = "Internal error"
)

// Dispatcher routes inbound client frames. It holds no per-connection state
// of its own - the connection carries its authentication binding and
// subscriptions - so Handle is safe to call from any connection's read loop.
type Dispatcher struct {
	registry      *Registry
	orders        domain.OrderRepository
	notifications domain.NotificationRepository
	clock         clockwork.Clock
}

func NewDispatcher(registry *Registry, orders domain.OrderRepository, notifications domain.NotificationRepository, clock clockwork.Clock) *Dispatcher {
	return &Dispatcher{
		registry:      registry,
		orders:        orders,
		notifications: notifications,
		clock:         clock,
	}
}

// Handle processes one inbound frame and returns the response frame to send
// back on the same connection. A malformed frame never drops the connection;
// it just gets an error frame.
func (d *Dispatcher) Handle(ctx context.Context, c *Conn, raw []byte) []byte {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		metrics.FrameErrorsTotal.WithLabelValues("invalid_format").Inc()
		return errorFrame(errInvalidFormat)
	}

	switch frame.Type {
	case msgPing:
		metrics.FramesReceivedTotal.WithLabelValues(msgPing).Inc()
		return encodeFrame(FramePong, map[string]any{"timestamp": d.clock.Now().UnixMilli()})
	case msgAuthenticate:
		metrics.FramesReceivedTotal.WithLabelValues(msgAuthenticate).Inc()
		return d.handleAuthenticate(ctx, c, frame)
	case msgSubscribeOrder:
		metrics.FramesReceivedTotal.WithLabelValues(msgSubscribeOrder).Inc()
		return d.handleSubscribeOrder(ctx, c, frame)
	case msgSubscribeNotifications:
		metrics.FramesReceivedTotal.WithLabelValues(msgSubscribeNotifications).Inc()
		return d.handleSubscribeNotifications(ctx, c)
	default:
		metrics.FramesReceivedTotal.WithLabelValues("unknown").Inc()
		metrics.FrameErrorsTotal.WithLabelValues("unknown_type").Inc()
		return errorFrame(errUnknownType)
	}
}

func (d *Dispatcher) handleAuthenticate(ctx context.Context, c *Conn, frame inboundFrame) []byte {
	if boundUser, ok := c.UserID(); ok {
		// Authenticating twice is a no-op for existing membership.
		return encodeFrame(FrameAuthenticated, map[string]any{"userId": boundUser})
	}

	userID, err := uuid.Parse(frame.UserID)
	if err != nil {
		metrics.FrameErrorsTotal.WithLabelValues("auth_failed").Inc()
		return errorFrame(errAuthFailed)
	}

	if err := d.registry.Authenticate(ctx, c.ID(), userID, frame.Token); err != nil {
		if !errors.Is(err, domain.ErrAuthenticationFailed) {
			slog.Error("authentication lookup failed", "connection_id", c.ID().String(), "error", err)
		}
		metrics.FrameErrorsTotal.WithLabelValues("auth_failed").Inc()
		return errorFrame(errAuthFailed)
	}

	return encodeFrame(FrameAuthenticated, map[string]any{"userId": userID})
}

func (d *Dispatcher) handleSubscribeOrder(ctx context.Context, c *Conn, frame inboundFrame) []byte {
	userID, ok := c.UserID()
	if !ok {
		metrics.FrameErrorsTotal.WithLabelValues("not_authenticated").Inc()
		return errorFrame(errNotAuthenticated)
	}

	orderID, err := uuid.Parse(frame.OrderID)
	if err != nil {
		metrics.FrameErrorsTotal.WithLabelValues("invalid_format").Inc()
		return errorFrame(errInvalidFormat)
	}

	order, err := d.orders.GetByID(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		metrics.FrameErrorsTotal.WithLabelValues("order_access").Inc()
		return errorFrame(errOrderAccess)
	}
	if err != nil {
		slog.Error("failed to load order for subscription", "order_id", orderID.String(), "error", err)
		return errorFrame(errInternal)
	}
	if order.BuyerUserID != userID {
		metrics.FrameErrorsTotal.WithLabelValues("order_access").Inc()
		return errorFrame(errOrderAccess)
	}

	c.Subscribe(ChannelOrder, orderID)
	return encodeFrame(FrameOrderSubscribed, map[string]any{
		"orderId":  orderID,
		"tracking": domain.TrackingFor(order),
	})
}

func (d *Dispatcher) handleSubscribeNotifications(ctx context.Context, c *Conn) []byte {
	userID, ok := c.UserID()
	if !ok {
		metrics.FrameErrorsTotal.WithLabelValues("not_authenticated").Inc()
		return errorFrame(errNotAuthenticated)
	}

	unread, err := d.notifications.ListUnread(ctx, userID)
	if err != nil {
		slog.Error("failed to list unread notifications", "user_id", userID.String(), "error", err)
		return errorFrame(errInternal)
	}
	if unread == nil {
		unread = []domain.Notification{}
	}

	c.Subscribe(ChannelNotifications, uuid.Nil)
	return encodeFrame(FrameNotificationsSubscribed, map[string]any{"notifications": unread})
}
