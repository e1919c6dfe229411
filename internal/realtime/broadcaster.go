package realtime

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/martlabs/orderpulse/internal/domain"
	"github.com/martlabs/orderpulse/internal/metrics"
)

// Broadcaster fans payloads out to live connections. All delivery is
// best-effort: a dead connection is evicted and the rest of the fan-out
// continues. No method ever reports delivery failure to the caller -
// durable state is the ledger's job, not the socket's.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// SendToUser delivers data to every open connection of the user. Zero
// connections is a silent no-op. A connection that cannot accept the frame
// is removed without aborting delivery to the user's other connections.
func (b *Broadcaster) SendToUser(userID uuid.UUID, data []byte) {
	for _, c := range b.registry.ConnectionsFor(userID) {
		if !c.Send(data) {
			slog.Warn("evicting slow client", "connection_id", c.ID().String(), "user_id", userID.String())
			metrics.SlowClientsEvictedTotal.Inc()
			b.registry.Remove(c.ID())
		}
	}
}

// BroadcastOrderUpdate delivers a tracking_update to the order's buyer and
// every distinct seller with items in it.
func (b *Broadcaster) BroadcastOrderUpdate(order *domain.Order) {
	data := encodeFrame(FrameTrackingUpdate, map[string]any{
		"orderId":  order.ID,
		"tracking": domain.TrackingFor(order),
		"order":    order,
	})
	metrics.MessagesDeliveredTotal.WithLabelValues(FrameTrackingUpdate).Inc()

	b.SendToUser(order.BuyerUserID, data)
	for _, sellerID := range order.Sellers() {
		if sellerID == order.BuyerUserID {
			continue
		}
		b.SendToUser(sellerID, data)
	}
}

// BroadcastStatusChange delivers a status_change to the buyer only; sellers
// follow status through their own order-management views.
func (b *Broadcaster) BroadcastStatusChange(order *domain.Order, newStatus, oldStatus domain.OrderStatus) {
	data := encodeFrame(FrameStatusChange, map[string]any{
		"orderId":   order.ID,
		"newStatus": newStatus,
		"oldStatus": oldStatus,
		"order":     order,
	})
	metrics.MessagesDeliveredTotal.WithLabelValues(FrameStatusChange).Inc()
	b.SendToUser(order.BuyerUserID, data)
}

// BroadcastNotification delivers an already-persisted notification to its
// user's live connections, if any.
func (b *Broadcaster) BroadcastNotification(n *domain.Notification) {
	data := encodeFrame(FrameNotification, map[string]any{
		"id":               n.ID,
		"userId":           n.UserID,
		"notificationType": n.Type,
		"title":            n.Title,
		"message":          n.Message,
		"isRead":           n.IsRead,
		"createdAt":        n.CreatedAt,
	})
	metrics.MessagesDeliveredTotal.WithLabelValues(FrameNotification).Inc()
	b.SendToUser(n.UserID, data)
}
