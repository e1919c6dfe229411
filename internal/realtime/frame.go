package realtime

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// Inbound message types.
const (
	msgAuthenticate           = "authenticate"
	msgSubscribeOrder         = "subscribe_order"
	msgSubscribeNotifications = "subscribe_notifications"
	msgPing                   = "ping"
)

// Outbound frame types.
const (
	FrameConnectionEstablished   = "connection_established"
	FrameAuthenticated           = "authenticated"
	FrameOrderSubscribed         = "order_subscribed"
	FrameNotificationsSubscribed = "notifications_subscribed"
	FramePong                    = "pong"
	FrameError                   = "error"
	FrameTrackingUpdate          = "tracking_update"
	FrameStatusChange            = "status_change"
	FrameNotification            = "notification"
)

type inboundFrame struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	Token   string `json:"token"`
	OrderID string `json:"orderId"`
}

func encodeFrame(frameType string, fields map[string]any) []byte {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["type"] = frameType
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal frame", "frame_type", frameType, "error", err)
		return []byte(`{"type":"error","message":"Internal error"}`)
	}
	return data
}

func errorFrame(message string) []byte {
	return encodeFrame(FrameError, map[string]any{"message": message})
}

// ConnectionEstablishedFrame is pushed immediately after the transport
// handshake, before any authentication.
func ConnectionEstablishedFrame(connID uuid.UUID) []byte {
	return encodeFrame(FrameConnectionEstablished, map[string]any{"connectionId": connID})
}
