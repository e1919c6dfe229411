package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification types produced by the order pipeline.
const (
	NotificationOrderConfirmed = "order_confirmed"
	NotificationNewSale        = "new_sale"
	NotificationStatusUpdate   = "status_update"
)

// Notification is a durable message to a user. It is always persisted;
// live delivery over an open connection is best-effort on top.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
