package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tracking is the snapshot pushed to live subscribers of an order.
type Tracking struct {
	OrderID   uuid.UUID      `json:"orderId"`
	Status    OrderStatus    `json:"status"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Items     []ItemTracking `json:"items"`
}

type ItemTracking struct {
	ProductID uuid.UUID   `json:"productId"`
	SellerID  uuid.UUID   `json:"sellerId"`
	Status    OrderStatus `json:"status"`
}

// TrackingFor builds the tracking snapshot from an order with items loaded.
func TrackingFor(o *Order) Tracking {
	items := make([]ItemTracking, len(o.Items))
	for i, item := range o.Items {
		items[i] = ItemTracking{ProductID: item.ProductID, SellerID: item.SellerID, Status: item.Status}
	}
	return Tracking{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt, Items: items}
}
