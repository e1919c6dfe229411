package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderRepository is the storage collaborator for orders, order items,
// commissions and the analytics rows derived from them.
type OrderRepository interface {
	// CreateFromPayment persists the order, its items, one commission per
	// item and the seller-day analytics upserts in a single transaction.
	// Returns ErrDuplicatePaymentEvent if an order already exists for the
	// order's payment event ID.
	CreateFromPayment(ctx context.Context, order *Order, commissions []Commission) error

	// GetByID loads an order with its items. Returns ErrOrderNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// GetByPaymentEventID loads the order created for a payment event,
	// items included. Returns ErrOrderNotFound.
	GetByPaymentEventID(ctx context.Context, eventID string) (*Order, error)

	// UpdateStatus transitions an order from one status to another with a
	// compare-and-swap on the expected current status. Returns
	// ErrOrderNotFound if the order does not exist and ErrStatusConflict if
	// the current status no longer matches from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus) error
}

// NotificationRepository persists notifications and serves unread listings.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListUnread(ctx context.Context, userID uuid.UUID) ([]Notification, error)
}

// AnalyticsRepository reads the seller-day aggregates maintained by
// OrderRepository.CreateFromPayment.
type AnalyticsRepository interface {
	// GetSellerDay returns the aggregate for a seller on a UTC day, or a
	// zero-valued row if no sales were recorded.
	GetSellerDay(ctx context.Context, sellerID uuid.UUID, day time.Time) (*SellerDailyAnalytics, error)
}

// UserRepository is the identity collaborator.
type UserRepository interface {
	// GetByID returns ErrUserNotFound for unknown users.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// CartRepository is the cart collaborator; only clearing is needed here.
type CartRepository interface {
	ClearCart(ctx context.Context, userID uuid.UUID) error
}
