package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one distinct product line of the cart snapshot that produced a
// payment event.
type LineItem struct {
	ProductID uuid.UUID       `json:"productId"`
	SellerID  uuid.UUID       `json:"sellerId"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// PaymentEvent is the "payment succeeded" trigger from the payment
// collaborator. EventID is the idempotency key: delivery is at-least-once
// and replays must not create duplicate orders or commissions.
type PaymentEvent struct {
	EventID         string          `json:"eventId"`
	BuyerUserID     uuid.UUID       `json:"buyerUserId"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingAddress string          `json:"shippingAddress"`
	LineItems       []LineItem      `json:"lineItems"`
}
