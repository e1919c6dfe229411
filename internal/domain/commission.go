package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionStatus is the payout state of a commission record.
type CommissionStatus string

const (
	CommissionPending CommissionStatus = "pending"
	CommissionPaid    CommissionStatus = "paid"
)

// Commission is the platform's cut of a single order line, the durable
// ledger entry created atomically with its OrderItem. Exactly one row exists
// per order item; the unique index on order_item_id enforces this even under
// replayed payment events.
type Commission struct {
	ID               uuid.UUID        `json:"id"`
	SellerID         uuid.UUID        `json:"sellerId"`
	OrderID          uuid.UUID        `json:"orderId"`
	OrderItemID      uuid.UUID        `json:"orderItemId"`
	SaleAmount       decimal.Decimal  `json:"saleAmount"`
	Rate             decimal.Decimal  `json:"rate"`
	CommissionAmount decimal.Decimal  `json:"commissionAmount"`
	PlatformFee      decimal.Decimal  `json:"platformFee"`
	SellerEarnings   decimal.Decimal  `json:"sellerEarnings"`
	Status           CommissionStatus `json:"status"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// NewCommission computes the commission split for one order line.
// commissionAmount = saleAmount * rate (rounded to cents);
// sellerEarnings = saleAmount - commissionAmount, so the two always sum back
// to the sale amount exactly.
func NewCommission(item OrderItem, rate decimal.Decimal, now time.Time) Commission {
	sale := item.SaleAmount()
	commission := sale.Mul(rate).Round(2)
	return Commission{
		ID:               uuid.New(),
		SellerID:         item.SellerID,
		OrderID:          item.OrderID,
		OrderItemID:      item.ID,
		SaleAmount:       sale,
		Rate:             rate,
		CommissionAmount: commission,
		PlatformFee:      commission,
		SellerEarnings:   sale.Sub(commission),
		Status:           CommissionPending,
		CreatedAt:        now,
	}
}
