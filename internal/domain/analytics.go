package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SellerDailyAnalytics is the per-seller, per-UTC-day sales aggregate,
// upserted once per order item processed.
type SellerDailyAnalytics struct {
	SellerID      uuid.UUID       `json:"sellerId"`
	Date          time.Time       `json:"date"`
	TotalSales    decimal.Decimal `json:"totalSales"`
	TotalOrders   int64           `json:"totalOrders"`
	AvgOrderValue decimal.Decimal `json:"avgOrderValue"`
}
