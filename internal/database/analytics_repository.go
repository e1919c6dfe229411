package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/martlabs/orderpulse/internal/domain"
)

type AnalyticsRepo struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepo(pool *pgxpool.Pool) *AnalyticsRepo {
	return &AnalyticsRepo{pool: pool}
}

// GetSellerDay returns the aggregate for a seller on a UTC day. A seller
// with no sales that day gets a zero-valued row, not an error.
func (r *AnalyticsRepo) GetSellerDay(ctx context.Context, sellerID uuid.UUID, day time.Time) (*domain.SellerDailyAnalytics, error) {
	date := day.UTC().Format("2006-01-02")

	var (
		a          domain.SellerDailyAnalytics
		totalSales string
		avgValue   string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT seller_id, date, total_sales::text, total_orders, avg_order_value::text
		FROM seller_daily_analytics
		WHERE seller_id = $1 AND date = $2::date
	`, sellerID, date).Scan(&a.SellerID, &a.Date, &totalSales, &a.TotalOrders, &avgValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.SellerDailyAnalytics{
			SellerID:      sellerID,
			Date:          day.UTC().Truncate(24 * time.Hour),
			TotalSales:    decimal.Zero,
			AvgOrderValue: decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load seller analytics: %w", err)
	}

	if a.TotalSales, err = decimal.NewFromString(totalSales); err != nil {
		return nil, fmt.Errorf("failed to parse total sales: %w", err)
	}
	if a.AvgOrderValue, err = decimal.NewFromString(avgValue); err != nil {
		return nil, fmt.Errorf("failed to parse average order value: %w", err)
	}
	return &a, nil
}
