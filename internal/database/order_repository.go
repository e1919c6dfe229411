package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/martlabs/orderpulse/internal/domain"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// CreateFromPayment writes the order, its items, one commission per item and
// the seller-day analytics upserts in one transaction. A partial write is a
// data-corruption bug, so any failure rolls the whole thing back.
func (r *OrderRepo) CreateFromPayment(ctx context.Context, order *domain.Order, commissions []domain.Commission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, payment_event_id, buyer_user_id, status, total_amount, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, order.ID, order.PaymentEventID, order.BuyerUserID, string(order.Status),
		order.TotalAmount.StringFixed(2), order.ShippingAddress, order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order for payment event %q: %w", order.PaymentEventID, domain.ErrDuplicatePaymentEvent)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, seller_id, quantity, unit_price, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.SellerID, item.Quantity,
			item.UnitPrice.StringFixed(2), string(item.Status))
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	for _, c := range commissions {
		_, err = tx.Exec(ctx, `
			INSERT INTO commissions (id, seller_id, order_id, order_item_id, sale_amount, rate, commission_amount, platform_fee, seller_earnings, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, c.ID, c.SellerID, c.OrderID, c.OrderItemID, c.SaleAmount.StringFixed(2),
			c.Rate.String(), c.CommissionAmount.StringFixed(2), c.PlatformFee.StringFixed(2),
			c.SellerEarnings.StringFixed(2), string(c.Status), c.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("commission for order item %s: %w", c.OrderItemID, domain.ErrDuplicatePaymentEvent)
			}
			return fmt.Errorf("failed to insert commission: %w", err)
		}
	}

	// One upsert per order item: total_orders counts processed items and
	// avg_order_value is recomputed from the running totals.
	day := order.CreatedAt.UTC().Format("2006-01-02")
	for _, item := range order.Items {
		sale := item.SaleAmount().StringFixed(2)
		_, err = tx.Exec(ctx, `
			INSERT INTO seller_daily_analytics (seller_id, date, total_sales, total_orders, avg_order_value)
			VALUES ($1, $2::date, $3, 1, $3)
			ON CONFLICT (seller_id, date) DO UPDATE SET
				total_sales = seller_daily_analytics.total_sales + EXCLUDED.total_sales,
				total_orders = seller_daily_analytics.total_orders + 1,
				avg_order_value = ROUND((seller_daily_analytics.total_sales + EXCLUDED.total_sales) / (seller_daily_analytics.total_orders + 1), 2)
		`, item.SellerID, day, sale)
		if err != nil {
			return fmt.Errorf("failed to upsert seller analytics: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, "id = $1", id)
}

func (r *OrderRepo) GetByPaymentEventID(ctx context.Context, eventID string) (*domain.Order, error) {
	return r.getOrder(ctx, "payment_event_id = $1", eventID)
}

func (r *OrderRepo) getOrder(ctx context.Context, where string, arg any) (*domain.Order, error) {
	var (
		o           domain.Order
		status      string
		totalAmount string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, payment_event_id, buyer_user_id, status, total_amount::text, shipping_address, created_at, updated_at
		FROM orders WHERE `+where,
		arg).Scan(&o.ID, &o.PaymentEventID, &o.BuyerUserID, &status, &totalAmount, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	if o.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("failed to parse total amount: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, seller_id, quantity, unit_price::text, status
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item      domain.OrderItem
			itemState string
			unitPrice string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SellerID, &item.Quantity, &unitPrice, &itemState); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Status = domain.OrderStatus(itemState)
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("failed to parse unit price: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return &o, nil
}

// UpdateStatus performs a compare-and-swap on the order status. Item rows
// follow the order status so tracking snapshots stay consistent.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrStatusConflict
	}

	if _, err := tx.Exec(ctx, `UPDATE order_items SET status = $2 WHERE order_id = $1`, id, string(to)); err != nil {
		return fmt.Errorf("failed to update order item statuses: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
