package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CartRepo struct {
	pool *pgxpool.Pool
}

func NewCartRepo(pool *pgxpool.Pool) *CartRepo {
	return &CartRepo{pool: pool}
}

// ClearCart removes every cart line for the user. Clearing an already empty
// cart is a no-op, which keeps the call safe to retry.
func (r *CartRepo) ClearCart(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	slog.Debug("cart cleared", "user_id", userID.String(), "items_removed", tag.RowsAffected())
	return nil
}
