package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

// Get returns sql.ErrNoRows when the item does not exist.
func (r *CartRepo) Get(ctx context.Context, id string) (domain.CartItem, error) {
	var it domain.CartItem
	err := r.db.GetContext(ctx, &it, `
		SELECT id, user_id, product_id, quantity FROM cart_items WHERE id = ?
	`, id)
	return it, err
}

// Find returns the user's line for a product, or sql.ErrNoRows.
func (r *CartRepo) Find(ctx context.Context, q sqlx.QueryerContext, userID, productID string) (domain.CartItem, error) {
	var it domain.CartItem
	err := sqlx.GetContext(ctx, q, &it, `
		SELECT id, user_id, product_id, quantity FROM cart_items
		WHERE user_id = ? AND product_id = ?
	`, userID, productID)
	return it, err
}

func (r *CartRepo) Insert(ctx context.Context, ex sqlx.ExecerContext, it domain.CartItem, now string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO cart_items(id, user_id, product_id, quantity, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, it.ID, it.UserID, it.ProductID, it.Quantity, now, now)
	return err
}

func (r *CartRepo) SetQuantity(ctx context.Context, ex sqlx.ExecerContext, id string, qty int, now string) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE cart_items SET quantity = ?, updated_at = ? WHERE id = ?
	`, qty, now, id)
	return err
}

func (r *CartRepo) Delete(ctx context.Context, ex sqlx.ExecerContext, id string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ?`, id)
	return err
}

// DeleteByProduct removes every cart line pointing at a product.
func (r *CartRepo) DeleteByProduct(ctx context.Context, ex sqlx.ExecerContext, productID string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = ?`, productID)
	return err
}

// Lines returns the user's cart joined with live product price and stock.
func (r *CartRepo) Lines(ctx context.Context, q sqlx.QueryerContext, userID string) ([]domain.CartLine, error) {
	out := []domain.CartLine{}
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT ci.id, ci.product_id, p.name, ci.quantity, p.price, p.stock_quantity, p.low_stock_threshold
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = ?
		ORDER BY ci.created_at, p.name
	`, userID)
	return out, err
}

// BeginTx starts a transaction on the underlying pool.
func (r *CartRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

// DB exposes the pool for reads outside a transaction.
func (r *CartRepo) DB() *sqlx.DB { return r.db }
