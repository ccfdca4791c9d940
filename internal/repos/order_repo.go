package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// ---------- Admin list summary ----------
type OrderSummary struct {
	ID          string          `db:"id"`
	UserEmail   string          `db:"user_email"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	Status      string          `db:"status"`
	ItemCount   int             `db:"item_count"`
	CreatedAt   string          `db:"created_at"`
}

type OrderItemRow struct {
	ProductID string          `db:"product_id"`
	Name      string          `db:"name"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
}

func (r OrderItemRow) Subtotal() decimal.Decimal {
	return r.Price.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

// SaleRow is one sold line used by the daily report.
type SaleRow struct {
	ProductID string          `db:"product_id"`
	Name      string          `db:"name"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
}

// Create inserts a new order header.
func (r *OrderRepo) Create(ctx context.Context, ex sqlx.ExecerContext, o domain.Order) error {
	_, err := ex.ExecContext(ctx, `
	  INSERT INTO orders(id, user_id, total_amount, status, created_at)
	  VALUES(?, ?, ?, ?, ?)
	`, o.ID, o.UserID, o.TotalAmount, o.Status, o.CreatedAt)
	return err
}

// InsertItem inserts a single line item.
func (r *OrderRepo) InsertItem(ctx context.Context, ex sqlx.ExecerContext, it domain.OrderItem) error {
	_, err := ex.ExecContext(ctx, `
	  INSERT INTO order_items(id, order_id, product_id, quantity, price, created_at)
	  VALUES(?, ?, ?, ?, ?, ?)
	`, it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price, it.CreatedAt)
	return err
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (domain.Order, []OrderItemRow, error) {
	var o domain.Order
	if err := r.db.GetContext(ctx, &o, `
		SELECT id, user_id, total_amount, status, created_at FROM orders WHERE id = ?
	`, orderID); err != nil {
		return domain.Order{}, nil, err
	}

	items := []OrderItemRow{}
	if err := r.db.SelectContext(ctx, &items, `
		SELECT oi.product_id, p.name, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY p.name
	`, orderID); err != nil {
		return domain.Order{}, nil, err
	}
	return o, items, nil
}

func (r *OrderRepo) ListLatest(ctx context.Context, limit int) ([]OrderSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []OrderSummary{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT o.id, u.email AS user_email, o.total_amount, o.status, o.created_at,
		       (SELECT COALESCE(SUM(quantity),0) FROM order_items WHERE order_id = o.id) AS item_count
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
		LIMIT ?
	`, limit)
	return out, err
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]OrderSummary, error) {
	out := []OrderSummary{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT o.id, u.email AS user_email, o.total_amount, o.status, o.created_at,
		       (SELECT COALESCE(SUM(quantity),0) FROM order_items WHERE order_id = o.id) AS item_count
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.user_id = ?
		ORDER BY o.created_at DESC
	`, userID)
	return out, err
}

// CountItemsForProduct reports how many order lines reference a product.
func (r *OrderRepo) CountItemsForProduct(ctx context.Context, q sqlx.QueryerContext, productID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM order_items WHERE product_id = ?`, productID)
	return n, err
}

// SalesBetween returns order lines created in [from, to), both formatted with domain.TimeLayout.
func (r *OrderRepo) SalesBetween(ctx context.Context, from, to string) ([]SaleRow, error) {
	out := []SaleRow{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT oi.product_id, p.name, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.created_at >= ? AND oi.created_at < ?
		ORDER BY oi.created_at
	`, from, to)
	return out, err
}
