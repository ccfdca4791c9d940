package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `
    id, name, description, price, stock_quantity, low_stock_threshold,
    COALESCE(created_at,'') AS created_at, COALESCE(updated_at,'') AS updated_at`

// List returns products ordered by name; q filters on name/description.
func (r *ProductRepo) List(ctx context.Context, q string) ([]domain.Product, error) {
	query := `SELECT` + productCols + ` FROM products`
	args := []any{}
	if q = strings.ToLower(strings.TrimSpace(q)); q != "" {
		query += ` WHERE (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)`
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	query += ` ORDER BY name`

	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, query, args...)
	return out, err
}

// Latest returns products newest first (admin listing).
func (r *ProductRepo) Latest(ctx context.Context) ([]domain.Product, error) {
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, `SELECT`+productCols+` FROM products ORDER BY created_at DESC, name`)
	return out, err
}

// Get returns sql.ErrNoRows when the product does not exist.
func (r *ProductRepo) Get(ctx context.Context, q sqlx.QueryerContext, id string) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, q, &p, `SELECT`+productCols+` FROM products WHERE id = ?`, id)
	return p, err
}

// First returns the product that sorts first by name.
func (r *ProductRepo) First(ctx context.Context) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, `SELECT`+productCols+` FROM products ORDER BY name LIMIT 1`)
	return p, err
}

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products(id, name, description, price, stock_quantity, low_stock_threshold, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, p.Price, p.StockQuantity, p.LowStockThreshold, p.CreatedAt)
	return err
}

// Update overwrites the editable fields; it reports false when no row matched.
func (r *ProductRepo) Update(ctx context.Context, p domain.Product) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, stock_quantity = ?, low_stock_threshold = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Description, p.Price, p.StockQuantity, p.LowStockThreshold, p.UpdatedAt, p.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetStock overwrites stock and threshold (used to force a low-stock state).
func (r *ProductRepo) SetStock(ctx context.Context, id string, qty, threshold int, updatedAt string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products SET stock_quantity = ?, low_stock_threshold = ?, updated_at = ? WHERE id = ?
	`, qty, threshold, updatedAt, id)
	return err
}

// Stock returns the live stock level.
func (r *ProductRepo) Stock(ctx context.Context, q sqlx.QueryerContext, id string) (int, error) {
	var qty int
	err := sqlx.GetContext(ctx, q, &qty, `SELECT stock_quantity FROM products WHERE id = ?`, id)
	return qty, err
}

// DecrementStock subtracts by units only if enough stock exists.
// It reports false, without error, when the stock is insufficient.
func (r *ProductRepo) DecrementStock(ctx context.Context, ex sqlx.ExecerContext, id string, by int, updatedAt string) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE id = ? AND stock_quantity >= ?
	`, by, updatedAt, id, by)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ProductRepo) Delete(ctx context.Context, ex sqlx.ExecerContext, id string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return err
}

// BeginTx starts a transaction on the underlying pool.
func (r *ProductRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}
