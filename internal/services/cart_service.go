package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type CartService struct {
	Carts *repos.CartRepo
	Prods *repos.ProductRepo
	Now   func() time.Time
}

func NewCartService(carts *repos.CartRepo, prods *repos.ProductRepo) *CartService {
	return &CartService{Carts: carts, Prods: prods, Now: time.Now}
}

// Add puts qty units of a product in the user's cart, merging with an
// existing line. The merged quantity may not exceed live stock.
func (s *CartService) Add(ctx context.Context, userID, productID string, qty int) error {
	const op = "services.CartService.Add"
	if qty < 1 || qty > validate.MaxQty {
		return invalid("quantity", fmt.Sprintf("must be between 1 and %d", validate.MaxQty))
	}

	tx, err := s.Carts.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := s.Prods.Get(ctx, tx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return invalid("product_id", "does not exist")
	}
	if err != nil {
		return fmt.Errorf("%s: product: %w", op, err)
	}

	now := s.Now().Format(domain.TimeLayout)
	existing, err := s.Carts.Find(ctx, tx, userID, productID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if qty > p.StockQuantity {
			return &StockError{ProductID: p.ID, Name: p.Name, Requested: qty, Available: p.StockQuantity}
		}
		item := domain.CartItem{ID: uuid.NewString(), UserID: userID, ProductID: productID, Quantity: qty}
		if err := s.Carts.Insert(ctx, tx, item, now); err != nil {
			return fmt.Errorf("%s: insert: %w", op, err)
		}
	case err != nil:
		return fmt.Errorf("%s: find: %w", op, err)
	default:
		merged := existing.Quantity + qty
		if merged > validate.MaxQty {
			return invalid("quantity", fmt.Sprintf("must be between 1 and %d", validate.MaxQty))
		}
		if merged > p.StockQuantity {
			return &StockError{ProductID: p.ID, Name: p.Name, Requested: merged, Available: p.StockQuantity}
		}
		if err := s.Carts.SetQuantity(ctx, tx, existing.ID, merged, now); err != nil {
			return fmt.Errorf("%s: update: %w", op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// owned loads a cart item and checks it belongs to userID.
func (s *CartService) owned(ctx context.Context, userID, itemID string) (domain.CartItem, error) {
	it, err := s.Carts.Get(ctx, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CartItem{}, ErrNotFound
	}
	if err != nil {
		return domain.CartItem{}, err
	}
	if it.UserID != userID {
		return domain.CartItem{}, ErrForbidden
	}
	return it, nil
}

// UpdateQuantity replaces the quantity of one of the user's cart lines.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) error {
	const op = "services.CartService.UpdateQuantity"
	it, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if qty < 1 || qty > validate.MaxQty {
		return invalid("quantity", fmt.Sprintf("must be between 1 and %d", validate.MaxQty))
	}
	p, err := s.Prods.Get(ctx, s.Carts.DB(), it.ProductID)
	if err != nil {
		return fmt.Errorf("%s: product: %w", op, err)
	}
	if qty > p.StockQuantity {
		return &StockError{ProductID: p.ID, Name: p.Name, Requested: qty, Available: p.StockQuantity}
	}
	if err := s.Carts.SetQuantity(ctx, s.Carts.DB(), it.ID, qty, s.Now().Format(domain.TimeLayout)); err != nil {
		return fmt.Errorf("%s: update: %w", op, err)
	}
	return nil
}

// Remove deletes one of the user's cart lines.
func (s *CartService) Remove(ctx context.Context, userID, itemID string) error {
	const op = "services.CartService.Remove"
	it, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.Carts.Delete(ctx, s.Carts.DB(), it.ID); err != nil {
		return fmt.Errorf("%s: delete: %w", op, err)
	}
	return nil
}

type CartView struct {
	Items []domain.CartLine
	Total decimal.Decimal
}

// Count is the number of units in the cart.
func (v CartView) Count() int {
	n := 0
	for _, it := range v.Items {
		n += it.Quantity
	}
	return n
}

// View lists the cart with live prices; Total is the sum of quantity x price.
func (s *CartService) View(ctx context.Context, userID string) (CartView, error) {
	items, err := s.Carts.Lines(ctx, s.Carts.DB(), userID)
	if err != nil {
		return CartView{}, err
	}
	return CartView{Items: items, Total: cartTotal(items)}, nil
}

func cartTotal(items []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
