package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/notify"
	"storefront/internal/repos"
)

type CheckoutService struct {
	Carts  *repos.CartRepo
	Prods  *repos.ProductRepo
	Orders *repos.OrderRepo
	Alerts notify.Dispatcher
	Now    func() time.Time
}

func NewCheckoutService(carts *repos.CartRepo, prods *repos.ProductRepo, orders *repos.OrderRepo, alerts notify.Dispatcher) *CheckoutService {
	return &CheckoutService{Carts: carts, Prods: prods, Orders: orders, Alerts: alerts, Now: time.Now}
}

// Checkout turns the user's cart into a completed order in one transaction.
//
// Stock is decremented with a conditional update, so two concurrent checkouts
// can never drive a product below zero; the loser gets a StockError and its
// whole transaction is rolled back. Low-stock alerts are dispatched only after
// commit and their failures never reach the caller.
func (s *CheckoutService) Checkout(ctx context.Context, userID string) (domain.Order, error) {
	const op = "services.CheckoutService.Checkout"

	lines, err := s.Carts.Lines(ctx, s.Carts.DB(), userID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: load cart: %w: %w", op, ErrCheckoutFailed, err)
	}
	if len(lines) == 0 {
		return domain.Order{}, ErrEmptyCart
	}

	tx, err := s.Carts.BeginTx(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: begin: %w: %w", op, ErrCheckoutFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	// The cart may have changed since the first read.
	lines, err = s.Carts.Lines(ctx, tx, userID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: reload cart: %w: %w", op, ErrCheckoutFailed, err)
	}
	if len(lines) == 0 {
		return domain.Order{}, ErrEmptyCart
	}

	now := s.Now().Format(domain.TimeLayout)
	order := domain.Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		TotalAmount: cartTotal(lines),
		Status:      domain.OrderStatusCompleted,
		CreatedAt:   now,
	}
	if err := s.Orders.Create(ctx, tx, order); err != nil {
		return domain.Order{}, fmt.Errorf("%s: create order: %w: %w", op, ErrCheckoutFailed, err)
	}

	var alerts []domain.LowStockAlert
	for _, l := range lines {
		ok, err := s.Prods.DecrementStock(ctx, tx, l.ProductID, l.Quantity, now)
		if err != nil {
			return domain.Order{}, fmt.Errorf("%s: decrement %s: %w: %w", op, l.ProductID, ErrCheckoutFailed, err)
		}
		if !ok {
			left, err := s.Prods.Stock(ctx, tx, l.ProductID)
			if err != nil {
				return domain.Order{}, fmt.Errorf("%s: stock %s: %w: %w", op, l.ProductID, ErrCheckoutFailed, err)
			}
			return domain.Order{}, &StockError{ProductID: l.ProductID, Name: l.Name, Requested: l.Quantity, Available: left}
		}

		if err := s.Orders.InsertItem(ctx, tx, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
			CreatedAt: now,
		}); err != nil {
			return domain.Order{}, fmt.Errorf("%s: order item %s: %w: %w", op, l.ProductID, ErrCheckoutFailed, err)
		}

		p, err := s.Prods.Get(ctx, tx, l.ProductID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("%s: refresh %s: %w: %w", op, l.ProductID, ErrCheckoutFailed, err)
		}
		if p.IsLowStock() {
			alerts = append(alerts, domain.NewLowStockAlert(p))
		}

		if err := s.Carts.Delete(ctx, tx, l.ID); err != nil {
			return domain.Order{}, fmt.Errorf("%s: clear cart item: %w: %w", op, ErrCheckoutFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("%s: commit: %w: %w", op, ErrCheckoutFailed, err)
	}

	s.dispatch(ctx, order.ID, alerts)
	return order, nil
}

func (s *CheckoutService) dispatch(ctx context.Context, orderID string, alerts []domain.LowStockAlert) {
	if s.Alerts == nil {
		return
	}
	for _, a := range alerts {
		if err := s.Alerts.Dispatch(ctx, a); err != nil {
			applog.Error(nil, "notify.lowstock.dispatch", err, map[string]any{"product_id": a.ProductID, "order_id": orderID})
			continue
		}
		applog.Info(nil, "notify.lowstock.queued", map[string]any{"product_id": a.ProductID, "stock": a.StockQuantity, "order_id": orderID})
	}
}

// OrderService serves the read side of orders.
type OrderService struct {
	Orders *repos.OrderRepo
}

func NewOrderService(orders *repos.OrderRepo) *OrderService { return &OrderService{Orders: orders} }

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]repos.OrderSummary, error) {
	return s.Orders.ListByUser(ctx, userID)
}

func (s *OrderService) Latest(ctx context.Context, limit int) ([]repos.OrderSummary, error) {
	return s.Orders.ListLatest(ctx, limit)
}

// ForUser returns one of the user's orders with its lines.
func (s *OrderService) ForUser(ctx context.Context, userID, orderID string) (domain.Order, []repos.OrderItemRow, error) {
	o, items, err := s.Orders.Get(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, nil, ErrNotFound
	}
	if err != nil {
		return domain.Order{}, nil, err
	}
	if o.UserID != userID {
		return domain.Order{}, nil, ErrForbidden
	}
	return o, items, nil
}
