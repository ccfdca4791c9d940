package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

const (
	StatusInStock    = "IN_STOCK"
	StatusLowStock   = "LOW_STOCK"
	StatusOutOfStock = "OUT_OF_STOCK"

	DefaultLowStockThreshold = 10
)

var minPrice = decimal.RequireFromString("0.01")

type CatalogService struct {
	Prods  *repos.ProductRepo
	Carts  *repos.CartRepo
	Orders *repos.OrderRepo
	Now    func() time.Time
}

func NewCatalogService(prods *repos.ProductRepo, carts *repos.CartRepo, orders *repos.OrderRepo) *CatalogService {
	return &CatalogService{Prods: prods, Carts: carts, Orders: orders, Now: time.Now}
}

func (s *CatalogService) List(ctx context.Context, q string) ([]domain.Product, error) {
	return s.Prods.List(ctx, q)
}

// Latest lists products newest first for the admin screen.
func (s *CatalogService) Latest(ctx context.Context) ([]domain.Product, error) {
	return s.Prods.Latest(ctx)
}

func (s *CatalogService) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.Prods.Get(ctx, s.Carts.DB(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrNotFound
	}
	return p, err
}

// Availability converts live stock to IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *CatalogService) Availability(ctx context.Context, id string) (domain.Availability, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return domain.Availability{}, err
	}
	return AvailabilityOf(p), nil
}

// CatalogProduct is a product with its derived availability, for listings.
type CatalogProduct struct {
	domain.Product
	Availability domain.Availability
}

func AvailabilityOf(p domain.Product) domain.Availability {
	status := StatusInStock
	switch {
	case p.StockQuantity <= 0:
		status = StatusOutOfStock
	case p.IsLowStock():
		status = StatusLowStock
	}
	return domain.Availability{Status: status, Qty: p.StockQuantity}
}

// ProductInput is the admin create/update form.
type ProductInput struct {
	Name              string      `json:"name" form:"name" validate:"required,max=255"`
	Description       string      `json:"description" form:"description" validate:"required"`
	Price             json.Number `json:"price" form:"price" validate:"required"`
	StockQuantity     *int        `json:"stock_quantity" form:"stock_quantity" validate:"required,gte=0"`
	LowStockThreshold *int        `json:"low_stock_threshold" form:"low_stock_threshold" validate:"omitempty,gte=1"`
}

func (in ProductInput) product() (domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Price = json.Number(strings.TrimSpace(string(in.Price)))
	if err := validate.Struct(in); err != nil {
		return domain.Product{}, fromFieldError(err)
	}
	price, err := decimal.NewFromString(string(in.Price))
	if err != nil {
		return domain.Product{}, invalid("price", "must be a number")
	}
	if price.LessThan(minPrice) {
		return domain.Product{}, invalid("price", "must be at least 0.01")
	}
	threshold := DefaultLowStockThreshold
	if in.LowStockThreshold != nil {
		threshold = *in.LowStockThreshold
	}
	return domain.Product{
		Name:              in.Name,
		Description:       in.Description,
		Price:             price.Round(2),
		StockQuantity:     *in.StockQuantity,
		LowStockThreshold: threshold,
	}, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	const op = "services.CatalogService.Create"
	p, err := in.product()
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = s.Now().Format(domain.TimeLayout)
	p.UpdatedAt = p.CreatedAt
	if err := s.Prods.Create(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Update overwrites every editable field. An omitted threshold resets to the default.
func (s *CatalogService) Update(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	const op = "services.CatalogService.Update"
	p, err := in.product()
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = id
	p.UpdatedAt = s.Now().Format(domain.TimeLayout)
	ok, err := s.Prods.Update(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return domain.Product{}, ErrNotFound
	}
	return p, nil
}

// Delete removes a product that was never ordered, dropping it from every cart first.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	const op = "services.CatalogService.Delete"
	tx, err := s.Prods.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.Prods.Get(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: get: %w", op, err)
	}
	n, err := s.Orders.CountItemsForProduct(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("%s: count orders: %w", op, err)
	}
	if n > 0 {
		return ErrProductHasOrders
	}
	if err := s.Carts.DeleteByProduct(ctx, tx, id); err != nil {
		return fmt.Errorf("%s: cart items: %w", op, err)
	}
	if err := s.Prods.Delete(ctx, tx, id); err != nil {
		return fmt.Errorf("%s: delete: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
