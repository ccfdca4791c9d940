package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is how timestamps are stored: server-local wall clock.
const TimeLayout = "2006-01-02 15:04:05"

const OrderStatusCompleted = "completed"

type Product struct {
	ID                string          `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Description       string          `db:"description" json:"description"`
	Price             decimal.Decimal `db:"price" json:"price"`
	StockQuantity     int             `db:"stock_quantity" json:"stock_quantity"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"low_stock_threshold"`
	CreatedAt         string          `db:"created_at" json:"created_at"`
	UpdatedAt         string          `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports stock_quantity <= low_stock_threshold.
func (p Product) IsLowStock() bool { return p.StockQuantity <= p.LowStockThreshold }

type CartItem struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	ProductID string `db:"product_id"`
	Quantity  int    `db:"quantity"`
}

// CartLine is a cart item joined with the live product row.
type CartLine struct {
	ID                string          `db:"id"`
	ProductID         string          `db:"product_id"`
	Name              string          `db:"name"`
	Quantity          int             `db:"quantity"`
	Price             decimal.Decimal `db:"price"`
	StockQuantity     int             `db:"stock_quantity"`
	LowStockThreshold int             `db:"low_stock_threshold"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	Status      string          `db:"status"`
	CreatedAt   string          `db:"created_at"`
}

type OrderItem struct {
	ID        string          `db:"id"`
	OrderID   string          `db:"order_id"`
	ProductID string          `db:"product_id"`
	Quantity  int             `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	CreatedAt string          `db:"created_at"`
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}

// LowStockAlert is the payload handed to the notifier. It snapshots the
// product right after the decrement that made it low.
type LowStockAlert struct {
	ProductID         string          `json:"product_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

func NewLowStockAlert(p Product) LowStockAlert {
	return LowStockAlert{
		ProductID:         p.ID,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price,
		StockQuantity:     p.StockQuantity,
		LowStockThreshold: p.LowStockThreshold,
	}
}

type SalesLine struct {
	ProductID string
	Name      string
	Quantity  int
	Revenue   decimal.Decimal
}

type SalesReport struct {
	Date         time.Time
	Lines        []SalesLine
	TotalItems   int
	TotalRevenue decimal.Decimal
}
