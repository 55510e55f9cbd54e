// AngelaMos | 2026
// entity.go

package shop

import (
	"errors"
	"math"
	"time"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyReversed   = errors.New("sale already reversed")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrAmountTooLarge    = errors.New("sale amount out of range")
)

const (
	// MaxPriceCents keeps price * quantity well inside int64.
	MaxPriceCents int64 = 10_000_000_000
	MaxStock            = 1_000_000
)

type Product struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	Category      string    `db:"category"`
	PriceCents    int64     `db:"price_cents"`
	StockQuantity int       `db:"stock_quantity"`
	SoldQuantity  int       `db:"sold_quantity"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Sale rows are append-only. A reversal flags the row, it never deletes it.
type Sale struct {
	ID               string     `db:"id"`
	ProductID        string     `db:"product_id"`
	Quantity         int        `db:"quantity"`
	UnitPriceCents   int64      `db:"unit_price_cents"`
	TotalAmountCents int64      `db:"total_amount_cents"`
	CustomerName     *string    `db:"customer_name"`
	CustomerEmail    *string    `db:"customer_email"`
	CustomerPhone    *string    `db:"customer_phone"`
	IsReversed       bool       `db:"is_reversed"`
	ReversedAt       *time.Time `db:"reversed_at"`
	SoldBy           *string    `db:"sold_by"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

type Summary struct {
	TotalSales    int   `db:"total_sales"    json:"totalSales"`
	ReversedSales int   `db:"reversed_sales" json:"reversedSales"`
	UnitsSold     int   `db:"units_sold"     json:"unitsSold"`
	RevenueCents  int64 `db:"revenue_cents"  json:"revenueCents"`
}

// applySale returns the counters after selling quantity units.
func (p *Product) applySale(quantity int) (stock, sold int, err error) {
	if quantity <= 0 {
		return 0, 0, ErrInvalidQuantity
	}
	if quantity > p.StockQuantity {
		return 0, 0, ErrInsufficientStock
	}
	return p.StockQuantity - quantity, p.SoldQuantity + quantity, nil
}

// saleTotal multiplies without wrapping; counters edited outside the API
// can exceed the request bounds.
func saleTotal(priceCents int64, quantity int) (int64, error) {
	if priceCents < 0 || quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if priceCents > 0 && int64(quantity) > math.MaxInt64/priceCents {
		return 0, ErrAmountTooLarge
	}
	return priceCents * int64(quantity), nil
}

// applyReversal returns the counters after putting quantity units back.
// Sold never drops below zero.
func (p *Product) applyReversal(quantity int) (stock, sold int) {
	sold = p.SoldQuantity - quantity
	if sold < 0 {
		sold = 0
	}
	return p.StockQuantity + quantity, sold
}
