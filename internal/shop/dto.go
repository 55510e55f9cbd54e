// AngelaMos | 2026
// dto.go

package shop

import (
	"fmt"
	"time"
)

type SellRequest struct {
	ProductID     string  `json:"productId"     validate:"required,uuid"`
	Quantity      int     `json:"quantity"      validate:"required,gt=0,lte=100000"`
	CustomerName  *string `json:"customerName"  validate:"omitempty,max=200"`
	CustomerEmail *string `json:"customerEmail" validate:"omitempty,email,max=255"`
	CustomerPhone *string `json:"customerPhone" validate:"omitempty,max=32"`
}

type ReverseSaleRequest struct {
	SaleID string `json:"saleId" validate:"required,uuid"`
}

type CreateProductRequest struct {
	Name          string `json:"name"          validate:"required,min=1,max=200"`
	Description   string `json:"description"   validate:"max=2000"`
	Category      string `json:"category"      validate:"max=100"`
	PriceCents    int64  `json:"priceCents"    validate:"gte=0,lte=10000000000"`
	StockQuantity int    `json:"stockQuantity" validate:"gte=0,lte=1000000"`
}

type ProductListParams struct {
	Page        int
	PageSize    int
	Search      string
	Category    string
	InStockOnly bool
}

func (p *ProductListParams) Normalize() {
	p.Page, p.PageSize = normalizePage(p.Page, p.PageSize)
}

func (p ProductListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type SaleListParams struct {
	Page            int
	PageSize        int
	ProductID       string
	IncludeReversed bool
}

func (p *SaleListParams) Normalize() {
	p.Page, p.PageSize = normalizePage(p.Page, p.PageSize)
}

func (p SaleListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

type ProductResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	PriceCents    int64     `json:"priceCents"`
	Price         string    `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	SoldQuantity  int       `json:"soldQuantity"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type SaleResponse struct {
	ID               string     `json:"id"`
	ProductID        string     `json:"productId"`
	Quantity         int        `json:"quantity"`
	UnitPriceCents   int64      `json:"unitPriceCents"`
	TotalAmountCents int64      `json:"totalAmountCents"`
	TotalAmount      string     `json:"totalAmount"`
	CustomerName     *string    `json:"customerName,omitempty"`
	CustomerEmail    *string    `json:"customerEmail,omitempty"`
	CustomerPhone    *string    `json:"customerPhone,omitempty"`
	IsReversed       bool       `json:"isReversed"`
	ReversedAt       *time.Time `json:"reversedAt,omitempty"`
	SoldBy           *string    `json:"soldBy,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type SellResponse struct {
	Message string          `json:"message"`
	Sale    SaleResponse    `json:"sale"`
	Product ProductResponse `json:"updatedProduct"`
}

type ReversalResponse struct {
	Message             string          `json:"message"`
	SaleID              string          `json:"saleId"`
	ReversedQuantity    int             `json:"reversedQuantity"`
	ReversedAmountCents int64           `json:"reversedAmountCents"`
	ReversedAmount      string          `json:"reversedAmount"`
	UpdatedProduct      ProductResponse `json:"updatedProduct"`
}

type RevenueResponse struct {
	TotalRevenueCents int64  `json:"totalRevenueCents"`
	TotalRevenue      string `json:"totalRevenue"`
}

func ToProductResponse(p *Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		PriceCents:    p.PriceCents,
		Price:         FormatCents(p.PriceCents),
		StockQuantity: p.StockQuantity,
		SoldQuantity:  p.SoldQuantity,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func ToProductResponseList(products []Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = ToProductResponse(&products[i])
	}
	return out
}

func ToSaleResponse(s *Sale) SaleResponse {
	return SaleResponse{
		ID:               s.ID,
		ProductID:        s.ProductID,
		Quantity:         s.Quantity,
		UnitPriceCents:   s.UnitPriceCents,
		TotalAmountCents: s.TotalAmountCents,
		TotalAmount:      FormatCents(s.TotalAmountCents),
		CustomerName:     s.CustomerName,
		CustomerEmail:    s.CustomerEmail,
		CustomerPhone:    s.CustomerPhone,
		IsReversed:       s.IsReversed,
		ReversedAt:       s.ReversedAt,
		SoldBy:           s.SoldBy,
		CreatedAt:        s.CreatedAt,
	}
}

func ToSaleResponseList(sales []Sale) []SaleResponse {
	out := make([]SaleResponse, len(sales))
	for i := range sales {
		out[i] = ToSaleResponse(&sales[i])
	}
	return out
}

// FormatCents renders cents as a decimal amount, e.g. 12345 -> "123.45".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
