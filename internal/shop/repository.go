// AngelaMos | 2026
// repository.go

package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/bizdesk/internal/core"
)

type Repository interface {
	CreateProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductForUpdate(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, params ProductListParams) ([]Product, int, error)
	SetProductCounters(ctx context.Context, id string, stock, sold int) (*Product, error)

	CreateSale(ctx context.Context, sale *Sale) error
	GetSale(ctx context.Context, id string) (*Sale, error)
	GetSaleForUpdate(ctx context.Context, id string) (*Sale, error)
	MarkSaleReversed(ctx context.Context, id string) (*Sale, error)
	ListSales(ctx context.Context, params SaleListParams) ([]Sale, int, error)

	TotalRevenue(ctx context.Context) (int64, error)
	Summary(ctx context.Context) (*Summary, error)
}

// Store runs fn against a transaction-scoped Repository. fn's error rolls
// the whole transaction back.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(Repository) error) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

type sqlStore struct {
	Repository
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) Store {
	return &sqlStore{Repository: NewRepository(db), db: db}
}

func (s *sqlStore) WithinTx(
	ctx context.Context,
	fn func(Repository) error,
) error {
	return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(NewRepository(tx))
	})
}

const productColumns = `id, name, description, category, price_cents,
		       stock_quantity, sold_quantity, created_at, updated_at`

const saleColumns = `id, product_id, quantity, unit_price_cents, total_amount_cents,
		       customer_name, customer_email, customer_phone, is_reversed,
		       reversed_at, sold_by, created_at, updated_at`

func (r *repository) CreateProduct(ctx context.Context, p *Product) error {
	query := `
		INSERT INTO products (
			id, name, description, category, price_cents,
			stock_quantity, sold_quantity
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, p, query,
		p.ID,
		p.Name,
		p.Description,
		p.Category,
		p.PriceCents,
		p.StockQuantity,
		p.SoldQuantity,
	)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	return nil
}

func (r *repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	return r.getProduct(ctx, "get product",
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// GetProductForUpdate holds the row lock until the surrounding transaction
// ends. Outside a transaction the lock is released immediately.
func (r *repository) GetProductForUpdate(ctx context.Context, id string) (*Product, error) {
	return r.getProduct(ctx, "lock product",
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) getProduct(
	ctx context.Context,
	op, query, id string,
) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &p, nil
}

func (r *repository) ListProducts(
	ctx context.Context,
	params ProductListParams,
) ([]Product, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any

	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE $%[1]d OR description ILIKE $%[1]d)",
			len(args),
		))
	}

	if params.Category != "" {
		args = append(args, params.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	if params.InStockOnly {
		conditions = append(conditions, "stock_quantity > 0")
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM products WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+productColumns+`
		FROM products
		WHERE %s
		ORDER BY name ASC, created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var products []Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

func (r *repository) SetProductCounters(
	ctx context.Context,
	id string,
	stock, sold int,
) (*Product, error) {
	query := `
		UPDATE products
		SET stock_quantity = $2, sold_quantity = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	var p Product
	err := r.db.GetContext(ctx, &p, query, id, stock, sold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update product counters: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update product counters: %w", err)
	}

	return &p, nil
}

func (r *repository) CreateSale(ctx context.Context, s *Sale) error {
	query := `
		INSERT INTO sales (
			id, product_id, quantity, unit_price_cents, total_amount_cents,
			customer_name, customer_email, customer_phone, sold_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, s, query,
		s.ID,
		s.ProductID,
		s.Quantity,
		s.UnitPriceCents,
		s.TotalAmountCents,
		s.CustomerName,
		s.CustomerEmail,
		s.CustomerPhone,
		s.SoldBy,
	)
	if err != nil {
		return fmt.Errorf("create sale: %w", err)
	}

	return nil
}

func (r *repository) GetSale(ctx context.Context, id string) (*Sale, error) {
	return r.getSale(ctx, "get sale",
		`SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

func (r *repository) GetSaleForUpdate(ctx context.Context, id string) (*Sale, error) {
	return r.getSale(ctx, "lock sale",
		`SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) getSale(
	ctx context.Context,
	op, query, id string,
) (*Sale, error) {
	var s Sale
	err := r.db.GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &s, nil
}

// MarkSaleReversed only flips rows that are not reversed yet.
func (r *repository) MarkSaleReversed(ctx context.Context, id string) (*Sale, error) {
	query := `
		UPDATE sales
		SET is_reversed = true, reversed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND NOT is_reversed
		RETURNING ` + saleColumns

	var s Sale
	err := r.db.GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mark sale reversed: %w", ErrAlreadyReversed)
	}
	if err != nil {
		return nil, fmt.Errorf("mark sale reversed: %w", err)
	}

	return &s, nil
}

func (r *repository) ListSales(
	ctx context.Context,
	params SaleListParams,
) ([]Sale, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any

	if !params.IncludeReversed {
		conditions = append(conditions, "NOT is_reversed")
	}

	if params.ProductID != "" {
		args = append(args, params.ProductID)
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", len(args)))
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM sales WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+saleColumns+`
		FROM sales
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, len(args)+1, len(args)+2)

	args = append(args, params.PageSize, params.Offset())

	var sales []Sale
	if err := r.db.SelectContext(ctx, &sales, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}

	return sales, total, nil
}

func (r *repository) TotalRevenue(ctx context.Context) (int64, error) {
	query := `
		SELECT COALESCE(SUM(total_amount_cents), 0)
		FROM sales
		WHERE NOT is_reversed`

	var total int64
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("total revenue: %w", err)
	}

	return total, nil
}

func (r *repository) Summary(ctx context.Context) (*Summary, error) {
	query := `
		SELECT COUNT(*) AS total_sales,
		       COUNT(*) FILTER (WHERE is_reversed) AS reversed_sales,
		       COALESCE(SUM(quantity) FILTER (WHERE NOT is_reversed), 0) AS units_sold,
		       COALESCE(SUM(total_amount_cents) FILTER (WHERE NOT is_reversed), 0) AS revenue_cents
		FROM sales`

	var s Summary
	if err := r.db.GetContext(ctx, &s, query); err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}

	return &s, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
