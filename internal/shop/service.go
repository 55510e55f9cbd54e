// AngelaMos | 2026
// service.go

package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/bizdesk/internal/audit"
	"github.com/carterperez-dev/bizdesk/internal/core"
	"github.com/carterperez-dev/bizdesk/internal/metrics"
)

const (
	NotificationKindSale     = "sale"
	NotificationKindReversal = "sale_reversal"
)

// AdminNotifier fans a message out to every administrator. It must not
// block the caller and has no error path.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, title, message, kind string)
}

type Service struct {
	store    Store
	notifier AdminNotifier
	audit    *audit.Logger
	logger   *slog.Logger
}

func NewService(
	store Store,
	notifier AdminNotifier,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &Service{
		store:    store,
		notifier: notifier,
		audit:    auditLog,
		logger:   logger,
	}
}

// SellProduct locks the product row, re-checks stock under the lock and
// records the sale in the same transaction.
func (s *Service) SellProduct(
	ctx context.Context,
	sellerID string,
	req SellRequest,
) (resp *SellResponse, err error) {
	ctx, span := core.StartSpan(ctx, "shop.sell",
		attribute.String("product.id", req.ProductID),
		attribute.Int("sale.quantity", req.Quantity),
	)
	defer span.End()

	var sale *Sale
	var product *Product

	defer func() {
		var units int
		var amount int64
		if sale != nil {
			units, amount = sale.Quantity, sale.TotalAmountCents
		}
		metrics.ObserveShop("sell", err, units, amount)
	}()

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("sell: %w", ErrInvalidQuantity)
	}

	err = s.store.WithinTx(ctx, func(repo Repository) error {
		p, err := repo.GetProductForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}

		stock, sold, err := p.applySale(req.Quantity)
		if err != nil {
			return err
		}

		total, err := saleTotal(p.PriceCents, req.Quantity)
		if err != nil {
			return err
		}

		updated, err := repo.SetProductCounters(ctx, p.ID, stock, sold)
		if err != nil {
			return err
		}

		newSale := &Sale{
			ID:               uuid.New().String(),
			ProductID:        p.ID,
			Quantity:         req.Quantity,
			UnitPriceCents:   p.PriceCents,
			TotalAmountCents: total,
			CustomerName:     trimmedOrNil(req.CustomerName),
			CustomerEmail:    lowerOrNil(req.CustomerEmail),
			CustomerPhone:    trimmedOrNil(req.CustomerPhone),
			SoldBy:           stringOrNil(sellerID),
		}
		if err := repo.CreateSale(ctx, newSale); err != nil {
			return err
		}

		sale, product = newSale, updated
		return nil
	})
	if err != nil {
		sale = nil
		if !errors.Is(err, ErrInsufficientStock) && !errors.Is(err, core.ErrNotFound) {
			core.SetSpanError(ctx, err)
		}
		return nil, fmt.Errorf("sell: %w", err)
	}

	s.audit.Log(ctx, "shop.sell", sellerID, sale.ID, "success",
		"product_id", product.ID,
		"quantity", sale.Quantity,
		"amount_cents", sale.TotalAmountCents,
	)

	s.notify(ctx, "New sale",
		fmt.Sprintf("%d x %s sold for %s. Remaining stock: %d.",
			sale.Quantity, product.Name, FormatCents(sale.TotalAmountCents), product.StockQuantity),
		NotificationKindSale,
	)

	return &SellResponse{
		Message: "Sale recorded successfully.",
		Sale:    ToSaleResponse(sale),
		Product: ToProductResponse(product),
	}, nil
}

// ReverseSale locks the sale then its product, restores stock and flags the
// sale. A reversed sale can never be reversed again.
func (s *Service) ReverseSale(
	ctx context.Context,
	actorID, saleID string,
) (resp *ReversalResponse, err error) {
	ctx, span := core.StartSpan(ctx, "shop.reverse_sale",
		attribute.String("sale.id", saleID),
	)
	defer span.End()

	var sale *Sale
	var product *Product

	defer func() {
		var units int
		var amount int64
		if sale != nil {
			units, amount = sale.Quantity, sale.TotalAmountCents
		}
		metrics.ObserveShop("reverse", err, units, amount)
	}()

	err = s.store.WithinTx(ctx, func(repo Repository) error {
		sl, err := repo.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sl.IsReversed {
			return ErrAlreadyReversed
		}

		p, err := repo.GetProductForUpdate(ctx, sl.ProductID)
		if err != nil {
			return err
		}

		stock, sold := p.applyReversal(sl.Quantity)
		updated, err := repo.SetProductCounters(ctx, p.ID, stock, sold)
		if err != nil {
			return err
		}

		reversed, err := repo.MarkSaleReversed(ctx, sl.ID)
		if err != nil {
			return err
		}

		sale, product = reversed, updated
		return nil
	})
	if err != nil {
		sale = nil
		if !errors.Is(err, ErrAlreadyReversed) && !errors.Is(err, core.ErrNotFound) {
			core.SetSpanError(ctx, err)
		}
		return nil, fmt.Errorf("reverse sale: %w", err)
	}

	s.audit.Log(ctx, "shop.reverse_sale", actorID, sale.ID, "success",
		"product_id", product.ID,
		"quantity", sale.Quantity,
		"amount_cents", sale.TotalAmountCents,
	)

	s.notify(ctx, "Sale reversed",
		fmt.Sprintf("Sale of %d x %s (%s) was reversed. Stock is now %d.",
			sale.Quantity, product.Name, FormatCents(sale.TotalAmountCents), product.StockQuantity),
		NotificationKindReversal,
	)

	return &ReversalResponse{
		Message:             "Sale reversed successfully.",
		SaleID:              sale.ID,
		ReversedQuantity:    sale.Quantity,
		ReversedAmountCents: sale.TotalAmountCents,
		ReversedAmount:      FormatCents(sale.TotalAmountCents),
		UpdatedProduct:      ToProductResponse(product),
	}, nil
}

// TotalRevenue is recomputed from the ledger on every call.
func (s *Service) TotalRevenue(ctx context.Context) (*RevenueResponse, error) {
	total, err := s.store.TotalRevenue(ctx)
	if err != nil {
		return nil, err
	}

	return &RevenueResponse{
		TotalRevenueCents: total,
		TotalRevenue:      FormatCents(total),
	}, nil
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	return s.store.Summary(ctx)
}

func (s *Service) CreateProduct(
	ctx context.Context,
	actorID string,
	req CreateProductRequest,
) (*Product, error) {
	if req.PriceCents < 0 || req.PriceCents > MaxPriceCents ||
		req.StockQuantity < 0 || req.StockQuantity > MaxStock {
		return nil, fmt.Errorf("create product: %w", core.ErrInvalidInput)
	}

	p := &Product{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		Category:      strings.TrimSpace(req.Category),
		PriceCents:    req.PriceCents,
		StockQuantity: req.StockQuantity,
	}

	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, "shop.create_product", actorID, p.ID, "success",
		"stock", p.StockQuantity,
		"price_cents", p.PriceCents,
	)

	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) ListProducts(
	ctx context.Context,
	params ProductListParams,
) ([]Product, int, error) {
	return s.store.ListProducts(ctx, params)
}

func (s *Service) GetSale(ctx context.Context, id string) (*Sale, error) {
	return s.store.GetSale(ctx, id)
}

func (s *Service) ListSales(
	ctx context.Context,
	params SaleListParams,
) ([]Sale, int, error) {
	return s.store.ListSales(ctx, params)
}

func (s *Service) notify(ctx context.Context, title, message, kind string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyAdmins(ctx, title, message, kind)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func lowerOrNil(s *string) *string {
	v := trimmedOrNil(s)
	if v == nil {
		return nil
	}
	lower := strings.ToLower(*v)
	return &lower
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
