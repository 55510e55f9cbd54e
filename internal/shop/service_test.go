// AngelaMos | 2026
// service_test.go

package shop

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bizdesk/internal/core"
)

func newTestService(t *testing.T) (*Service, *memStore, *recordingNotifier) {
	t.Helper()

	store := newMemStore()
	notifier := &recordingNotifier{}
	return NewService(store, notifier, nil, nil), store, notifier
}

func seedProduct(t *testing.T, svc *Service, priceCents int64, stock int) *Product {
	t.Helper()

	p, err := svc.CreateProduct(context.Background(), "admin-1", CreateProductRequest{
		Name:          "Widget",
		PriceCents:    priceCents,
		StockQuantity: stock,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func sell(t *testing.T, svc *Service, productID string, qty int) *SellResponse {
	t.Helper()

	resp, err := svc.SellProduct(context.Background(), "seller-1", SellRequest{
		ProductID: productID,
		Quantity:  qty,
	})
	if err != nil {
		t.Fatalf("sell %d: %v", qty, err)
	}
	return resp
}

func TestSellProductUpdatesCountersAndSnapshotsPrice(t *testing.T) {
	svc, store, notifier := newTestService(t)
	p := seedProduct(t, svc, 1250, 10)

	email := "  Buyer@Example.com "
	resp, err := svc.SellProduct(context.Background(), "seller-1", SellRequest{
		ProductID:     p.ID,
		Quantity:      3,
		CustomerEmail: &email,
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	if resp.Product.StockQuantity != 7 || resp.Product.SoldQuantity != 3 {
		t.Fatalf("unexpected counters %+v", resp.Product)
	}
	if resp.Sale.UnitPriceCents != 1250 || resp.Sale.TotalAmountCents != 3750 {
		t.Fatalf("unexpected amounts %+v", resp.Sale)
	}
	if resp.Sale.TotalAmount != "37.50" {
		t.Fatalf("unexpected formatted amount %q", resp.Sale.TotalAmount)
	}
	if resp.Sale.CustomerEmail == nil || *resp.Sale.CustomerEmail != "buyer@example.com" {
		t.Fatalf("customer email not normalized: %v", resp.Sale.CustomerEmail)
	}
	if resp.Sale.SoldBy == nil || *resp.Sale.SoldBy != "seller-1" {
		t.Fatalf("seller not recorded")
	}

	stored := store.product(p.ID)
	if stored.StockQuantity != 7 || stored.SoldQuantity != 3 {
		t.Fatalf("store not updated: %+v", stored)
	}
	if notifier.count() != 1 || notifier.kinds[0] != NotificationKindSale {
		t.Fatalf("expected one sale notification, got %v", notifier.kinds)
	}
}

func TestSellProductInsufficientStock(t *testing.T) {
	svc, store, notifier := newTestService(t)
	p := seedProduct(t, svc, 500, 2)

	_, err := svc.SellProduct(context.Background(), "seller-1", SellRequest{ProductID: p.ID, Quantity: 3})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	stored := store.product(p.ID)
	if stored.StockQuantity != 2 || stored.SoldQuantity != 0 {
		t.Fatalf("counters changed on a rejected sale: %+v", stored)
	}
	if store.saleCount() != 0 || notifier.count() != 0 {
		t.Fatalf("rejected sale left side effects")
	}
}

func TestSellProductExactStockDrainsToZero(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := seedProduct(t, svc, 100, 4)

	resp := sell(t, svc, p.ID, 4)
	if resp.Product.StockQuantity != 0 || resp.Product.SoldQuantity != 4 {
		t.Fatalf("unexpected counters %+v", resp.Product)
	}
}

func TestSellProductNotFoundAndBadQuantity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SellProduct(ctx, "seller-1", SellRequest{ProductID: uuid.New().String(), Quantity: 1})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p := seedProduct(t, svc, 100, 5)
	for _, qty := range []int{0, -1} {
		_, err := svc.SellProduct(ctx, "seller-1", SellRequest{ProductID: p.ID, Quantity: qty})
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestSellProductRollsBackWhenSaleInsertFails(t *testing.T) {
	svc, store, notifier := newTestService(t)
	p := seedProduct(t, svc, 100, 5)

	boom := errors.New("insert failed")
	store.failCreateSale = boom

	_, err := svc.SellProduct(context.Background(), "seller-1", SellRequest{ProductID: p.ID, Quantity: 2})
	if !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}

	stored := store.product(p.ID)
	if stored.StockQuantity != 5 || stored.SoldQuantity != 0 {
		t.Fatalf("stock decrement was not rolled back: %+v", stored)
	}
	if notifier.count() != 0 {
		t.Fatalf("no notification expected after rollback")
	}
}

func TestReverseSaleRestoresStock(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 999, 10)

	sold := sell(t, svc, p.ID, 4)

	resp, err := svc.ReverseSale(ctx, "admin-1", sold.Sale.ID)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}

	if resp.SaleID != sold.Sale.ID || resp.ReversedQuantity != 4 || resp.ReversedAmountCents != 3996 {
		t.Fatalf("unexpected reversal response %+v", resp)
	}
	if resp.UpdatedProduct.StockQuantity != 10 || resp.UpdatedProduct.SoldQuantity != 0 {
		t.Fatalf("counters not restored: %+v", resp.UpdatedProduct)
	}

	sale, err := svc.GetSale(ctx, sold.Sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !sale.IsReversed || sale.ReversedAt == nil {
		t.Fatalf("sale not flagged: %+v", sale)
	}
	if store.saleCount() != 1 {
		t.Fatalf("reversal must not delete the sale")
	}
	if notifier.count() != 2 || notifier.kinds[1] != NotificationKindReversal {
		t.Fatalf("expected sale + reversal notifications, got %v", notifier.kinds)
	}
}

func TestReverseSaleTwiceIsRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 100, 10)
	sold := sell(t, svc, p.ID, 3)

	if _, err := svc.ReverseSale(ctx, "admin-1", sold.Sale.ID); err != nil {
		t.Fatalf("first reverse: %v", err)
	}

	_, err := svc.ReverseSale(ctx, "admin-1", sold.Sale.ID)
	if !errors.Is(err, ErrAlreadyReversed) {
		t.Fatalf("expected ErrAlreadyReversed, got %v", err)
	}

	stored := store.product(p.ID)
	if stored.StockQuantity != 10 {
		t.Fatalf("double reversal inflated stock: %+v", stored)
	}
}

func TestReverseSaleFloorsSoldAtZero(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 100, 10)
	sold := sell(t, svc, p.ID, 5)

	// Counters edited out of band, e.g. a manual correction.
	_, _ = store.SetProductCounters(ctx, p.ID, 5, 2)

	resp, err := svc.ReverseSale(ctx, "admin-1", sold.Sale.ID)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if resp.UpdatedProduct.SoldQuantity != 0 || resp.UpdatedProduct.StockQuantity != 10 {
		t.Fatalf("unexpected counters %+v", resp.UpdatedProduct)
	}
}

func TestReverseSaleNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ReverseSale(context.Background(), "admin-1", uuid.New().String())
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReverseSaleOfDeletedProductIsNotFound(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	p := seedProduct(t, svc, 400, 5)
	sold := sell(t, svc, p.ID, 2)
	notified := notifier.count()

	store.mu.Lock()
	delete(store.state.products, p.ID)
	txBefore := store.txCount
	store.mu.Unlock()

	_, err := svc.ReverseSale(ctx, "admin-1", sold.Sale.ID)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if store.txCount != txBefore+1 {
		t.Fatalf("reversal should have run in exactly one transaction")
	}

	sale, err := store.GetSale(ctx, sold.Sale.ID)
	if err != nil {
		t.Fatalf("sale must survive its product: %v", err)
	}
	if sale.IsReversed || sale.ReversedAt != nil {
		t.Fatalf("failed reversal left the sale flagged: %+v", sale)
	}
	if _, err := store.GetProduct(ctx, p.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("rollback resurrected or altered the product: %v", err)
	}

	rev, err := svc.TotalRevenue(ctx)
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	if rev.TotalRevenueCents != 800 {
		t.Fatalf("revenue should still count the unreversed sale, got %d", rev.TotalRevenueCents)
	}
	if notifier.count() != notified {
		t.Fatalf("failed reversal must not notify admins")
	}
}

func TestTotalRevenueExcludesReversedSales(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := seedProduct(t, svc, 1000, 100)
	b := seedProduct(t, svc, 250, 100)

	sell(t, svc, a.ID, 2)
	reversed := sell(t, svc, b.ID, 4)
	sell(t, svc, b.ID, 1)

	if _, err := svc.ReverseSale(ctx, "admin-1", reversed.Sale.ID); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	rev, err := svc.TotalRevenue(ctx)
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	if rev.TotalRevenueCents != 2250 || rev.TotalRevenue != "22.50" {
		t.Fatalf("unexpected revenue %+v", rev)
	}

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalSales != 3 || sum.ReversedSales != 1 || sum.UnitsSold != 3 || sum.RevenueCents != 2250 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestConcurrentSellOfLastUnit(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := seedProduct(t, svc, 100, 1)

	const buyers = 8
	var wg sync.WaitGroup
	errs := make([]error, buyers)

	for i := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.SellProduct(context.Background(), "seller-1", SellRequest{
				ProductID: p.ID,
				Quantity:  1,
			})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientStock):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}

	if succeeded != 1 {
		t.Fatalf("expected exactly one successful sale, got %d", succeeded)
	}
	stored := store.product(p.ID)
	if stored.StockQuantity != 0 || stored.SoldQuantity != 1 {
		t.Fatalf("unexpected counters %+v", stored)
	}
}

func TestListSalesHidesReversedByDefault(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 100, 10)

	keep := sell(t, svc, p.ID, 1)
	gone := sell(t, svc, p.ID, 1)
	if _, err := svc.ReverseSale(ctx, "admin-1", gone.Sale.ID); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	sales, total, err := svc.ListSales(ctx, SaleListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || sales[0].ID != keep.Sale.ID {
		t.Fatalf("expected only the live sale, got %d %+v", total, sales)
	}

	_, total, err = svc.ListSales(ctx, SaleListParams{IncludeReversed: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected both sales with include_reversed, got %d", total)
	}
}

func TestCreateProductRejectsNegatives(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateProduct(context.Background(), "admin-1", CreateProductRequest{
		Name:       "Bad",
		PriceCents: -1,
	})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFormatCents(t *testing.T) {
	cases := map[int64]string{0: "0.00", 5: "0.05", 1999: "19.99", 100000: "1000.00", -250: "-2.50"}
	for in, want := range cases {
		if got := FormatCents(in); got != want {
			t.Fatalf("FormatCents(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSaleTotalRejectsOverflow(t *testing.T) {
	if got, err := saleTotal(MaxPriceCents, MaxStock); err != nil || got != MaxPriceCents*MaxStock {
		t.Fatalf("bounded inputs must multiply exactly, got %d %v", got, err)
	}
	if _, err := saleTotal(math.MaxInt64/2, 3); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
	if got, err := saleTotal(0, 7); err != nil || got != 0 {
		t.Fatalf("free items total zero, got %d %v", got, err)
	}
}

func TestSellRejectsAmountOverflowWithoutSideEffects(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 100, 10)

	// Price edited out of band, beyond what the API accepts.
	store.mu.Lock()
	prod := store.state.products[p.ID]
	prod.PriceCents = math.MaxInt64 / 4
	store.state.products[p.ID] = prod
	store.mu.Unlock()

	_, err := svc.SellProduct(ctx, "seller-1", SellRequest{ProductID: p.ID, Quantity: 5})
	if !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}

	after, err := store.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.StockQuantity != 10 || after.SoldQuantity != 0 {
		t.Fatalf("counters moved on a rejected sale: %+v", after)
	}
	if sales, total, _ := store.ListSales(ctx, SaleListParams{IncludeReversed: true}); total != 0 || len(sales) != 0 {
		t.Fatalf("rejected sale was recorded")
	}
}

func TestCreateProductRejectsOutOfRangePrice(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateProduct(context.Background(), "admin-1", CreateProductRequest{
		Name:          "Gold bar",
		PriceCents:    MaxPriceCents + 1,
		StockQuantity: 1,
	})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
