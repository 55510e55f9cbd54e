// AngelaMos | 2026
// memstore_test.go

package shop

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/carterperez-dev/bizdesk/internal/core"
)

// memStore serializes every transaction behind one mutex, which is the
// in-process analogue of the product row lock.
type memStore struct {
	mu    sync.Mutex
	state memState

	failCreateSale error
	txCount        int
}

type memState struct {
	products map[string]Product
	sales    map[string]Sale
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		products: make(map[string]Product),
		sales:    make(map[string]Sale),
	}}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	snapshot := memState{
		products: maps.Clone(s.state.products),
		sales:    maps.Clone(s.state.sales),
	}

	if err := fn(&memRepo{state: &s.state, failCreateSale: s.failCreateSale}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *memStore) view(fn func(r *memRepo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memRepo{state: &s.state})
}

func (s *memStore) CreateProduct(ctx context.Context, p *Product) error {
	return s.view(func(r *memRepo) error { return r.CreateProduct(ctx, p) })
}

func (s *memStore) GetProduct(ctx context.Context, id string) (p *Product, err error) {
	err = s.view(func(r *memRepo) error { p, err = r.GetProduct(ctx, id); return err })
	return p, err
}

func (s *memStore) GetProductForUpdate(ctx context.Context, id string) (*Product, error) {
	return s.GetProduct(ctx, id)
}

func (s *memStore) ListProducts(ctx context.Context, params ProductListParams) (out []Product, total int, err error) {
	err = s.view(func(r *memRepo) error { out, total, err = r.ListProducts(ctx, params); return err })
	return out, total, err
}

func (s *memStore) SetProductCounters(ctx context.Context, id string, stock, sold int) (p *Product, err error) {
	err = s.view(func(r *memRepo) error { p, err = r.SetProductCounters(ctx, id, stock, sold); return err })
	return p, err
}

func (s *memStore) CreateSale(ctx context.Context, sale *Sale) error {
	return s.view(func(r *memRepo) error { return r.CreateSale(ctx, sale) })
}

func (s *memStore) GetSale(ctx context.Context, id string) (sale *Sale, err error) {
	err = s.view(func(r *memRepo) error { sale, err = r.GetSale(ctx, id); return err })
	return sale, err
}

func (s *memStore) GetSaleForUpdate(ctx context.Context, id string) (*Sale, error) {
	return s.GetSale(ctx, id)
}

func (s *memStore) MarkSaleReversed(ctx context.Context, id string) (sale *Sale, err error) {
	err = s.view(func(r *memRepo) error { sale, err = r.MarkSaleReversed(ctx, id); return err })
	return sale, err
}

func (s *memStore) ListSales(ctx context.Context, params SaleListParams) (out []Sale, total int, err error) {
	err = s.view(func(r *memRepo) error { out, total, err = r.ListSales(ctx, params); return err })
	return out, total, err
}

func (s *memStore) TotalRevenue(ctx context.Context) (total int64, err error) {
	err = s.view(func(r *memRepo) error { total, err = r.TotalRevenue(ctx); return err })
	return total, err
}

func (s *memStore) Summary(ctx context.Context) (sum *Summary, err error) {
	err = s.view(func(r *memRepo) error { sum, err = r.Summary(ctx); return err })
	return sum, err
}

func (s *memStore) product(id string) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id]
}

func (s *memStore) saleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.sales)
}

type memRepo struct {
	state          *memState
	failCreateSale error
}

func (r *memRepo) CreateProduct(_ context.Context, p *Product) error {
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.state.products[p.ID] = *p
	return nil
}

func (r *memRepo) GetProduct(_ context.Context, id string) (*Product, error) {
	p, ok := r.state.products[id]
	if !ok {
		return nil, fmt.Errorf("get product: %w", core.ErrNotFound)
	}
	return &p, nil
}

func (r *memRepo) GetProductForUpdate(ctx context.Context, id string) (*Product, error) {
	return r.GetProduct(ctx, id)
}

func (r *memRepo) ListProducts(_ context.Context, params ProductListParams) ([]Product, int, error) {
	params.Normalize()
	all := slices.SortedFunc(maps.Values(r.state.products), func(a, b Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return page(all, params.Offset(), params.PageSize), len(all), nil
}

func (r *memRepo) SetProductCounters(_ context.Context, id string, stock, sold int) (*Product, error) {
	p, ok := r.state.products[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if stock < 0 || sold < 0 {
		return nil, fmt.Errorf("check constraint violated: stock=%d sold=%d", stock, sold)
	}
	p.StockQuantity, p.SoldQuantity, p.UpdatedAt = stock, sold, time.Now()
	r.state.products[id] = p
	return &p, nil
}

func (r *memRepo) CreateSale(_ context.Context, s *Sale) error {
	if r.failCreateSale != nil {
		return r.failCreateSale
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	r.state.sales[s.ID] = *s
	return nil
}

func (r *memRepo) GetSale(_ context.Context, id string) (*Sale, error) {
	s, ok := r.state.sales[id]
	if !ok {
		return nil, fmt.Errorf("get sale: %w", core.ErrNotFound)
	}
	return &s, nil
}

func (r *memRepo) GetSaleForUpdate(ctx context.Context, id string) (*Sale, error) {
	return r.GetSale(ctx, id)
}

func (r *memRepo) MarkSaleReversed(_ context.Context, id string) (*Sale, error) {
	s, ok := r.state.sales[id]
	if !ok || s.IsReversed {
		return nil, ErrAlreadyReversed
	}
	now := time.Now()
	s.IsReversed, s.ReversedAt, s.UpdatedAt = true, &now, now
	r.state.sales[id] = s
	return &s, nil
}

func (r *memRepo) ListSales(_ context.Context, params SaleListParams) ([]Sale, int, error) {
	params.Normalize()
	var filtered []Sale
	for _, s := range r.state.sales {
		if s.IsReversed && !params.IncludeReversed {
			continue
		}
		if params.ProductID != "" && s.ProductID != params.ProductID {
			continue
		}
		filtered = append(filtered, s)
	}
	slices.SortFunc(filtered, func(a, b Sale) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(filtered, params.Offset(), params.PageSize), len(filtered), nil
}

func (r *memRepo) TotalRevenue(_ context.Context) (int64, error) {
	var total int64
	for _, s := range r.state.sales {
		if !s.IsReversed {
			total += s.TotalAmountCents
		}
	}
	return total, nil
}

func (r *memRepo) Summary(_ context.Context) (*Summary, error) {
	var sum Summary
	for _, s := range r.state.sales {
		sum.TotalSales++
		if s.IsReversed {
			sum.ReversedSales++
			continue
		}
		sum.UnitsSold += s.Quantity
		sum.RevenueCents += s.TotalAmountCents
	}
	return &sum, nil
}

func page[T any](items []T, offset, size int) []T {
	if offset >= len(items) {
		return nil
	}
	end := min(offset+size, len(items))
	return items[offset:end]
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *recordingNotifier) NotifyAdmins(_ context.Context, _, _, kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.kinds)
}

var _ Store = (*memStore)(nil)
