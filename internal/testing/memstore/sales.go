package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// SalesRepo implements sales.Repository.
type SalesRepo struct{ s *Store }

// Sales returns the sales adapter.
func (s *Store) Sales() *SalesRepo { return &SalesRepo{s: s} }

func (r *SalesRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.s.WithTx(ctx, fn)
}

func (r *SalesRepo) InsertSale(ctx context.Context, sale sales.Sale) error {
	sale.Items = append([]sales.SaleItem(nil), sale.Items...)
	r.s.write(ctx, func() { r.s.sales[sale.ID] = sale }, func() { delete(r.s.sales, sale.ID) })
	return nil
}

func (r *SalesRepo) GetSale(_ context.Context, id uuid.UUID) (sales.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[id]
	if !ok {
		return sales.Sale{}, shared.ErrNotFound
	}
	return sale, nil
}

func (r *SalesRepo) ListSales(_ context.Context, start, end time.Time) ([]sales.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []sales.Sale
	for _, sale := range r.s.sales {
		if !sale.SaleDate.Before(start) && sale.SaleDate.Before(end) {
			out = append(out, sale)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleDate.Before(out[j].SaleDate) })
	return out, nil
}
