package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/inventory"
)

// LedgerRepo implements inventory.RepositoryPort.
type LedgerRepo struct{ s *Store }

// Ledger returns the inventory adapter.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

func (r *LedgerRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.s.WithTx(ctx, fn)
}

func (r *LedgerRepo) ProductExists(_ context.Context, productID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.products[productID]
	return ok, nil
}

func (r *LedgerRepo) LockProduct(ctx context.Context, productID uuid.UUID) (bool, error) {
	ok, _ := r.ProductExists(ctx, productID)
	if !ok {
		return false, nil
	}
	r.s.lock(ctx, "product:"+productID.String())
	return true, nil
}

func (r *LedgerRepo) SumStock(_ context.Context, productID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var stock int64
	for _, m := range r.s.movements {
		if m.ProductID == productID {
			stock += m.Contribution()
		}
	}
	return stock, nil
}

func (r *LedgerRepo) SumStockBatch(_ context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[uuid.UUID]int64, len(productIDs))
	for _, id := range productIDs {
		out[id] = 0
	}
	for _, m := range r.s.movements {
		if _, ok := out[m.ProductID]; ok {
			out[m.ProductID] += m.Contribution()
		}
	}
	return out, nil
}

func (r *LedgerRepo) InsertMovement(ctx context.Context, m inventory.Movement) error {
	r.s.write(ctx, func() { r.s.movements = append(r.s.movements, m) }, func() {
		for i := len(r.s.movements) - 1; i >= 0; i-- {
			if r.s.movements[i].ID == m.ID {
				r.s.movements = append(r.s.movements[:i], r.s.movements[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *LedgerRepo) ListMovements(_ context.Context, productID uuid.UUID, limit int) ([]inventory.Movement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []inventory.Movement
	for _, m := range r.s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
