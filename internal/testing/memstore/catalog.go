package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct{ s *Store }

// Catalog returns the catalog adapter.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

func (r *CatalogRepo) ListCategories(_ context.Context, activeOnly bool) ([]catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]catalog.Category, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CatalogRepo) GetCategory(_ context.Context, id uuid.UUID) (catalog.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return catalog.Category{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *CatalogRepo) CreateCategory(ctx context.Context, c catalog.Category) error {
	r.s.mu.Lock()
	for _, existing := range r.s.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { r.s.categories[c.ID] = c }, func() { delete(r.s.categories, c.ID) })
	return nil
}

func (r *CatalogRepo) UpdateCategory(ctx context.Context, c catalog.Category) error {
	r.s.mu.Lock()
	prev, ok := r.s.categories[c.ID]
	if !ok {
		r.s.mu.Unlock()
		return shared.ErrNotFound
	}
	for id, existing := range r.s.categories {
		if id != c.ID && strings.EqualFold(existing.Name, c.Name) {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { r.s.categories[c.ID] = c }, func() { r.s.categories[c.ID] = prev })
	return nil
}

func (r *CatalogRepo) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	prev, ok := r.s.categories[id]
	if !ok {
		r.s.mu.Unlock()
		return nil
	}
	for _, p := range r.s.products {
		if p.CategoryID == id {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { delete(r.s.categories, id) }, func() { r.s.categories[id] = prev })
	return nil
}

func (r *CatalogRepo) ListProducts(_ context.Context, f catalog.ListFilters) ([]catalog.Product, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var out []catalog.Product
	for _, p := range r.s.products {
		if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
			continue
		}
		if f.Active != nil && p.Active != *f.Active {
			continue
		}
		if search != "" && !matchesProduct(p, search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		less := productLess(out[i], out[j], f.SortBy)
		if f.SortDir == "desc" {
			return productLess(out[j], out[i], f.SortBy)
		}
		return less
	})
	total := len(out)
	if f.Limit > 0 {
		start := (f.Page - 1) * f.Limit
		if start < 0 {
			start = 0
		}
		out = window(out, start, f.Limit)
	}
	return out, total, nil
}

func matchesProduct(p catalog.Product, search string) bool {
	fields := []string{p.Title, p.Author, p.SKU}
	if p.ISBN != nil {
		fields = append(fields, *p.ISBN)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func productLess(a, b catalog.Product, sortBy string) bool {
	switch sortBy {
	case "sku":
		return a.SKU < b.SKU
	case "author":
		if a.Author != b.Author {
			return a.Author < b.Author
		}
		return a.Title < b.Title
	case "price":
		return a.Price.LessThan(b.Price)
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Title < b.Title
}

func (r *CatalogRepo) GetProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return catalog.Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *CatalogRepo) CreateProduct(ctx context.Context, p catalog.Product) error {
	r.s.mu.Lock()
	if err := r.checkProduct(p); err != nil {
		r.s.mu.Unlock()
		return err
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { r.s.products[p.ID] = p }, func() { delete(r.s.products, p.ID) })
	return nil
}

func (r *CatalogRepo) UpdateProduct(ctx context.Context, p catalog.Product) error {
	r.s.mu.Lock()
	prev, ok := r.s.products[p.ID]
	if !ok {
		r.s.mu.Unlock()
		return shared.ErrNotFound
	}
	if err := r.checkProduct(p); err != nil {
		r.s.mu.Unlock()
		return err
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { r.s.products[p.ID] = p }, func() { r.s.products[p.ID] = prev })
	return nil
}

func (r *CatalogRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	prev, ok := r.s.products[id]
	if !ok {
		r.s.mu.Unlock()
		return nil
	}
	if r.s.productReferenced(id) {
		r.s.mu.Unlock()
		return shared.ErrConflict
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { delete(r.s.products, id) }, func() { r.s.products[id] = prev })
	return nil
}

// checkProduct enforces the unique and foreign key constraints. Callers hold
// the store mutex.
func (r *CatalogRepo) checkProduct(p catalog.Product) error {
	if _, ok := r.s.categories[p.CategoryID]; !ok {
		return shared.ErrConflict
	}
	for id, existing := range r.s.products {
		if id == p.ID {
			continue
		}
		if existing.SKU == p.SKU {
			return shared.ErrConflict
		}
		if p.ISBN != nil && existing.ISBN != nil && *existing.ISBN == *p.ISBN {
			return shared.ErrConflict
		}
	}
	return nil
}

func (s *Store) productReferenced(id uuid.UUID) bool {
	for _, m := range s.movements {
		if m.ProductID == id {
			return true
		}
	}
	for _, sale := range s.sales {
		for _, it := range sale.Items {
			if it.ProductID == id {
				return true
			}
		}
	}
	for _, res := range s.reservations {
		for _, it := range res.Items {
			if it.ProductID == id {
				return true
			}
		}
	}
	return false
}

func window[T any](items []T, start, limit int) []T {
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
