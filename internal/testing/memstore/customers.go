package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// CustomerRepo implements customers.Repository.
type CustomerRepo struct{ s *Store }

// Customers returns the customers adapter.
func (s *Store) Customers() *CustomerRepo { return &CustomerRepo{s: s} }

func (r *CustomerRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.s.WithTx(ctx, fn)
}

func (r *CustomerRepo) Get(_ context.Context, id uuid.UUID) (customers.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[id]
	if !ok {
		return customers.Customer{}, shared.ErrNotFound
	}
	return c, nil
}

// GetByDNI with forUpdate locks the natural key, so concurrent upserts of the
// same DNI serialize even before the row exists.
func (r *CustomerRepo) GetByDNI(ctx context.Context, dni string, forUpdate bool) (customers.Customer, error) {
	if forUpdate {
		r.s.lock(ctx, "customer-dni:"+dni)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.customers {
		if c.DNI == dni {
			return c, nil
		}
	}
	return customers.Customer{}, shared.ErrNotFound
}

func (r *CustomerRepo) List(_ context.Context, f customers.ListFilters) ([]customers.Customer, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var out []customers.Customer
	for _, c := range r.s.customers {
		if search != "" && !matchesCustomer(c, search) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return window(out, (f.Page-1)*f.Limit, f.Limit), len(out), nil
}

func matchesCustomer(c customers.Customer, search string) bool {
	fields := []string{c.DNI, c.FirstName, c.LastName}
	if c.Email != nil {
		fields = append(fields, *c.Email)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func (r *CustomerRepo) Create(ctx context.Context, c customers.Customer) error {
	r.s.mu.Lock()
	for _, existing := range r.s.customers {
		if existing.DNI == c.DNI {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { r.s.customers[c.ID] = c }, func() { delete(r.s.customers, c.ID) })
	return nil
}

func (r *CustomerRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	r.s.mu.Lock()
	prev, ok := r.s.customers[id]
	if !ok {
		r.s.mu.Unlock()
		return shared.ErrNotFound
	}
	next := prev
	for k, v := range updates {
		if err := applyCustomerField(&next, k, v); err != nil {
			r.s.mu.Unlock()
			return err
		}
	}
	for otherID, existing := range r.s.customers {
		if otherID != id && existing.DNI == next.DNI {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { r.s.customers[id] = next }, func() { r.s.customers[id] = prev })
	return nil
}

func applyCustomerField(c *customers.Customer, key string, v any) error {
	switch key {
	case "dni":
		c.DNI = v.(string)
	case "first_name":
		c.FirstName = v.(string)
	case "last_name":
		c.LastName = v.(string)
	case "email":
		c.Email = v.(*string)
	case "phone":
		c.Phone = v.(*string)
	case "notes":
		c.Notes = v.(*string)
	case "updated_at":
		c.UpdatedAt = v.(time.Time)
	default:
		return fmt.Errorf("customers: column %q is not updatable", key)
	}
	return nil
}

func (r *CustomerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	prev, ok := r.s.customers[id]
	if !ok {
		r.s.mu.Unlock()
		return nil
	}
	for _, sale := range r.s.sales {
		if sale.CustomerID != nil && *sale.CustomerID == id {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	for _, res := range r.s.reservations {
		if res.CustomerID == id {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { delete(r.s.customers, id) }, func() { r.s.customers[id] = prev })
	return nil
}
