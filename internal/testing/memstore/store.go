// Package memstore is an in-memory stand-in for the PostgreSQL repositories.
// A unit of work is carried in the context like db.WithTx: nested calls join
// it, entity locks are held until it ends, and an undo log reverts its writes
// on error.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/inventory"
	"github.com/libreria-lumen/backoffice/internal/reservations"
	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/users"
)

// Store holds every table.
type Store struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	categories   map[uuid.UUID]catalog.Category
	products     map[uuid.UUID]catalog.Product
	customers    map[uuid.UUID]customers.Customer
	users        map[uuid.UUID]users.User
	movements    []inventory.Movement
	sales        map[uuid.UUID]sales.Sale
	reservations map[uuid.UUID]reservations.Reservation
	audit        []auditEntry
	auditSeq     int64
	idempotency  map[string]time.Time

	auditErr error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		locks:        make(map[string]*sync.Mutex),
		categories:   make(map[uuid.UUID]catalog.Category),
		products:     make(map[uuid.UUID]catalog.Product),
		customers:    make(map[uuid.UUID]customers.Customer),
		users:        make(map[uuid.UUID]users.User),
		sales:        make(map[uuid.UUID]sales.Sale),
		reservations: make(map[uuid.UUID]reservations.Reservation),
		idempotency:  make(map[string]time.Time),
	}
}

type auditEntry struct {
	seq int64
	rec shared.AuditRecord
}

type txKey struct{}

type unitOfWork struct {
	held map[string]*sync.Mutex
	undo []func()
}

func txFrom(ctx context.Context) *unitOfWork {
	uow, _ := ctx.Value(txKey{}).(*unitOfWork)
	return uow
}

// WithTx runs fn in a unit of work, joining the one in ctx if present.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	uow := &unitOfWork{held: make(map[string]*sync.Mutex)}
	err := fn(context.WithValue(ctx, txKey{}, uow))
	if err != nil {
		s.mu.Lock()
		for i := len(uow.undo) - 1; i >= 0; i-- {
			uow.undo[i]()
		}
		s.mu.Unlock()
	}
	for _, m := range uow.held {
		m.Unlock()
	}
	return err
}

func (s *Store) entityLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// lock blocks until key is held by the unit of work in ctx. Outside a unit
// of work it is a no-op.
func (s *Store) lock(ctx context.Context, key string) {
	uow := txFrom(ctx)
	if uow == nil {
		return
	}
	if _, ok := uow.held[key]; ok {
		return
	}
	m := s.entityLock(key)
	m.Lock()
	uow.held[key] = m
}

// tryLock is lock with SKIP LOCKED semantics.
func (s *Store) tryLock(ctx context.Context, key string) bool {
	uow := txFrom(ctx)
	if uow == nil {
		return true
	}
	if _, ok := uow.held[key]; ok {
		return true
	}
	m := s.entityLock(key)
	if !m.TryLock() {
		return false
	}
	uow.held[key] = m
	return true
}

// write applies fn under the store mutex and registers undo with the unit of
// work in ctx.
func (s *Store) write(ctx context.Context, fn func(), undo func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	if uow := txFrom(ctx); uow != nil && undo != nil {
		uow.undo = append(uow.undo, undo)
	}
}

// FailAudit makes every later audit write fail with err. Pass nil to reset.
func (s *Store) FailAudit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditErr = err
}

// AuditRecords returns a copy of the audit trail.
func (s *Store) AuditRecords() []shared.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shared.AuditRecord, 0, len(s.audit))
	for _, e := range s.audit {
		out = append(out, e.rec)
	}
	return out
}

// Movements returns a copy of the ledger.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.Movement(nil), s.movements...)
}

// SaleCount returns the number of stored sales.
func (s *Store) SaleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

// SeedCategory stores c.
func (s *Store) SeedCategory(c catalog.Category) catalog.Category {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.mu.Lock()
	s.categories[c.ID] = c
	s.mu.Unlock()
	return c
}

// SeedProduct stores p, creating a category when p has none.
func (s *Store) SeedProduct(p catalog.Product) catalog.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CategoryID == uuid.Nil {
		p.CategoryID = s.SeedCategory(catalog.Category{Name: "General " + p.ID.String()[:8], Active: true}).ID
	}
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return p
}

// SeedUser stores u.
func (s *Store) SeedUser(u users.User) users.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

// SeedCustomer stores c.
func (s *Store) SeedCustomer(c customers.Customer) customers.Customer {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.mu.Lock()
	s.customers[c.ID] = c
	s.mu.Unlock()
	return c
}

// SeedStock appends an IN movement of qty units.
func (s *Store) SeedStock(productID uuid.UUID, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, inventory.Movement{
		ID:         uuid.New(),
		ProductID:  productID,
		Kind:       inventory.MovementIn,
		Quantity:   qty,
		OccurredAt: time.Now().UTC(),
		Reference:  "SEED",
	})
}

// SeedReservation stores r as is.
func (s *Store) SeedReservation(r reservations.Reservation) reservations.Reservation {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.mu.Lock()
	s.reservations[r.ID] = r
	s.mu.Unlock()
	return r
}
