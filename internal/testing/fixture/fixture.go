// Package fixture wires the back-office services on top of memstore for
// service and HTTP tests.
package fixture

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/inventory"
	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/reservations"
	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/testing/memstore"
	"github.com/libreria-lumen/backoffice/internal/users"
)

// Epoch is the instant every fixture clock starts at.
var Epoch = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

// Env is a fully wired in-memory back office.
type Env struct {
	Store        *memstore.Store
	Clock        *clock.Fixed
	Logger       *slog.Logger
	Auditor      *shared.Auditor
	Catalog      *catalog.Service
	Customers    *customers.Service
	Users        *users.Service
	Inventory    *inventory.Service
	Sales        *sales.Service
	Reservations *reservations.Service

	// Admin and Employee are seeded active accounts.
	Admin    users.User
	Employee users.User
}

type options struct {
	lenientAudit bool
	saleHook     func(ctx context.Context, sale sales.Sale) error
}

// Option customises New.
type Option func(*options)

// LenientAudit drops failed audit writes instead of aborting.
func LenientAudit() Option {
	return func(o *options) { o.lenientAudit = true }
}

// OnSaleCompleted installs a sale hook.
func OnSaleCompleted(fn func(ctx context.Context, sale sales.Sale) error) Option {
	return func(o *options) { o.saleHook = fn }
}

// New builds an Env. Audit is strict unless LenientAudit is passed.
func New(t testing.TB, opts ...Option) *Env {
	t.Helper()
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := memstore.New()
	clk := clock.NewFixed(Epoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditor := shared.NewAuditor(store.Audit(), !o.lenientAudit, logger)

	inv := inventory.NewService(store.Ledger(), auditor, clk, logger)
	cat := catalog.NewService(store.Catalog(), inv, auditor, clk)
	cust := customers.NewService(store.Customers(), auditor, clk)
	usr := users.NewService(store.Users(), auditor, clk, logger)

	salesSvc := sales.NewService(sales.Deps{
		Repo:        store.Sales(),
		Products:    cat,
		Customers:   cust,
		Cashiers:    usr,
		Ledger:      inv,
		Audit:       auditor,
		Idempotency: store.Idempotency(),
		Hooks:       sales.Hooks{SaleCompleted: o.saleHook},
		Clock:       clk,
		Logger:      logger,
	})
	resSvc := reservations.NewService(reservations.Deps{
		Repo:      store.Reservations(),
		Products:  cat,
		Customers: cust,
		Ledger:    inv,
		Sales:     salesSvc,
		Audit:     auditor,
		Clock:     clk,
		Logger:    logger,
	})

	return &Env{
		Store:        store,
		Clock:        clk,
		Logger:       logger,
		Auditor:      auditor,
		Catalog:      cat,
		Customers:    cust,
		Users:        usr,
		Inventory:    inv,
		Sales:        salesSvc,
		Reservations: resSvc,
		Admin: store.SeedUser(users.User{
			Email: "admin@lumen.test", FirstName: "Ana", LastName: "Admin",
			Role: shared.RoleAdmin, Active: true, CreatedAt: Epoch,
		}),
		Employee: store.SeedUser(users.User{
			Email: "caja@lumen.test", FirstName: "Carlos", LastName: "Caja",
			Role: shared.RoleEmployee, Active: true, CreatedAt: Epoch,
		}),
	}
}

// Product seeds an active product priced at price with stock units on hand.
func (e *Env) Product(sku, price string, stock int64) catalog.Product {
	p := e.Store.SeedProduct(catalog.Product{
		SKU:       sku,
		Title:     "Title " + sku,
		Author:    "Author " + sku,
		Price:     decimal.RequireFromString(price),
		Active:    true,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	})
	if stock > 0 {
		e.Store.SeedStock(p.ID, stock)
	}
	return p
}

// Customer seeds a customer with the given DNI.
func (e *Env) Customer(dni string) customers.Customer {
	return e.Store.SeedCustomer(customers.Customer{
		DNI: dni, FirstName: "Lucia", LastName: "Paz", CreatedAt: Epoch, UpdatedAt: Epoch,
	})
}

// Stock reads the ledger stock of productID.
func (e *Env) Stock(t testing.TB, productID uuid.UUID) int64 {
	t.Helper()
	stock, err := e.Inventory.CurrentStock(context.Background(), productID)
	if err != nil {
		t.Fatalf("current stock: %v", err)
	}
	return stock
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
