package sales

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/inventory"
	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/users"
)

// Repository persists sales. GetSale reports a missing row with
// shared.ErrNotFound.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertSale(ctx context.Context, sale Sale) error
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
	ListSales(ctx context.Context, start, end time.Time) ([]Sale, error)
}

// ProductLookup resolves catalog products.
type ProductLookup interface {
	GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// CustomerLookup resolves customers.
type CustomerLookup interface {
	Get(ctx context.Context, id uuid.UUID) (customers.Customer, error)
}

// CashierLookup resolves active staff accounts.
type CashierLookup interface {
	Resolve(ctx context.Context, id uuid.UUID) (users.User, error)
}

// StockLedger is the part of the inventory ledger a sale consumes.
type StockLedger interface {
	StockForUpdate(ctx context.Context, productID uuid.UUID) (int64, error)
	AdjustStock(ctx context.Context, input inventory.AdjustInput) (int64, error)
}

// Hooks are invoked after a sale commits.
type Hooks struct {
	SaleCompleted func(ctx context.Context, sale Sale) error
}

// Deps bundles the collaborators of Service.
type Deps struct {
	Repo        Repository
	Products    ProductLookup
	Customers   CustomerLookup
	Cashiers    CashierLookup
	Ledger      StockLedger
	Audit       shared.AuditSink
	Idempotency shared.IdempotencyClaimer
	Hooks       Hooks
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Service commits point-of-sale transactions.
type Service struct {
	repo        Repository
	products    ProductLookup
	customers   CustomerLookup
	cashiers    CashierLookup
	ledger      StockLedger
	audit       shared.AuditSink
	idempotency shared.IdempotencyClaimer
	hooks       Hooks
	clock       clock.Clock
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		repo:        d.Repo,
		products:    d.Products,
		customers:   d.Customers,
		cashiers:    d.Cashiers,
		ledger:      d.Ledger,
		audit:       d.Audit,
		idempotency: d.Idempotency,
		hooks:       d.Hooks,
		clock:       d.Clock,
		logger:      d.Logger,
	}
}

// Create validates, prices, and commits a sale, debiting stock for every
// item in the same unit of work.
func (s *Service) Create(ctx context.Context, in CreateInput) (Sale, error) {
	if err := validateInput(in); err != nil {
		return Sale{}, err
	}
	cashierID, err := s.resolveCashier(ctx, in.CashierID, in.ActorID)
	if err != nil {
		return Sale{}, err
	}
	if in.CustomerID != nil {
		if _, err := s.customers.Get(ctx, *in.CustomerID); err != nil {
			return Sale{}, err
		}
	}

	var sale Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		if in.IdempotencyKey != "" && s.idempotency != nil {
			if err := s.idempotency.CheckAndInsert(ctx, in.IdempotencyKey, idempotencyModule); err != nil {
				return err
			}
		}

		products, err := s.resolveProducts(ctx, in.Items)
		if err != nil {
			return err
		}
		if err := s.checkStock(ctx, in.Items, products); err != nil {
			return err
		}

		sale = s.buildSale(in, cashierID, products)
		if err := s.repo.InsertSale(ctx, sale); err != nil {
			return err
		}

		actor := in.ActorID
		if actor == nil {
			actor = &cashierID
		}
		for _, item := range sale.Items {
			if _, err := s.ledger.AdjustStock(ctx, inventory.AdjustInput{
				ProductID: item.ProductID,
				Delta:     -item.Quantity,
				Reason:    stockReasonPrefix + sale.ID.String(),
				ActorID:   actor,
			}); err != nil {
				return err
			}
		}

		return s.audit.Record(ctx, shared.AuditRecord{
			Entity:      auditEntity,
			EntityID:    sale.ID.String(),
			Action:      auditActionCreate,
			PerformedBy: in.ActorID,
			At:          sale.SaleDate,
			Details: map[string]any{
				"total":         sale.TotalAmount.StringFixed(2),
				"items":         len(sale.Items),
				"paymentMethod": sale.PaymentMethod,
				"cashierId":     sale.CashierID.String(),
				"customerId":    uuidString(sale.CustomerID),
			},
		})
	})
	if err != nil {
		return Sale{}, err
	}

	s.logger.Info("sale completed",
		slog.String("sale_id", sale.ID.String()),
		slog.String("total", sale.TotalAmount.StringFixed(2)),
		slog.Int("items", len(sale.Items)))

	if s.hooks.SaleCompleted != nil {
		if err := s.hooks.SaleCompleted(ctx, sale); err != nil {
			s.logger.Warn("sale completed hook failed",
				slog.String("sale_id", sale.ID.String()),
				slog.Any("error", err))
		}
	}
	return sale, nil
}

// Get loads a sale with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return Sale{}, saleNotFound(id)
	}
	return sale, err
}

// ListByRange returns sales dated in [start, end).
func (s *Service) ListByRange(ctx context.Context, start, end time.Time) ([]Sale, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	return s.repo.ListSales(ctx, start, end)
}

func (s *Service) resolveCashier(ctx context.Context, explicit, actor *uuid.UUID) (uuid.UUID, error) {
	if explicit != nil {
		u, err := s.cashiers.Resolve(ctx, *explicit)
		if err != nil {
			return uuid.Nil, err
		}
		return u.ID, nil
	}
	if actor != nil {
		u, err := s.cashiers.Resolve(ctx, *actor)
		if err == nil {
			return u.ID, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return uuid.Nil, err
		}
	}
	return uuid.Nil, ErrCashierRequired
}

func (s *Service) resolveProducts(ctx context.Context, items []ItemInput) (map[uuid.UUID]catalog.Product, error) {
	products := make(map[uuid.UUID]catalog.Product, len(items))
	for _, item := range items {
		if _, ok := products[item.ProductID]; ok {
			continue
		}
		p, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		products[item.ProductID] = p
	}
	return products, nil
}

// checkStock locks every product in ascending id order and compares the
// aggregated request against the ledger.
func (s *Service) checkStock(ctx context.Context, items []ItemInput, products map[uuid.UUID]catalog.Product) error {
	requested := make(map[uuid.UUID]int64, len(products))
	for _, item := range items {
		requested[item.ProductID] += item.Quantity
	}
	ids := make([]uuid.UUID, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	for _, id := range ids {
		available, err := s.ledger.StockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if available < requested[id] {
			return inventory.InsufficientStock(products[id].SKU, available, requested[id])
		}
	}
	return nil
}

func (s *Service) buildSale(in CreateInput, cashierID uuid.UUID, products map[uuid.UUID]catalog.Product) Sale {
	now := s.clock.Now()
	sale := Sale{
		ID:             uuid.New(),
		Status:         StatusCompleted,
		SaleDate:       now,
		TaxAmount:      amountOrZero(in.Tax),
		DiscountAmount: amountOrZero(in.Discount),
		PaymentMethod:  in.PaymentMethod,
		CustomerID:     in.CustomerID,
		CashierID:      cashierID,
		CreatedAt:      now,
		Items:          make([]SaleItem, 0, len(in.Items)),
	}
	total := decimal.Zero
	for _, item := range in.Items {
		unit := products[item.ProductID].Price
		if item.UnitPrice != nil {
			unit = *item.UnitPrice
		}
		line := unit.Mul(decimal.NewFromInt(item.Quantity))
		sale.Items = append(sale.Items, SaleItem{
			ID:         uuid.New(),
			SaleID:     sale.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  unit,
			TotalPrice: line,
		})
		total = total.Add(line)
	}
	sale.TotalAmount = total
	return sale
}

func uuidString(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
