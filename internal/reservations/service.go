package reservations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/inventory"
	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// Repository persists reservations. Missing rows are reported with
// shared.ErrNotFound.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, r Reservation) error
	Get(ctx context.Context, id uuid.UUID, forUpdate bool) (Reservation, error)
	GetByCode(ctx context.Context, code string) (Reservation, error)
	List(ctx context.Context, filters ListFilters) ([]Reservation, int, error)
	Update(ctx context.Context, r Reservation) error
	// LockOverdue returns open reservations whose deadline passed before
	// now, skipping rows locked by other transactions.
	LockOverdue(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
	MarkExpired(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// ProductLookup resolves catalog products.
type ProductLookup interface {
	GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// CustomerResolver finds or upserts the reserving customer.
type CustomerResolver interface {
	Get(ctx context.Context, id uuid.UUID) (customers.Customer, error)
	UpsertByDNI(ctx context.Context, d customers.Data, actor *uuid.UUID) (customers.Customer, error)
}

// StockLedger is the part of the inventory ledger pickups consume.
type StockLedger interface {
	StockForUpdate(ctx context.Context, productID uuid.UUID) (int64, error)
	AdjustStock(ctx context.Context, input inventory.AdjustInput) (int64, error)
}

// SaleCreator commits the sale recorded on pickup.
type SaleCreator interface {
	Create(ctx context.Context, in sales.CreateInput) (sales.Sale, error)
}

// Deps bundles the collaborators of Service.
type Deps struct {
	Repo      Repository
	Products  ProductLookup
	Customers CustomerResolver
	Ledger    StockLedger
	Sales     SaleCreator
	Audit     shared.AuditSink
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Service drives the reservation lifecycle.
type Service struct {
	repo      Repository
	products  ProductLookup
	customers CustomerResolver
	ledger    StockLedger
	sales     SaleCreator
	audit     shared.AuditSink
	clock     clock.Clock
	logger    *slog.Logger

	batchSize int
	newCode   func() string
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
		repo:      d.Repo,
		products:  d.Products,
		customers: d.Customers,
		ledger:    d.Ledger,
		sales:     d.Sales,
		audit:     d.Audit,
		clock:     d.Clock,
		logger:    d.Logger,
		batchSize: expireBatchSize,
		newCode:   newCode,
	}
}

// Create registers a PENDING reservation with frozen prices. Stock is not
// touched until pickup.
func (s *Service) Create(ctx context.Context, in CreateInput) (Reservation, error) {
	if len(in.Items) == 0 {
		return Reservation{}, ErrItemsRequired
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return Reservation{}, ErrInvalidQuantity
		}
	}
	if in.CustomerID == nil && in.Customer == nil {
		return Reservation{}, ErrCustomerDataRequired
	}
	now := s.clock.Now()
	if in.PickupDeadline != nil && !in.PickupDeadline.After(now) {
		return Reservation{}, ErrDeadlineInvalid
	}

	var out Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		customer, err := s.resolveCustomer(ctx, in)
		if err != nil {
			return err
		}

		code, err := s.uniqueCode(ctx)
		if err != nil {
			return err
		}
		res := Reservation{
			ID:         uuid.New(),
			Code:       code,
			Status:     StatusPending,
			CustomerID: customer.ID,
			ReservedAt: now,
			ExpiresAt:  in.PickupDeadline,
			Notes:      in.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
			Items:      make([]Item, 0, len(in.Items)),
		}
		total := decimal.Zero
		for _, it := range in.Items {
			p, err := s.products.GetProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			line := p.Price.Mul(decimal.NewFromInt(it.Quantity))
			res.Items = append(res.Items, Item{
				ID:            uuid.New(),
				ReservationID: res.ID,
				ProductID:     p.ID,
				Quantity:      it.Quantity,
				UnitPrice:     p.Price,
				TotalPrice:    line,
			})
			total = total.Add(line)
		}
		res.TotalAmount = total

		if err := s.repo.Insert(ctx, res); err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return ErrCodeConflict
			}
			return fmt.Errorf("reservations: insert: %w", err)
		}

		source := SourcePublic
		if in.ActorID != nil {
			source = SourceInternal
		}
		out = res
		return s.record(ctx, res, actionCreate, "", in.ActorID, map[string]any{
			"total":       res.TotalAmount.StringFixed(2),
			"customerDni": customer.DNI,
			"source":      source,
		})
	})
	if err != nil {
		return Reservation{}, err
	}
	return out, nil
}

// uniqueCode draws codes until one is free. A collision at insert time can
// still happen under a concurrent create and surfaces as ErrCodeConflict.
func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := s.newCode()
		_, err := s.repo.GetByCode(ctx, code)
		if errors.Is(err, shared.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrCodeConflict
}

// Accept moves a PENDING reservation to RESERVED.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (Reservation, error) {
	return s.transition(ctx, id, func(ctx context.Context, res *Reservation) (string, map[string]any, error) {
		if res.Status != StatusPending {
			return "", nil, ErrNotPending
		}
		res.Status = StatusReserved
		return actionAccept, nil, nil
	}, actor)
}

// ConfirmPickup fulfils a RESERVED reservation, either through the sale
// engine or by debiting stock directly, and completes it.
func (s *Service) ConfirmPickup(ctx context.Context, id uuid.UUID, createSale bool, actor *uuid.UUID) (Reservation, error) {
	return s.transition(ctx, id, func(ctx context.Context, res *Reservation) (string, map[string]any, error) {
		if res.Status.Closed() {
			return "", nil, ErrAlreadyClosed
		}
		if res.Status != StatusReserved {
			return "", nil, ErrNotReserved
		}
		if err := s.checkStock(ctx, res.Items); err != nil {
			return "", nil, err
		}

		details := map[string]any{"createSale": createSale}
		if createSale {
			if s.sales == nil {
				return "", nil, errors.New("reservations: sale engine not configured")
			}
			sale, err := s.sales.Create(ctx, saleFromReservation(*res, actor))
			if err != nil {
				return "", nil, err
			}
			res.SaleID = &sale.ID
			details["saleId"] = sale.ID.String()
		} else {
			for _, item := range res.Items {
				if _, err := s.ledger.AdjustStock(ctx, inventory.AdjustInput{
					ProductID: item.ProductID,
					Delta:     -item.Quantity,
					Reason:    pickupStockReason,
					ActorID:   actor,
				}); err != nil {
					return "", nil, err
				}
			}
			details["saleId"] = nil
		}
		res.Status = StatusCompleted
		return actionConfirm, details, nil
	}, actor)
}

// Cancel closes an open reservation, storing reason in its notes.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, actor *uuid.UUID) (Reservation, error) {
	return s.transition(ctx, id, func(ctx context.Context, res *Reservation) (string, map[string]any, error) {
		switch res.Status {
		case StatusCompleted, StatusExpired:
			return "", nil, ErrAlreadyCompleted
		case StatusCancelled:
			return "", nil, ErrAlreadyClosed
		}
		res.Status = StatusCancelled
		res.Notes = reason
		return actionCancel, map[string]any{"reason": reason}, nil
	}, actor)
}

// ExpireOverdue marks every open reservation past its deadline as EXPIRED
// and returns how many were expired. Each batch commits on its own; rows held
// by concurrent transactions are left for the next sweep.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	var total int
	for {
		n, err := s.expireBatch(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batchSize {
			return total, nil
		}
	}
}

func (s *Service) expireBatch(ctx context.Context) (int, error) {
	var expired int
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		due, err := s.repo.LockOverdue(ctx, now, s.batchSize)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(due))
		for _, res := range due {
			previous := res.Status
			res.Status = StatusExpired
			res.UpdatedAt = now
			if err := s.record(ctx, res, actionExpire, previous, nil, map[string]any{
				"expiredAt": now.Format(time.RFC3339),
			}); err != nil {
				return err
			}
			ids = append(ids, res.ID)
		}
		if err := s.repo.MarkExpired(ctx, ids, now); err != nil {
			return fmt.Errorf("reservations: mark expired: %w", err)
		}
		expired = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// Get loads a reservation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Reservation, error) {
	res, err := s.repo.Get(ctx, id, false)
	if errors.Is(err, shared.ErrNotFound) {
		return Reservation{}, notFound(id.String())
	}
	return res, err
}

// GetByCode loads a reservation by its public code.
func (s *Service) GetByCode(ctx context.Context, code string) (Reservation, error) {
	res, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, shared.ErrNotFound) {
		return Reservation{}, notFound(code)
	}
	return res, err
}

// List returns reservations newest first.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Reservation, shared.Pagination, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, shared.Pagination{}, ErrInvalidStatus
	}
	filters.Page, filters.Limit = shared.NormalizePage(filters.Page, filters.Limit)
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

type transitionFunc func(ctx context.Context, res *Reservation) (action string, details map[string]any, err error)

// transition locks the reservation, applies fn, then persists and audits the
// change in one unit of work.
func (s *Service) transition(ctx context.Context, id uuid.UUID, fn transitionFunc, actor *uuid.UUID) (Reservation, error) {
	var out Reservation
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		res, err := s.repo.Get(ctx, id, true)
		if errors.Is(err, shared.ErrNotFound) {
			return notFound(id.String())
		}
		if err != nil {
			return err
		}
		previous := res.Status
		action, details, err := fn(ctx, &res)
		if err != nil {
			return err
		}
		res.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, res); err != nil {
			return fmt.Errorf("reservations: update: %w", err)
		}
		out = res
		return s.record(ctx, res, action, previous, actor, details)
	})
	if err != nil {
		return Reservation{}, err
	}
	s.logger.Info("reservation transitioned",
		slog.String("reservation_id", out.ID.String()),
		slog.String("status", string(out.Status)))
	return out, nil
}

func (s *Service) resolveCustomer(ctx context.Context, in CreateInput) (customers.Customer, error) {
	if in.CustomerID != nil {
		return s.customers.Get(ctx, *in.CustomerID)
	}
	return s.customers.UpsertByDNI(ctx, *in.Customer, in.ActorID)
}

// checkStock locks each reserved product in ascending id order and verifies
// the ledger covers the reserved quantity.
func (s *Service) checkStock(ctx context.Context, items []Item) error {
	requested := make(map[uuid.UUID]int64, len(items))
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
			label := id.String()
			if p, err := s.products.GetProduct(ctx, id); err == nil {
				label = p.SKU
			}
			return inventory.InsufficientStock(label, available, requested[id])
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, res Reservation, action string, previous Status, actor *uuid.UUID, extra map[string]any) error {
	details := map[string]any{
		"reservationId": res.ID.String(),
		"code":          res.Code,
		"status":        string(res.Status),
		"customerId":    res.CustomerID.String(),
	}
	if previous != "" {
		details["previousStatus"] = string(previous)
	}
	for k, v := range extra {
		details[k] = v
	}
	return s.audit.Record(ctx, shared.AuditRecord{
		Entity:      auditEntity,
		EntityID:    res.ID.String(),
		Action:      action,
		PerformedBy: actor,
		At:          s.clock.Now(),
		Details:     details,
	})
}

func saleFromReservation(res Reservation, actor *uuid.UUID) sales.CreateInput {
	items := make([]sales.ItemInput, 0, len(res.Items))
	for _, item := range res.Items {
		price := item.UnitPrice
		items = append(items, sales.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: &price,
		})
	}
	customerID := res.CustomerID
	return sales.CreateInput{
		Items:         items,
		PaymentMethod: sales.PaymentReservation,
		CustomerID:    &customerID,
		ActorID:       actor,
	}
}
