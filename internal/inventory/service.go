package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// RepositoryPort abstracts ledger persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
	LockProduct(ctx context.Context, productID uuid.UUID) (bool, error)
	SumStock(ctx context.Context, productID uuid.UUID) (int64, error)
	SumStockBatch(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	InsertMovement(ctx context.Context, m Movement) error
	ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]Movement, error)
}

// Service is the inventory ledger. Stock is never stored; it is always the
// fold of the product's movements.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditSink
	clock  clock.Clock
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit shared.AuditSink, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, clock: clk, logger: logger}
}

// CurrentStock returns the net stock of productID.
func (s *Service) CurrentStock(ctx context.Context, productID uuid.UUID) (int64, error) {
	ok, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ProductNotFound(productID)
	}
	return s.repo.SumStock(ctx, productID)
}

// StockLevels returns the stock of every id in one round trip. Unknown ids
// map to zero.
func (s *Service) StockLevels(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]int64{}, nil
	}
	return s.repo.SumStockBatch(ctx, productIDs)
}

// StockForUpdate locks productID for the rest of the caller's transaction and
// returns its stock. Check-then-debit callers must run both steps in the same
// unit of work.
func (s *Service) StockForUpdate(ctx context.Context, productID uuid.UUID) (int64, error) {
	var stock int64
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		found, err := s.repo.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !found {
			return ProductNotFound(productID)
		}
		stock, err = s.repo.SumStock(ctx, productID)
		return err
	})
	return stock, err
}

// AdjustStock appends an IN (delta > 0) or OUT (delta < 0) movement and
// returns the new stock. It never refuses to go negative; callers that sell
// check availability first.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (int64, error) {
	if input.Delta == 0 {
		return 0, ErrInvalidDelta
	}
	kind, qty := MovementIn, input.Delta
	if input.Delta < 0 {
		kind, qty = MovementOut, -input.Delta
	}
	mv := Movement{
		ID:         uuid.New(),
		ProductID:  input.ProductID,
		Kind:       kind,
		Quantity:   qty,
		OccurredAt: s.clock.Now(),
		Reference:  input.Reason,
		Notes:      actorNote(input.ActorID),
		ActorID:    input.ActorID,
	}

	var stock int64
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		stock, err = s.append(ctx, mv)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, shared.AuditRecord{
			Entity:      auditEntity,
			EntityID:    input.ProductID.String(),
			Action:      auditActionAdjust,
			PerformedBy: input.ActorID,
			At:          mv.OccurredAt,
			Details: map[string]any{
				"delta":      input.Delta,
				"stock":      stock,
				"movementId": mv.ID.String(),
				"reason":     input.Reason,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// Reconcile records a physical count as an ADJUSTMENT carrying the signed
// difference. A count matching the ledger records nothing.
func (s *Service) Reconcile(ctx context.Context, input ReconcileInput) (int64, error) {
	if input.Counted < 0 {
		return 0, ErrInvalidCounted
	}
	var stock int64
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.StockForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		diff := input.Counted - current
		if diff == 0 {
			stock = current
			return nil
		}
		mv := Movement{
			ID:         uuid.New(),
			ProductID:  input.ProductID,
			Kind:       MovementAdjustment,
			Quantity:   diff,
			OccurredAt: s.clock.Now(),
			Reference:  input.Reason,
			Notes:      actorNote(input.ActorID),
			ActorID:    input.ActorID,
		}
		if err := s.repo.InsertMovement(ctx, mv); err != nil {
			return fmt.Errorf("inventory: insert movement: %w", err)
		}
		if stock, err = s.repo.SumStock(ctx, input.ProductID); err != nil {
			return err
		}
		return s.audit.Record(ctx, shared.AuditRecord{
			Entity:      auditEntity,
			EntityID:    input.ProductID.String(),
			Action:      auditActionReconcile,
			PerformedBy: input.ActorID,
			At:          mv.OccurredAt,
			Details: map[string]any{
				"previous":   current,
				"counted":    input.Counted,
				"difference": diff,
				"movementId": mv.ID.String(),
				"reason":     input.Reason,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return stock, nil
}

// History lists the newest movements of productID.
func (s *Service) History(ctx context.Context, productID uuid.UUID, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ok, err := s.repo.ProductExists(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ProductNotFound(productID)
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

func (s *Service) append(ctx context.Context, mv Movement) (int64, error) {
	found, err := s.repo.LockProduct(ctx, mv.ProductID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ProductNotFound(mv.ProductID)
	}
	if err := s.repo.InsertMovement(ctx, mv); err != nil {
		return 0, fmt.Errorf("inventory: insert movement: %w", err)
	}
	stock, err := s.repo.SumStock(ctx, mv.ProductID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("inventory movement appended",
		slog.String("product_id", mv.ProductID.String()),
		slog.String("kind", string(mv.Kind)),
		slog.Int64("quantity", mv.Quantity),
		slog.Int64("stock", stock))
	return stock, nil
}
