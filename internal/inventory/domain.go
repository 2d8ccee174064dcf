package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/shared"
)

// MovementKind tags a ledger movement.
type MovementKind string

const (
	// MovementIn adds Quantity units.
	MovementIn MovementKind = "IN"
	// MovementOut removes Quantity units.
	MovementOut MovementKind = "OUT"
	// MovementAdjustment applies a signed correction from a physical count.
	MovementAdjustment MovementKind = "ADJUSTMENT"
)

// Valid reports whether k is a known kind.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// Movement is one append-only ledger entry. IN and OUT carry a positive
// magnitude; ADJUSTMENT carries a signed quantity.
type Movement struct {
	ID         uuid.UUID    `json:"id"`
	ProductID  uuid.UUID    `json:"product_id"`
	Kind       MovementKind `json:"kind"`
	Quantity   int64        `json:"quantity"`
	OccurredAt time.Time    `json:"occurred_at"`
	Reference  string       `json:"reference"`
	Notes      string       `json:"notes,omitempty"`
	ActorID    *uuid.UUID   `json:"actor_id,omitempty"`
}

// Contribution returns the signed effect of m on stock.
func (m Movement) Contribution() int64 {
	switch m.Kind {
	case MovementIn:
		return m.Quantity
	case MovementOut:
		return -m.Quantity
	case MovementAdjustment:
		return m.Quantity
	}
	return 0
}

// Fold computes stock from a movement history.
func Fold(movements []Movement) int64 {
	var stock int64
	for _, m := range movements {
		stock += m.Contribution()
	}
	return stock
}

// AdjustInput describes a manual or derived stock change.
type AdjustInput struct {
	ProductID uuid.UUID
	Delta     int64
	Reason    string
	ActorID   *uuid.UUID
}

// ReconcileInput records the outcome of a physical count.
type ReconcileInput struct {
	ProductID uuid.UUID
	Counted   int64
	Reason    string
	ActorID   *uuid.UUID
}

// Audit vocabulary.
const (
	auditEntity          = "Inventory"
	auditActionAdjust    = "ADJUST_STOCK"
	auditActionReconcile = "RECONCILE_STOCK"
)

// ErrInvalidDelta rejects zero adjustments.
var ErrInvalidDelta = shared.NewError(shared.ErrInvalidArgument, "INVALID_STOCK_DELTA", "stock delta must be non-zero")

// ErrInvalidCounted rejects negative physical counts.
var ErrInvalidCounted = shared.NewError(shared.ErrInvalidArgument, "INVALID_COUNTED_QUANTITY", "counted quantity must be >= 0")

// ProductNotFound builds the not-found error for id.
func ProductNotFound(id uuid.UUID) error {
	return shared.Errorf(shared.ErrNotFound, "PRODUCT_NOT_FOUND", "product %s not found", id)
}

// InsufficientStock builds the shortfall error callers raise after a check.
func InsufficientStock(label string, available, requested int64) error {
	return shared.Errorf(shared.ErrInsufficientStock, "INSUFFICIENT_STOCK",
		"insufficient stock for %s: available %d, requested %d", label, available, requested)
}

func actorNote(actor *uuid.UUID) string {
	if actor == nil {
		return ""
	}
	return fmt.Sprintf("actor=%s", actor)
}
