package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libreria-lumen/backoffice/internal/platform/db"
)

// Repository persists ledger movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// foldSQL mirrors Movement.Contribution.
const foldSQL = `COALESCE(SUM(CASE kind WHEN 'IN' THEN quantity WHEN 'OUT' THEN -quantity ELSE quantity END), 0)`

// WithTx runs fn inside the transaction carried by ctx, opening one if needed.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *Repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	return exists, err
}

// LockProduct takes the per-product row lock that serializes stock checks.
func (r *Repository) LockProduct(ctx context.Context, productID uuid.UUID) (bool, error) {
	var id uuid.UUID
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inventory: lock product: %w", err)
	}
	return true, nil
}

func (r *Repository) SumStock(ctx context.Context, productID uuid.UUID) (int64, error) {
	var stock int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+foldSQL+` FROM inventory_movements WHERE product_id = $1`, productID).Scan(&stock)
	return stock, err
}

func (r *Repository) SumStockBatch(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT product_id, `+foldSQL+` FROM inventory_movements WHERE product_id = ANY($1) GROUP BY product_id`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int64, len(productIDs))
	for _, id := range productIDs {
		out[id] = 0
	}
	for rows.Next() {
		var id uuid.UUID
		var stock int64
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, err
		}
		out[id] = stock
	}
	return out, rows.Err()
}

func (r *Repository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `INSERT INTO inventory_movements
		(id, product_id, kind, quantity, occurred_at, reference, notes, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ProductID, string(m.Kind), m.Quantity, m.OccurredAt, m.Reference, m.Notes, m.ActorID)
	return err
}

func (r *Repository) ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]Movement, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT id, product_id, kind, quantity, occurred_at, reference, notes, actor_id
		FROM inventory_movements WHERE product_id = $1
		ORDER BY occurred_at DESC, id DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.ProductID, &kind, &m.Quantity, &m.OccurredAt, &m.Reference, &m.Notes, &m.ActorID); err != nil {
			return nil, err
		}
		m.Kind = MovementKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}
