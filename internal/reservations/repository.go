package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libreria-lumen/backoffice/internal/platform/db"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// PgRepository stores reservations in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const reservationColumns = `id, code, status, customer_id, total_amount, reserved_at, expires_at, notes, sale_id, created_at, updated_at`

// Items keep the order they were reserved in through line_no.
const (
	insertItemSQL = `INSERT INTO reservation_items (id, reservation_id, line_no, product_id, quantity, unit_price, total_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	selectItemsSQL = `SELECT id, reservation_id, product_id, quantity, unit_price, total_price
		FROM reservation_items WHERE reservation_id = ANY($1) ORDER BY reservation_id, line_no`
)

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *PgRepository) Insert(ctx context.Context, res Reservation) error {
	conn := db.Conn(ctx, r.pool)
	_, err := conn.Exec(ctx, `INSERT INTO reservations (`+reservationColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		res.ID, res.Code, res.Status, res.CustomerID, res.TotalAmount, res.ReservedAt, res.ExpiresAt,
		res.Notes, res.SaleID, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}

	batch := &pgx.Batch{}
	for i, item := range res.Items {
		batch.Queue(insertItemSQL, item.ID, res.ID, i+1, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice)
	}
	results := conn.SendBatch(ctx, batch)
	for range res.Items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert reservation item: %w", err)
		}
	}
	return results.Close()
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID, forUpdate bool) (Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.getOne(ctx, query, id)
}

func (r *PgRepository) GetByCode(ctx context.Context, code string) (Reservation, error) {
	return r.getOne(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE code = $1`, code)
}

func (r *PgRepository) getOne(ctx context.Context, query string, arg any) (Reservation, error) {
	res, err := scanReservation(db.Conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, shared.ErrNotFound
	}
	if err != nil {
		return Reservation{}, err
	}
	items, err := r.loadItems(ctx, []uuid.UUID{res.ID})
	if err != nil {
		return Reservation{}, err
	}
	res.Items = items[res.ID]
	return res, nil
}

func (r *PgRepository) List(ctx context.Context, filters ListFilters) ([]Reservation, int, error) {
	conn := db.Conn(ctx, r.pool)
	where, args := "", []any{}
	if filters.Status != "" {
		where = ` WHERE status = $1`
		args = append(args, filters.Status)
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM reservations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filters.Page - 1) * filters.Limit
	args = append(args, filters.Limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM reservations%s ORDER BY reserved_at DESC LIMIT $%d OFFSET $%d`,
		reservationColumns, where, len(args)-1, len(args))
	out, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PgRepository) Update(ctx context.Context, res Reservation) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE reservations SET status = $1, notes = $2, sale_id = $3, updated_at = $4 WHERE id = $5`,
		res.Status, res.Notes, res.SaleID, res.UpdatedAt, res.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PgRepository) LockOverdue(ctx context.Context, now time.Time, limit int) ([]Reservation, error) {
	return r.queryMany(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE status IN ('PENDING', 'RESERVED') AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
}

func (r *PgRepository) MarkExpired(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE reservations SET status = 'EXPIRED', updated_at = $1 WHERE id = ANY($2)`, at, ids)
	return err
}

func (r *PgRepository) queryMany(ctx context.Context, query string, args ...any) ([]Reservation, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	var ids []uuid.UUID
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
		ids = append(ids, res.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *PgRepository) loadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]Item, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, selectItemsSQL, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]Item, len(ids))
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ReservationID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		out[it.ReservationID] = append(out[it.ReservationID], it)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (Reservation, error) {
	var res Reservation
	err := row.Scan(&res.ID, &res.Code, &res.Status, &res.CustomerID, &res.TotalAmount, &res.ReservedAt,
		&res.ExpiresAt, &res.Notes, &res.SaleID, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}
