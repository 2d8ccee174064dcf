package sales

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

// PgRepository stores sales in PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const saleColumns = `id, status, sale_date, total_amount, tax_amount, discount_amount, payment_method, customer_id, cashier_id, created_at`

// WithTx runs fn inside the transaction carried by ctx, opening one if needed.
func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

// Sale lines are read back in ticket order via line_no.
const (
	insertItemSQL = `INSERT INTO sale_items (id, sale_id, line_no, product_id, quantity, unit_price, total_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	selectItemsSQL = `SELECT id, sale_id, product_id, quantity, unit_price, total_price
		FROM sale_items WHERE sale_id = ANY($1) ORDER BY sale_id, line_no`
)

// InsertSale writes the header and every item.
func (r *PgRepository) InsertSale(ctx context.Context, sale Sale) error {
	conn := db.Conn(ctx, r.pool)
	_, err := conn.Exec(ctx, `INSERT INTO sales (`+saleColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sale.ID, sale.Status, sale.SaleDate, sale.TotalAmount, sale.TaxAmount, sale.DiscountAmount,
		sale.PaymentMethod, sale.CustomerID, sale.CashierID, sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("sales: insert sale: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range sale.Items {
		batch.Queue(insertItemSQL, item.ID, sale.ID, i+1, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice)
	}
	results := conn.SendBatch(ctx, batch)
	for range sale.Items {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("sales: insert item: %w", err)
		}
	}
	return results.Close()
}

func (r *PgRepository) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	conn := db.Conn(ctx, r.pool)
	sale, err := scanSale(conn.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.ErrNotFound
	}
	if err != nil {
		return Sale{}, err
	}
	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return Sale{}, err
	}
	sale.Items = items[id]
	return sale, nil
}

func (r *PgRepository) ListSales(ctx context.Context, start, end time.Time) ([]Sale, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE sale_date >= $1 AND sale_date < $2 ORDER BY sale_date`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	var ids []uuid.UUID
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
		ids = append(ids, sale.ID)
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

func (r *PgRepository) loadItems(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID][]SaleItem, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, selectItemsSQL, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]SaleItem, len(saleIDs))
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		out[it.SaleID] = append(out[it.SaleID], it)
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Status, &s.SaleDate, &s.TotalAmount, &s.TaxAmount, &s.DiscountAmount,
		&s.PaymentMethod, &s.CustomerID, &s.CashierID, &s.CreatedAt)
	return s, err
}
