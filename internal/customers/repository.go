package customers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libreria-lumen/backoffice/internal/platform/db"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

const customerColumns = `id, dni, first_name, last_name, email, phone, notes, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.DNI, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Customer, error) {
	return scanCustomer(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

func (r *repository) GetByDNI(ctx context.Context, dni string, forUpdate bool) (Customer, error) {
	conn := db.Conn(ctx, r.pool)
	query := `SELECT ` + customerColumns + ` FROM customers WHERE dni = $1`
	if forUpdate {
		// Row locks cannot cover a DNI that does not exist yet; the advisory
		// lock serialises concurrent first inserts until the tx ends.
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('customer-dni:' || $1))`, dni); err != nil {
			return Customer{}, err
		}
		query += ` FOR UPDATE`
	}
	return scanCustomer(conn.QueryRow(ctx, query, dni))
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (dni ILIKE $` + n + ` OR first_name ILIKE $` + n + ` OR last_name ILIKE $` + n + ` OR email ILIKE $` + n + `)`
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	args = append(args, filters.Limit, (filters.Page-1)*filters.Limit)
	query := `SELECT ` + customerColumns + ` FROM customers` + where +
		` ORDER BY last_name, first_name LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Customer) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.DNI, c.FirstName, c.LastName, c.Email, c.Phone, c.Notes, c.CreatedAt, c.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return shared.ErrConflict
	}
	return err
}

var updatableColumns = map[string]struct{}{
	"dni": {}, "first_name": {}, "last_name": {}, "email": {}, "phone": {}, "notes": {}, "updated_at": {},
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		if _, ok := updatableColumns[k]; !ok {
			return fmt.Errorf("customers: column %q is not updatable", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = $%d", k, i+1))
		args = append(args, updates[k])
	}
	args = append(args, id)
	query := `UPDATE customers SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + strconv.Itoa(len(args))

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if db.IsUniqueViolation(err) {
		return shared.ErrConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return shared.ErrConflict
	}
	return err
}
