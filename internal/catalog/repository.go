package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libreria-lumen/backoffice/internal/platform/db"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL catalog repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return shared.ErrNotFound
	case db.IsUniqueViolation(err), db.IsForeignKeyViolation(err):
		return shared.ErrConflict
	}
	return err
}

const categoryColumns = `id, name, description, active, created_at, updated_at`

func (r *repository) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name ASC`
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	var c Category
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, translate(err)
}

func (r *repository) CreateCategory(ctx context.Context, c Category) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Description, c.Active, c.CreatedAt, c.UpdatedAt)
	return translate(err)
}

func (r *repository) UpdateCategory(ctx context.Context, c Category) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE categories SET name = $1, description = $2, active = $3, updated_at = $4 WHERE id = $5`,
		c.Name, c.Description, c.Active, c.UpdatedAt, c.ID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	return translate(err)
}

const productColumns = `id, sku, isbn, title, author, description, price, active, category_id, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.ISBN, &p.Title, &p.Author, &p.Description, &p.Price, &p.Active, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filters.CategoryID != nil {
		args = append(args, *filters.CategoryID)
		where += ` AND category_id = $` + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (title ILIKE $` + n + ` OR author ILIKE $` + n + ` OR sku ILIKE $` + n + ` OR isbn ILIKE $` + n + `)`
	}
	if filters.Active != nil {
		args = append(args, *filters.Active)
		where += ` AND active = $` + strconv.Itoa(len(args))
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, filters.Limit, offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	return p, translate(err)
}

func (r *repository) CreateProduct(ctx context.Context, p Product) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.SKU, p.ISBN, p.Title, p.Author, p.Description, p.Price, p.Active, p.CategoryID, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

func (r *repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE products SET sku = $1, isbn = $2, title = $3, author = $4,
		description = $5, price = $6, active = $7, category_id = $8, updated_at = $9 WHERE id = $10`,
		p.SKU, p.ISBN, p.Title, p.Author, p.Description, p.Price, p.Active, p.CategoryID, p.UpdatedAt, p.ID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return translate(err)
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku " + dir
	case "author":
		return "author " + dir + ", title ASC"
	case "price":
		return "price " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "title " + dir
	}
}
