package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository aggregates the sales table.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const dailySQL = `
SELECT (sale_date AT TIME ZONE 'UTC')::date AS day,
       COUNT(*),
       COALESCE(SUM(total_amount), 0),
       COALESCE(SUM(tax_amount), 0),
       COALESCE(SUM(discount_amount), 0)
FROM sales
WHERE sale_date >= $1 AND sale_date < $2
GROUP BY day
ORDER BY day`

// date_trunc('week') starts weeks on Monday.
const weeklySQL = `
SELECT date_trunc('week', sale_date AT TIME ZONE 'UTC')::date AS week_start,
       COUNT(*),
       COALESCE(SUM(total_amount), 0),
       COALESCE(SUM(tax_amount), 0),
       COALESCE(SUM(discount_amount), 0)
FROM sales
WHERE sale_date >= $1 AND sale_date < $2
GROUP BY week_start
ORDER BY week_start`

func (r *PgRepository) DailyTotals(ctx context.Context, start, end time.Time) ([]DailyTotal, error) {
	rows, err := r.pool.Query(ctx, dailySQL, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DailyTotal{}
	for rows.Next() {
		var d DailyTotal
		if err := rows.Scan(&d.Day, &d.Sales, &d.TotalAmount, &d.TaxAmount, &d.DiscountAmount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PgRepository) WeeklyTotals(ctx context.Context, start, end time.Time) ([]WeeklyTotal, error) {
	rows, err := r.pool.Query(ctx, weeklySQL, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []WeeklyTotal{}
	for rows.Next() {
		var w WeeklyTotal
		if err := rows.Scan(&w.WeekStart, &w.Sales, &w.TotalAmount, &w.TaxAmount, &w.DiscountAmount); err != nil {
			return nil, err
		}
		w.WeekEnd = w.WeekStart.AddDate(0, 0, 6)
		out = append(out, w)
	}
	return out, rows.Err()
}
