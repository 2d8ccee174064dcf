package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

const maxRange = 366 * 24 * time.Hour

// DailyTotal aggregates the sales of one UTC day.
type DailyTotal struct {
	Day            time.Time       `json:"day"`
	Sales          int             `json:"sales"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// WeeklyTotal aggregates the sales of one ISO week, Monday to Sunday.
type WeeklyTotal struct {
	WeekStart      time.Time       `json:"week_start"`
	WeekEnd        time.Time       `json:"week_end"`
	Sales          int             `json:"sales"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Repository aggregates sales dated in [start, end).
type Repository interface {
	DailyTotals(ctx context.Context, start, end time.Time) ([]DailyTotal, error)
	WeeklyTotals(ctx context.Context, start, end time.Time) ([]WeeklyTotal, error)
}

var errInvalidRange = shared.NewError(shared.ErrInvalidArgument, "INVALID_DATE_RANGE", "end must not be before start and the range may span at most one year")

// Service serves cached sales reports.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService builds Service. A nil cache serves straight from the repository.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Daily returns per-day totals for the days from start to end inclusive.
func (s *Service) Daily(ctx context.Context, start, end time.Time) ([]DailyTotal, error) {
	from, to, err := window(start, end)
	if err != nil {
		return nil, err
	}
	key, err := s.cache.BuildKey(ctx, "reports", "daily", from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	out := []DailyTotal{}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.DailyTotals(ctx, from, to)
	})
	return out, err
}

// Weekly returns per-week totals for the weeks touching start to end
// inclusive.
func (s *Service) Weekly(ctx context.Context, start, end time.Time) ([]WeeklyTotal, error) {
	from, to, err := window(start, end)
	if err != nil {
		return nil, err
	}
	key, err := s.cache.BuildKey(ctx, "reports", "weekly", from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	out := []WeeklyTotal{}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.WeeklyTotals(ctx, from, to)
	})
	return out, err
}

// OnSaleCompleted invalidates cached reports. It is installed as the sale
// engine's completion hook.
func (s *Service) OnSaleCompleted(ctx context.Context, sale sales.Sale) error {
	if err := s.cache.Bump(ctx); err != nil {
		return err
	}
	s.logger.Debug("reports cache invalidated", slog.String("sale_id", sale.ID.String()))
	return nil
}

// window turns an inclusive date range into the half-open instant range
// [start, end+1day).
func window(start, end time.Time) (time.Time, time.Time, error) {
	from := truncateDay(start)
	to := truncateDay(end).AddDate(0, 0, 1)
	if to.Before(from.AddDate(0, 0, 1)) || to.Sub(from) > maxRange {
		return time.Time{}, time.Time{}, errInvalidRange
	}
	return from, to, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of t's ISO week.
func WeekStart(t time.Time) time.Time {
	day := truncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
