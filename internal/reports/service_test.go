package reports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

type countingRepo struct {
	daily  atomic.Int32
	weekly atomic.Int32
	gate   chan struct{}
}

func (r *countingRepo) DailyTotals(_ context.Context, start, _ time.Time) ([]DailyTotal, error) {
	r.daily.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	return []DailyTotal{{Day: start, Sales: 2, TotalAmount: decimal.RequireFromString("55.00")}}, nil
}

func (r *countingRepo) WeeklyTotals(_ context.Context, start, _ time.Time) ([]WeeklyTotal, error) {
	r.weekly.Add(1)
	ws := WeekStart(start)
	return []WeeklyTotal{{WeekStart: ws, WeekEnd: ws.AddDate(0, 0, 6), Sales: 1, TotalAmount: decimal.NewFromInt(10)}}, nil
}

func newCachedService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute), nil)
}

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestDailyServedFromCacheUntilSaleCompletes(t *testing.T) {
	repo := &countingRepo{}
	svc := newCachedService(t, repo)
	ctx := context.Background()

	first, err := svc.Daily(ctx, day("2026-03-01"), day("2026-03-07"))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, first[0].TotalAmount.Equal(decimal.RequireFromString("55")))

	_, err = svc.Daily(ctx, day("2026-03-01"), day("2026-03-07"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, repo.daily.Load(), "second read should hit the cache")

	require.NoError(t, svc.OnSaleCompleted(ctx, sales.Sale{ID: uuid.New()}))

	_, err = svc.Daily(ctx, day("2026-03-01"), day("2026-03-07"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, repo.daily.Load(), "bump should invalidate cached totals")
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	repo := &countingRepo{gate: make(chan struct{})}
	svc := newCachedService(t, repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Daily(ctx, day("2026-03-01"), day("2026-03-01"))
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return repo.daily.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()
	assert.EqualValues(t, 1, repo.daily.Load())
}

func TestWeeklyUsesMondayWeeks(t *testing.T) {
	svc := NewService(&countingRepo{}, nil, nil)
	totals, err := svc.Weekly(context.Background(), day("2026-03-04"), day("2026-03-20"))
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, time.Monday, totals[0].WeekStart.Weekday())
	assert.Equal(t, time.Sunday, totals[0].WeekEnd.Weekday())
}

func TestRangeValidation(t *testing.T) {
	svc := NewService(&countingRepo{}, nil, nil)
	_, err := svc.Daily(context.Background(), day("2026-03-10"), day("2026-03-01"))
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.Daily(context.Background(), day("2024-01-01"), day("2026-03-01"))
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.Daily(context.Background(), day("2026-03-01"), day("2026-03-01"))
	require.NoError(t, err)
}
