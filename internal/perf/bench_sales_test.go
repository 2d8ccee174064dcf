package perf

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/testing/fixture"
)

func TestCheckoutLatencyTargets(t *testing.T) {
	env := fixture.New(t, fixture.LenientAudit())
	book := env.Product("978-PERF-1", "39.90", 10_000)
	notebook := env.Product("PAP-PERF-2", "4.50", 10_000)
	cashier := env.Employee.ID

	samples := make([]time.Duration, 0, 200)
	for i := 0; i < cap(samples); i++ {
		start := time.Now()
		_, err := env.Sales.Create(context.Background(), sales.CreateInput{
			Items: []sales.ItemInput{
				{ProductID: book.ID, Quantity: 1},
				{ProductID: notebook.ID, Quantity: 3},
			},
			PaymentMethod: "CASH",
			CashierID:     &cashier,
		})
		if err != nil {
			t.Fatalf("sale %d: %v", i, err)
		}
		samples = append(samples, time.Since(start))
	}

	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("checkout latency regression: p95=%s", p95)
	}
	if got := env.Stock(t, book.ID); got != 10_000-200 {
		t.Fatalf("book stock = %d, want %d", got, 10_000-200)
	}
}

func BenchmarkCheckout(b *testing.B) {
	env := fixture.New(b, fixture.LenientAudit())
	book := env.Product("978-BENCH-1", "25.00", int64(b.N)+1)
	cashier := env.Employee.ID
	in := sales.CreateInput{
		Items:         []sales.ItemInput{{ProductID: book.ID, Quantity: 1}},
		PaymentMethod: "CARD",
		CashierID:     &cashier,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.Sales.Create(context.Background(), in); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
