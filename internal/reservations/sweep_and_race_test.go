package reservations_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/reservations"
	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/testing/fixture"
)

func TestExpireOverdueDrainsBacklogLargerThanOneBatch(t *testing.T) {
	env := fixture.New(t, fixture.LenientAudit())
	customer := env.Customer("40999000")
	past := fixture.Epoch.Add(-time.Minute)

	total := reservations.ExpireBatchSize + 1
	for i := 0; i < total; i++ {
		env.Store.SeedReservation(reservations.Reservation{
			Code: fmt.Sprintf("RSV-B%07d", i), Status: reservations.StatusPending,
			CustomerID: customer.ID, ReservedAt: fixture.Epoch.Add(-time.Hour), ExpiresAt: &past,
		})
	}

	n, err := env.Reservations.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, total, n)

	open, _, err := env.Reservations.List(context.Background(), reservations.ListFilters{Status: reservations.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, open)
}

// Pickup and a walk-in sale compete for the same last units; only one may
// take them.
func TestConfirmPickupRacesSaleForLastUnits(t *testing.T) {
	for _, createSale := range []bool{false, true} {
		t.Run(fmt.Sprintf("createSale=%t", createSale), func(t *testing.T) {
			for round := 0; round < 20; round++ {
				env := fixture.New(t)
				ctx := context.Background()
				book := env.Product("LIB-RACE", "30.00", 5)
				customer := env.Customer("40111222")
				deadline := fixture.Epoch.Add(24 * time.Hour)

				res, err := env.Reservations.Create(ctx, reservations.CreateInput{
					Items:          []reservations.ItemInput{{ProductID: book.ID, Quantity: 3}},
					CustomerID:     &customer.ID,
					PickupDeadline: &deadline,
					ActorID:        &env.Employee.ID,
				})
				require.NoError(t, err)
				_, err = env.Reservations.Accept(ctx, res.ID, &env.Employee.ID)
				require.NoError(t, err)

				var (
					wg                 sync.WaitGroup
					pickupErr, saleErr error
				)
				start := make(chan struct{})
				wg.Add(2)
				go func() {
					defer wg.Done()
					<-start
					_, pickupErr = env.Reservations.ConfirmPickup(ctx, res.ID, createSale, &env.Employee.ID)
				}()
				go func() {
					defer wg.Done()
					<-start
					_, saleErr = env.Sales.Create(ctx, sales.CreateInput{
						Items:         []sales.ItemInput{{ProductID: book.ID, Quantity: 3}},
						PaymentMethod: "CASH",
						CashierID:     &env.Employee.ID,
					})
				}()
				close(start)
				wg.Wait()

				require.True(t, (pickupErr == nil) != (saleErr == nil),
					"exactly one must win: pickup=%v sale=%v", pickupErr, saleErr)
				loser := pickupErr
				if loser == nil {
					loser = saleErr
				}
				require.ErrorIs(t, loser, shared.ErrInsufficientStock)
				require.EqualValues(t, 2, env.Stock(t, book.ID))

				got, err := env.Reservations.Get(ctx, res.ID)
				require.NoError(t, err)
				if pickupErr == nil {
					require.Equal(t, reservations.StatusCompleted, got.Status)
				} else {
					require.Equal(t, reservations.StatusReserved, got.Status)
					require.Nil(t, got.SaleID)
				}
			}
		})
	}
}

func TestSweepNeverExpiresReservationConfirmedConcurrently(t *testing.T) {
	env := fixture.New(t, fixture.LenientAudit())
	ctx := context.Background()
	book := env.Product("LIB-SWEEP", "12.00", 100)
	customer := env.Customer("40333444")
	deadline := fixture.Epoch.Add(time.Hour)

	const count = 40
	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		res, err := env.Reservations.Create(ctx, reservations.CreateInput{
			Items:          []reservations.ItemInput{{ProductID: book.ID, Quantity: 1}},
			CustomerID:     &customer.ID,
			PickupDeadline: &deadline,
			ActorID:        &env.Employee.ID,
		})
		require.NoError(t, err)
		_, err = env.Reservations.Accept(ctx, res.ID, &env.Employee.ID)
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}
	env.Clock.Advance(2 * time.Hour)

	var wg sync.WaitGroup
	confirmErrs := make([]error, count)
	start := make(chan struct{})
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			<-start
			_, confirmErrs[i] = env.Reservations.ConfirmPickup(ctx, id, false, &env.Employee.ID)
		}(i, id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, err := env.Reservations.ExpireOverdue(ctx)
		assert.NoError(t, err)
	}()
	close(start)
	wg.Wait()

	// A second sweep picks up anything the first skipped while it was locked.
	_, err := env.Reservations.ExpireOverdue(ctx)
	require.NoError(t, err)

	completed := 0
	for i, id := range ids {
		got, err := env.Reservations.Get(ctx, id)
		require.NoError(t, err)
		if confirmErrs[i] == nil {
			completed++
			assert.Equal(t, reservations.StatusCompleted, got.Status, "confirmed reservation %s was expired", id)
			continue
		}
		assert.ErrorIs(t, confirmErrs[i], shared.ErrAlreadyClosed)
		assert.Equal(t, reservations.StatusExpired, got.Status)
	}
	assert.EqualValues(t, 100-completed, env.Stock(t, book.ID))
}

func TestCreateDrawsAnotherCodeOnCollision(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	book := env.Product("LIB-CODE", "18.00", 4)
	customer := env.Customer("40555777")
	env.Store.SeedReservation(reservations.Reservation{
		Code: "RSV-TAKEN001", Status: reservations.StatusPending, CustomerID: customer.ID, ReservedAt: fixture.Epoch,
	})
	in := reservations.CreateInput{
		Items:      []reservations.ItemInput{{ProductID: book.ID, Quantity: 1}},
		CustomerID: &customer.ID,
	}

	codes := []string{"RSV-TAKEN001", "RSV-FRESH001"}
	env.Reservations.SetCodeGenerator(func() string {
		next := codes[0]
		codes = codes[1:]
		return next
	})
	res, err := env.Reservations.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "RSV-FRESH001", res.Code)

	env.Reservations.SetCodeGenerator(func() string { return "RSV-TAKEN001" })
	_, err = env.Reservations.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, "RESERVATION_CODE_CONFLICT", shared.CodeOf(err))
}
