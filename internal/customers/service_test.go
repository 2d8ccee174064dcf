package customers_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/reservations"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/testing/fixture"
)

func TestCreateNormalisesAndRejectsDuplicates(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	email := "  JUAN.Perez@Mail.COM "

	c, err := env.Customers.Create(ctx, customers.CreateCustomerRequest{
		DNI: "12345678", FirstName: "juan carlos", LastName: "pérez", Email: &email,
	}, &env.Admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan Carlos", c.FirstName)
	assert.Equal(t, "Pérez", c.LastName)
	require.NotNil(t, c.Email)
	assert.Equal(t, "juan.perez@mail.com", *c.Email)

	_, err = env.Customers.Create(ctx, customers.CreateCustomerRequest{DNI: "12345678", FirstName: "a", LastName: "b"}, nil)
	assert.Equal(t, "CUSTOMER_DNI_EXISTS", shared.CodeOf(err))

	_, err = env.Customers.Create(ctx, customers.CreateCustomerRequest{DNI: "1234", FirstName: "a", LastName: "b"}, nil)
	assert.Equal(t, "INVALID_DNI", shared.CodeOf(err))
}

func TestUpdateAppliesOnlySuppliedFields(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	c := env.Customer("87654321")
	phone := " 999111222 "

	updated, err := env.Customers.Update(ctx, c.ID, customers.UpdateCustomerRequest{Phone: &phone}, nil)
	require.NoError(t, err)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, "999111222", *updated.Phone)
	assert.Equal(t, c.FirstName, updated.FirstName)

	_, err = env.Customers.Update(ctx, uuid.New(), customers.UpdateCustomerRequest{Phone: &phone}, nil)
	assert.Equal(t, "CUSTOMER_NOT_FOUND", shared.CodeOf(err))
}

func TestUpsertByDNIOverwritesContactFields(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	existing := env.Customer("11223344")

	got, err := env.Customers.UpsertByDNI(ctx, customers.Data{
		DNI: "11223344", FirstName: "lucia", LastName: "paz", Email: "lucia@paz.pe", Phone: "955000111",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "955000111", *got.Phone)

	_, err = env.Customers.UpsertByDNI(ctx, customers.Data{DNI: "11223344"}, nil)
	assert.Equal(t, "CUSTOMER_DATA_REQUIRED", shared.CodeOf(err))
}

func TestConcurrentUpsertCreatesOneCustomer(t *testing.T) {
	env := fixture.New(t)
	data := customers.Data{DNI: "55667788", FirstName: "Rosa", LastName: "Vega", Email: "rosa@vega.pe", Phone: "944000000"}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uuid.UUID]struct{}{}
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := env.Customers.UpsertByDNI(context.Background(), data, nil)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[c.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 1)

	_, page, err := env.Customers.List(context.Background(), customers.ListFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestDeleteReferencedCustomerIsRefused(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	c := env.Customer("99887766")
	env.Store.SeedReservation(reservations.Reservation{Code: "RSV-DEADBEEF", Status: reservations.StatusPending, CustomerID: c.ID})

	err := env.Customers.Delete(ctx, c.ID, nil)
	assert.Equal(t, "CUSTOMER_DELETE_CONSTRAINT", shared.CodeOf(err))

	free := env.Customer("10101010")
	require.NoError(t, env.Customers.Delete(ctx, free.ID, nil))
	_, err = env.Customers.Get(ctx, free.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
