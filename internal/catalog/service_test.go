package catalog_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/testing/fixture"
)

func str(s string) *string { return &s }

func TestCreateProductRequiresExistingCategory(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	in := catalog.ProductInput{SKU: str("BK-1"), Title: str("Rayuela"), Price: fixture.Ptr(decimal.RequireFromString("39.90"))}

	_, err := env.Catalog.CreateProduct(ctx, in, &env.Admin.ID)
	assert.Equal(t, "CATEGORY_REQUIRED", shared.CodeOf(err))

	in.CategoryID = fixture.Ptr(uuid.New())
	_, err = env.Catalog.CreateProduct(ctx, in, &env.Admin.ID)
	assert.Equal(t, "CATEGORY_NOT_FOUND", shared.CodeOf(err))

	cat, err := env.Catalog.CreateCategory(ctx, catalog.CategoryInput{Name: str("Novela")}, &env.Admin.ID)
	require.NoError(t, err)
	in.CategoryID = &cat.ID
	p, err := env.Catalog.CreateProduct(ctx, in, &env.Admin.ID)
	require.NoError(t, err)
	assert.True(t, p.Active)
	assert.Equal(t, "39.90", p.Price.StringFixed(2))

	_, err = env.Catalog.CreateProduct(ctx, in, &env.Admin.ID)
	assert.Equal(t, "PRODUCT_EXISTS", shared.CodeOf(err))
}

func TestProductValidation(t *testing.T) {
	env := fixture.New(t)
	cat := env.Store.SeedCategory(catalog.Category{Name: "Poesia", Active: true})
	ctx := context.Background()

	_, err := env.Catalog.CreateProduct(ctx, catalog.ProductInput{Title: str("x"), CategoryID: &cat.ID}, nil)
	assert.Equal(t, "PRODUCT_SKU_REQUIRED", shared.CodeOf(err))

	_, err = env.Catalog.CreateProduct(ctx, catalog.ProductInput{
		SKU: str("BK-2"), Title: str("x"), CategoryID: &cat.ID, Price: fixture.Ptr(decimal.NewFromInt(-1)),
	}, nil)
	assert.Equal(t, "INVALID_PRICE", shared.CodeOf(err))
}

func TestDeleteReferencedProductIsRefused(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	stocked := env.Product("BK-3", "10.00", 2)
	bare := env.Product("BK-4", "10.00", 0)

	err := env.Catalog.DeleteProduct(ctx, stocked.ID, &env.Admin.ID)
	assert.Equal(t, "PRODUCT_DELETE_CONSTRAINT", shared.CodeOf(err))

	require.NoError(t, env.Catalog.DeleteProduct(ctx, bare.ID, &env.Admin.ID))
	_, err = env.Catalog.GetProduct(ctx, bare.ID)
	assert.Equal(t, "PRODUCT_NOT_FOUND", shared.CodeOf(err))
}

func TestDeleteCategoryInUseIsRefused(t *testing.T) {
	env := fixture.New(t)
	p := env.Product("BK-5", "10.00", 0)

	err := env.Catalog.DeleteCategory(context.Background(), p.CategoryID, nil)
	assert.Equal(t, "CATEGORY_DELETE_CONSTRAINT", shared.CodeOf(err))
}

func TestPublicViewsHideInactiveAndCarryStock(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()
	visible := env.Product("BK-6", "18.00", 4)
	hidden := env.Product("BK-7", "18.00", 4)
	_, err := env.Catalog.UpdateProduct(ctx, hidden.ID, catalog.ProductInput{Active: fixture.Ptr(false)}, nil)
	require.NoError(t, err)

	list, err := env.Catalog.PublicProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, visible.ID, list[0].ID)
	assert.EqualValues(t, 4, list[0].Stock)
	assert.NotEmpty(t, list[0].CategoryName)

	_, err = env.Catalog.PublicProduct(ctx, hidden.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	closed := env.Store.SeedCategory(catalog.Category{Name: "Archivo", Active: false})
	_, err = env.Catalog.PublicCategory(ctx, closed.ID)
	assert.Equal(t, "CATEGORY_NOT_FOUND", shared.CodeOf(err))
}

func TestListProductsPaginates(t *testing.T) {
	env := fixture.New(t)
	for _, sku := range []string{"P-1", "P-2", "P-3"} {
		env.Product(sku, "1.00", 0)
	}
	items, page, err := env.Catalog.ListProducts(context.Background(), catalog.ListFilters{Page: 2, Limit: 2, SortBy: "sku"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "P-3", items[0].SKU)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
}
