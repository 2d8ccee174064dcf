package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// Repository persists catalog entities. Implementations report missing rows
// with shared.ErrNotFound and unique or reference clashes with
// shared.ErrConflict.
type Repository interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (Category, error)
	CreateCategory(ctx context.Context, c Category) error
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// StockReader reports ledger stock for storefront listings.
type StockReader interface {
	StockLevels(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// Service manages products and categories.
type Service struct {
	repo  Repository
	stock StockReader
	audit shared.AuditSink
	clock clock.Clock
}

// NewService builds Service.
func NewService(repo Repository, stock StockReader, audit shared.AuditSink, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{repo: repo, stock: stock, audit: audit, clock: clk}
}

func productNotFound(id uuid.UUID) error {
	return shared.Errorf(shared.ErrNotFound, "PRODUCT_NOT_FOUND", "product %s not found", id)
}

func categoryNotFound(id uuid.UUID) error {
	return shared.Errorf(shared.ErrNotFound, "CATEGORY_NOT_FOUND", "category %s not found", id)
}

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx, false)
}

// GetCategory loads a category.
func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return Category{}, categoryNotFound(id)
	}
	return c, err
}

// CreateCategory stores a new category, active unless told otherwise.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput, actor *uuid.UUID) (Category, error) {
	now := s.clock.Now()
	c := Category{ID: uuid.New(), Active: true, CreatedAt: now, UpdatedAt: now}
	applyCategoryInput(&c, in)
	if err := validateCategory(c); err != nil {
		return Category{}, err
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Category{}, shared.NewError(shared.ErrConflict, "CATEGORY_EXISTS", "a category with this name already exists")
		}
		return Category{}, err
	}
	return c, s.recordCategory(ctx, c, "CREATE", actor)
}

// UpdateCategory applies the non-nil fields of in.
func (s *Service) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput, actor *uuid.UUID) (Category, error) {
	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	applyCategoryInput(&c, in)
	if err := validateCategory(c); err != nil {
		return Category{}, err
	}
	c.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Category{}, shared.NewError(shared.ErrConflict, "CATEGORY_EXISTS", "a category with this name already exists")
		}
		return Category{}, err
	}
	return c, s.recordCategory(ctx, c, "UPDATE", actor)
}

// DeleteCategory removes a category that no product references.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return shared.NewError(shared.ErrConflict, "CATEGORY_DELETE_CONSTRAINT", "category is referenced by other records")
		}
		return err
	}
	return s.recordCategory(ctx, c, "DELETE", actor)
}

// ListProducts returns one page of products.
func (s *Service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, shared.Pagination, error) {
	filters.Page, filters.Limit = shared.NormalizePage(filters.Page, filters.Limit)
	items, total, err := s.repo.ListProducts(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// GetProduct loads a product.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return Product{}, productNotFound(id)
	}
	return p, err
}

// CreateProduct stores a new product. A category is mandatory.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput, actor *uuid.UUID) (Product, error) {
	if in.CategoryID == nil || *in.CategoryID == uuid.Nil {
		return Product{}, shared.NewError(shared.ErrInvalidArgument, "CATEGORY_REQUIRED", "category is required for products")
	}
	if _, err := s.GetCategory(ctx, *in.CategoryID); err != nil {
		return Product{}, err
	}
	now := s.clock.Now()
	p := Product{ID: uuid.New(), Active: true, CreatedAt: now, UpdatedAt: now}
	applyProductInput(&p, in)
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Product{}, shared.NewError(shared.ErrConflict, "PRODUCT_EXISTS", "sku or isbn already in use")
		}
		return Product{}, err
	}
	return p, s.recordProduct(ctx, p, "CREATE", actor)
}

// UpdateProduct applies the non-nil fields of in.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput, actor *uuid.UUID) (Product, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if in.CategoryID != nil && *in.CategoryID != p.CategoryID {
		if _, err := s.GetCategory(ctx, *in.CategoryID); err != nil {
			return Product{}, err
		}
	}
	applyProductInput(&p, in)
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Product{}, shared.NewError(shared.ErrConflict, "PRODUCT_EXISTS", "sku or isbn already in use")
		}
		return Product{}, err
	}
	return p, s.recordProduct(ctx, p, "UPDATE", actor)
}

// DeleteProduct removes a product that has no sales, reservations or movements.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return shared.NewError(shared.ErrConflict, "PRODUCT_DELETE_CONSTRAINT", "product is referenced by other records; deactivate it instead")
		}
		return err
	}
	return s.recordProduct(ctx, p, "DELETE", actor)
}

func (s *Service) recordProduct(ctx context.Context, p Product, action string, actor *uuid.UUID) error {
	return s.audit.Record(ctx, shared.AuditRecord{
		Entity:      "Product",
		EntityID:    p.ID.String(),
		Action:      action,
		PerformedBy: actor,
		At:          s.clock.Now(),
		Details: map[string]any{
			"sku":        p.SKU,
			"title":      p.Title,
			"price":      p.Price.StringFixed(2),
			"active":     p.Active,
			"categoryId": p.CategoryID.String(),
		},
	})
}

func (s *Service) recordCategory(ctx context.Context, c Category, action string, actor *uuid.UUID) error {
	return s.audit.Record(ctx, shared.AuditRecord{
		Entity:      "Category",
		EntityID:    c.ID.String(),
		Action:      action,
		PerformedBy: actor,
		At:          s.clock.Now(),
		Details: map[string]any{
			"name":   c.Name,
			"active": c.Active,
		},
	})
}
