package catalog

import (
	"context"

	"github.com/google/uuid"
)

// PublicProducts lists active products with their current stock.
func (s *Service) PublicProducts(ctx context.Context) ([]PublicProduct, error) {
	active := true
	products, _, err := s.repo.ListProducts(ctx, ListFilters{Active: &active, SortBy: "title"})
	if err != nil {
		return nil, err
	}
	return s.toPublic(ctx, products)
}

// PublicProduct returns one active product with stock.
func (s *Service) PublicProduct(ctx context.Context, id uuid.UUID) (PublicProduct, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return PublicProduct{}, err
	}
	if !p.Active {
		return PublicProduct{}, productNotFound(id)
	}
	views, err := s.toPublic(ctx, []Product{p})
	if err != nil {
		return PublicProduct{}, err
	}
	return views[0], nil
}

// PublicCategories lists active categories.
func (s *Service) PublicCategories(ctx context.Context) ([]PublicCategory, error) {
	cats, err := s.repo.ListCategories(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]PublicCategory, 0, len(cats))
	for _, c := range cats {
		out = append(out, PublicCategory{ID: c.ID, Name: c.Name, Description: c.Description})
	}
	return out, nil
}

// PublicCategory returns one active category.
func (s *Service) PublicCategory(ctx context.Context, id uuid.UUID) (PublicCategory, error) {
	c, err := s.GetCategory(ctx, id)
	if err != nil {
		return PublicCategory{}, err
	}
	if !c.Active {
		return PublicCategory{}, categoryNotFound(id)
	}
	return PublicCategory{ID: c.ID, Name: c.Name, Description: c.Description}, nil
}

func (s *Service) toPublic(ctx context.Context, products []Product) ([]PublicProduct, error) {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	levels, err := s.stock.StockLevels(ctx, ids)
	if err != nil {
		return nil, err
	}
	cats, err := s.repo.ListCategories(ctx, false)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	out := make([]PublicProduct, 0, len(products))
	for _, p := range products {
		out = append(out, PublicProduct{
			ID:           p.ID,
			Title:        p.Title,
			Author:       p.Author,
			Price:        p.Price,
			CategoryID:   p.CategoryID,
			CategoryName: names[p.CategoryID],
			Stock:        levels[p.ID],
		})
	}
	return out, nil
}
