package catalog

import (
	"strings"

	"github.com/libreria-lumen/backoffice/internal/shared"
)

func validateProduct(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return shared.NewError(shared.ErrInvalidArgument, "PRODUCT_SKU_REQUIRED", "product sku is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return shared.NewError(shared.ErrInvalidArgument, "PRODUCT_TITLE_REQUIRED", "product title is required")
	}
	if p.Price.IsNegative() {
		return shared.NewError(shared.ErrInvalidArgument, "INVALID_PRICE", "product price must be >= 0")
	}
	return nil
}

func validateCategory(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return shared.NewError(shared.ErrInvalidArgument, "CATEGORY_NAME_REQUIRED", "category name is required")
	}
	return nil
}

func applyProductInput(p *Product, in ProductInput) {
	if in.SKU != nil {
		p.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.ISBN != nil {
		isbn := strings.TrimSpace(*in.ISBN)
		if isbn == "" {
			p.ISBN = nil
		} else {
			p.ISBN = &isbn
		}
	}
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Author != nil {
		p.Author = strings.TrimSpace(*in.Author)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = in.Price.Round(2)
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
}

func applyCategoryInput(c *Category, in CategoryInput) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
}
