package memory

import (
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront/internal/storefront/core/domain/entity"
)

// DemoCatalog is loaded when the service runs without a database.
func DemoCatalog() []entity.Product {
	return []entity.Product{
		{ID: "9b1f6f0e-4c1a-4a53-9a52-0f4c1e7c0001", Title: "Ceramic Mug", Slug: "ceramic-mug", Price: decimal.RequireFromString("12.50"), Stock: 40, IsActive: true},
		{ID: "9b1f6f0e-4c1a-4a53-9a52-0f4c1e7c0002", Title: "Linen Tote", Slug: "linen-tote", Price: decimal.RequireFromString("24.00"), Stock: 15, IsActive: true},
		{ID: "9b1f6f0e-4c1a-4a53-9a52-0f4c1e7c0003", Title: "Desk Lamp", Slug: "desk-lamp", Price: decimal.RequireFromString("89.99"), Stock: 5, IsActive: true},
		{ID: "9b1f6f0e-4c1a-4a53-9a52-0f4c1e7c0004", Title: "Retired Poster", Slug: "retired-poster", Price: decimal.RequireFromString("8.00"), Stock: 100, IsActive: false},
	}
}

// NewSeededStore returns a store holding products.
func NewSeededStore(products ...entity.Product) *Store {
	s := NewStore()
	for _, p := range products {
		s.PutProduct(p)
	}
	return s
}
