package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syncengine/backend/internal/domain/catalog"
)

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	SKU         string          `json:"sku" binding:"required,min=1,max=64"`
	Name        string          `json:"name" binding:"required,min=1,max=200"`
	Description string          `json:"description" binding:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency" binding:"omitempty,len=3"`
	Inventory   int64           `json:"inventory" binding:"min=0"`
	ImageURL    string          `json:"image_url" binding:"omitempty,url"`
	Category    string          `json:"category" binding:"max=100"`
}

// UpdateProductRequest represents a request to update a product's details
type UpdateProductRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	ImageURL    *string `json:"image_url" binding:"omitempty,url"`
	Category    *string `json:"category" binding:"omitempty,max=100"`
}

// SetPriceRequest represents a price change
type SetPriceRequest struct {
	Price decimal.Decimal `json:"price" binding:"required"`
}

// AdjustInventoryRequest represents a signed stock adjustment
type AdjustInventoryRequest struct {
	Delta int64 `json:"delta" binding:"required"`
}

// SetInventoryRequest represents an absolute stock level
type SetInventoryRequest struct {
	Level int64 `json:"level" binding:"min=0"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Inventory   int64           `json:"inventory"`
	ImageURL    string          `json:"image_url,omitempty"`
	Category    string          `json:"category,omitempty"`
	Active      bool            `json:"active"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ToProductResponse converts a product to its API representation
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Currency:    p.Currency,
		Inventory:   p.Inventory,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Active:      p.Active,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
