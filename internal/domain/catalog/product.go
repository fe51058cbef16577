package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syncengine/backend/internal/domain/shared"
)

// Product is the canonical product record that all channels sync from.
// Channel-facing representations are derived views; this is the source of
// truth that conflict resolution writes back to.
type Product struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey"`
	SKU         string          `json:"sku" gorm:"uniqueIndex"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(20,4)"`
	Currency    string          `json:"currency"`
	Inventory   int64           `json:"inventory"`
	ImageURL    string          `json:"image_url"`
	Category    string          `json:"category"`
	Active      bool            `json:"active"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewProduct creates an active product
func NewProduct(sku, name string, price decimal.Decimal, inventory int64) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "product SKU is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "product name is required")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "product price cannot be negative")
	}
	if inventory < 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "product inventory cannot be negative")
	}

	now := time.Now()
	return &Product{
		ID:        uuid.New(),
		SKU:       strings.ToUpper(sku),
		Name:      name,
		Price:     price,
		Currency:  "USD",
		Inventory: inventory,
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateDetails changes the descriptive fields
func (p *Product) UpdateDetails(name, description, imageURL, category string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_INPUT", "product name is required")
	}
	p.Name = name
	p.Description = description
	p.ImageURL = imageURL
	p.Category = category
	p.touch()
	return nil
}

// SetPrice changes the product price
func (p *Product) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "product price cannot be negative")
	}
	p.Price = price
	p.touch()
	return nil
}

// AdjustInventory applies a signed inventory delta. Returns true when the
// adjustment exhausted the stock.
func (p *Product) AdjustInventory(delta int64) (bool, error) {
	next := p.Inventory + delta
	if next < 0 {
		return false, shared.NewDomainError("INVALID_INPUT", "inventory cannot go negative")
	}
	exhausted := next == 0 && p.Inventory > 0
	p.Inventory = next
	p.touch()
	return exhausted, nil
}

// SetInventory replaces the absolute stock level. Returns true when the new
// level exhausted previously available stock.
func (p *Product) SetInventory(level int64) (bool, error) {
	if level < 0 {
		return false, shared.NewDomainError("INVALID_INPUT", "inventory cannot be negative")
	}
	exhausted := level == 0 && p.Inventory > 0
	p.Inventory = level
	p.touch()
	return exhausted, nil
}

// Deactivate pulls the product from all channels
func (p *Product) Deactivate() error {
	if !p.Active {
		return shared.ErrInvalidState
	}
	p.Active = false
	p.touch()
	return nil
}

func (p *Product) touch() {
	p.Version++
	p.UpdatedAt = time.Now()
}

// ProductRepository is the persistence port for products
type ProductRepository interface {
	// Save persists a new product
	Save(ctx context.Context, product *Product) error
	// Update persists product mutations
	Update(ctx context.Context, product *Product) error
	// FindByID retrieves a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// FindBySKU retrieves a product by its unique SKU
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	// FindAll lists products, newest first
	FindAll(ctx context.Context, limit, offset int) ([]*Product, error)
}
