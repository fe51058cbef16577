package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/catalog"
	"github.com/syncengine/backend/internal/domain/shared"
)

// ProductService handles catalog mutations. Every accepted mutation appends
// a domain event; channel propagation hangs off the event log, not off this
// service.
type ProductService struct {
	products catalog.ProductRepository
	events   shared.EventAppender
	logger   *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(products catalog.ProductRepository, events shared.EventAppender, logger *zap.Logger) *ProductService {
	return &ProductService{
		products: products,
		events:   events,
		logger:   logger,
	}
}

// productCreatedPayload is the event payload for product-created
type productCreatedPayload struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Inventory int64           `json:"inventory"`
}

// inventoryChangedPayload is the event payload for inventory changes
type inventoryChangedPayload struct {
	Previous int64 `json:"previous"`
	Current  int64 `json:"current"`
}

// priceUpdatedPayload is the event payload for price-updated
type priceUpdatedPayload struct {
	Previous decimal.Decimal `json:"previous"`
	Current  decimal.Decimal `json:"current"`
}

// Create creates a product and appends product-created
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	if _, err := s.products.FindBySKU(ctx, strings.ToUpper(req.SKU)); err == nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Product with this SKU already exists")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	product, err := catalog.NewProduct(req.SKU, req.Name, req.Price, req.Inventory)
	if err != nil {
		return nil, err
	}
	if req.Currency != "" {
		product.Currency = strings.ToUpper(req.Currency)
	}
	product.Description = req.Description
	product.ImageURL = req.ImageURL
	product.Category = req.Category

	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}

	s.append(ctx, shared.KindProductCreated, shared.StreamCatalog, product.ID, productCreatedPayload{
		SKU:       product.SKU,
		Name:      product.Name,
		Price:     product.Price,
		Inventory: product.Inventory,
	})

	resp := ToProductResponse(product)
	return &resp, nil
}

// Get retrieves a product by ID
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// List returns products, newest first
func (s *ProductService) List(ctx context.Context, limit, offset int) ([]ProductResponse, error) {
	products, err := s.products.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	responses := make([]ProductResponse, len(products))
	for i, p := range products {
		responses[i] = ToProductResponse(p)
	}
	return responses, nil
}

// Update changes a product's descriptive fields and appends product-updated
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := product.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := product.Description
	if req.Description != nil {
		description = *req.Description
	}
	imageURL := product.ImageURL
	if req.ImageURL != nil {
		imageURL = *req.ImageURL
	}
	category := product.Category
	if req.Category != nil {
		category = *req.Category
	}

	if err := product.UpdateDetails(name, description, imageURL, category); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.append(ctx, shared.KindProductUpdated, shared.StreamCatalog, product.ID, nil)

	resp := ToProductResponse(product)
	return &resp, nil
}

// SetPrice changes a product's price and appends price-updated
func (s *ProductService) SetPrice(ctx context.Context, id uuid.UUID, req SetPriceRequest) (*ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := product.Price
	if err := product.SetPrice(req.Price); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.append(ctx, shared.KindPriceUpdated, shared.StreamPricing, product.ID, priceUpdatedPayload{
		Previous: previous,
		Current:  product.Price,
	})

	resp := ToProductResponse(product)
	return &resp, nil
}

// AdjustInventory applies a signed stock delta and appends inventory-changed,
// plus stock-exhausted when the adjustment emptied the stock.
func (s *ProductService) AdjustInventory(ctx context.Context, id uuid.UUID, req AdjustInventoryRequest) (*ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := product.Inventory
	exhausted, err := product.AdjustInventory(req.Delta)
	if err != nil {
		return nil, err
	}
	return s.persistInventoryChange(ctx, product, previous, exhausted)
}

// SetInventory replaces the absolute stock level
func (s *ProductService) SetInventory(ctx context.Context, id uuid.UUID, req SetInventoryRequest) (*ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := product.Inventory
	exhausted, err := product.SetInventory(req.Level)
	if err != nil {
		return nil, err
	}
	return s.persistInventoryChange(ctx, product, previous, exhausted)
}

func (s *ProductService) persistInventoryChange(ctx context.Context, product *catalog.Product, previous int64, exhausted bool) (*ProductResponse, error) {
	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	payload := inventoryChangedPayload{
		Previous: previous,
		Current:  product.Inventory,
	}
	s.append(ctx, shared.KindInventoryChanged, shared.StreamInventory, product.ID, payload)
	if exhausted {
		s.append(ctx, shared.KindStockExhausted, shared.StreamInventory, product.ID, payload)
	}

	resp := ToProductResponse(product)
	return &resp, nil
}

// Deactivate pulls a product from all channels and appends product-deactivated
func (s *ProductService) Deactivate(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := product.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.append(ctx, shared.KindProductDeactivated, shared.StreamCatalog, product.ID, nil)

	resp := ToProductResponse(product)
	return &resp, nil
}

// append appends a catalog event, logging rather than failing the mutation
// when the log rejects it: the repository write already succeeded.
func (s *ProductService) append(ctx context.Context, kind shared.EventKind, stream shared.Stream, aggregateID uuid.UUID, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("failed to marshal event payload",
				zap.String("kind", kind.String()),
				zap.Error(err),
			)
			return
		}
		raw = data
	}

	event := shared.NewEvent(kind, stream, aggregateID, raw).WithOrigin("catalog")
	if _, err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("failed to append event",
			zap.String("kind", kind.String()),
			zap.String("aggregate_id", aggregateID.String()),
			zap.Error(err),
		)
	}
}
