package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/utils"
)

// LineRequest is one requested product and quantity
type LineRequest struct {
	ProductID string `json:"product_id"`
	Slug      string `json:"slug"`
	Quantity  int    `json:"quantity"`
}

// PricedLines is the result of pricing a cart against the catalog
type PricedLines struct {
	Items    []models.OrderItem
	Subtotal decimal.Decimal
	// Preorder is true when any line is a pre-order product
	Preorder bool
}

// CatalogService serves products and prices carts
type CatalogService struct {
	repo *persistence.ProductRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(db *sql.DB) *CatalogService {
	return &CatalogService{repo: persistence.NewProductRepository(db)}
}

// ListProducts returns active products, optionally in one category
func (s *CatalogService) ListProducts(ctx context.Context, category string) ([]*models.Product, error) {
	return s.repo.List(ctx, persistence.ProductFilter{Category: strings.TrimSpace(category)})
}

// ListAllProducts includes inactive products, for the dashboard
func (s *CatalogService) ListAllProducts(ctx context.Context) ([]*models.Product, error) {
	return s.repo.List(ctx, persistence.ProductFilter{IncludeInactive: true})
}

// GetProduct returns an active product by slug
func (s *CatalogService) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	p, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsActive {
		return nil, errors.NewNotFoundError("product", slug)
	}
	return p, nil
}

// PriceItems looks every line up in the catalog and totals it with decimal arithmetic.
// Stock is checked here but reserved by the order transaction.
func (s *CatalogService) PriceItems(ctx context.Context, lines []LineRequest) (*PricedLines, error) {
	if len(lines) == 0 {
		return nil, errors.NewValidationError("items", "At least one item is required")
	}
	if len(lines) > constants.MaxOrderItems {
		return nil, errors.NewValidationError("items", fmt.Sprintf("At most %d items per order", constants.MaxOrderItems))
	}

	result := &PricedLines{
		Items:    make([]models.OrderItem, 0, len(lines)),
		Subtotal: decimal.Zero,
	}
	seen := make(map[string]bool, len(lines))

	for i, line := range lines {
		field := fmt.Sprintf("items[%d]", i)
		if line.Quantity < 1 || line.Quantity > constants.MaxItemQuantity {
			return nil, errors.NewValidationError(field+".quantity", fmt.Sprintf("Quantity must be between 1 and %d", constants.MaxItemQuantity))
		}

		p, err := s.lookup(ctx, line)
		if err != nil {
			return nil, err
		}
		if p == nil || !p.IsActive {
			return nil, errors.NewValidationError(field, "Product is not available")
		}
		if seen[p.ID] {
			return nil, errors.NewValidationError(field, "Duplicate product in order")
		}
		seen[p.ID] = true

		if !p.IsPreorder && p.Stock < line.Quantity {
			return nil, errors.NewValidationError(field+".quantity", fmt.Sprintf("Only %d left of %s", p.Stock, p.Name))
		}
		if p.IsPreorder {
			result.Preorder = true
		}

		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		result.Items = append(result.Items, models.OrderItem{
			ProductID:  p.ID,
			Name:       p.Name,
			UnitPrice:  p.Price,
			Quantity:   line.Quantity,
			LineTotal:  lineTotal,
			IsPreorder: p.IsPreorder,
		})
		result.Subtotal = result.Subtotal.Add(lineTotal)
	}
	return result, nil
}

func (s *CatalogService) lookup(ctx context.Context, line LineRequest) (*models.Product, error) {
	switch {
	case line.ProductID != "":
		return s.repo.GetByID(ctx, line.ProductID)
	case line.Slug != "":
		return s.repo.GetBySlug(ctx, line.Slug)
	default:
		return nil, errors.NewValidationError("product_id", "Product id or slug is required")
	}
}

// ReserveStock decrements stock for in-stock lines inside tx. Pre-order lines are skipped.
func (s *CatalogService) ReserveStock(ctx context.Context, tx persistence.Executor, priced *PricedLines) error {
	for _, item := range priced.Items {
		if item.IsPreorder {
			continue
		}
		ok, err := s.repo.ReserveStock(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewConflictError("product", "stock", item.Name)
		}
	}
	return nil
}

// ReleaseStock gives stock back when an order is cancelled. Lines placed as
// pre-orders never reserved stock, whatever the product's current setting.
func (s *CatalogService) ReleaseStock(ctx context.Context, tx persistence.Executor, items []models.OrderItem) error {
	for _, item := range items {
		if item.IsPreorder {
			continue
		}
		if err := s.repo.ReleaseStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ProductInput is the admin create/update payload
type ProductInput struct {
	Slug        string          `json:"slug"`
	Name        string          `json:"name" binding:"required,max=200"`
	Description string          `json:"description"`
	Category    string          `json:"category" binding:"required,max=60"`
	HeatLevel   int             `json:"heat_level" binding:"min=0,max=5"`
	Price       decimal.Decimal `json:"price"`
	WeightGrams int             `json:"weight_grams" binding:"min=0"`
	Stock       int             `json:"stock" binding:"min=0"`
	IsActive    *bool           `json:"is_active"`
	IsPreorder  bool            `json:"is_preorder"`
	ImageURL    string          `json:"image_url"`
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = utils.Slugify(in.Name)
	}
	if in.Name == "" {
		return errors.NewValidationError("name", "Name is required")
	}
	if !utils.IsSlug(in.Slug) {
		return errors.NewValidationError("slug", "Slug may only contain lowercase letters, digits and dashes")
	}
	if in.HeatLevel < 0 || in.HeatLevel > 5 {
		return errors.NewValidationError("heat_level", "Heat level must be between 0 and 5")
	}
	if !in.Price.IsPositive() {
		return errors.NewValidationError("price", "Price must be greater than zero")
	}
	if in.Stock < 0 {
		return errors.NewValidationError("stock", "Stock cannot be negative")
	}
	return nil
}

// CreateProduct adds a product. Slugs must be unique.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	exists, err := s.repo.SlugExists(ctx, in.Slug, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewConflictError("product", "slug", in.Slug)
	}

	now := time.Now().UTC()
	p := &models.Product{
		ID:               utils.GenerateID(),
		CreatedDate:      now,
		LastModifiedDate: now,
		IsActive:         true,
	}
	applyProductInput(p, in)

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	log.Printf("✅ Product created: %s (%s)", p.Name, p.Slug)
	return p, nil
}

// UpdateProduct overwrites a product's editable fields
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.NewNotFoundError("product", id)
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	exists, err := s.repo.SlugExists(ctx, in.Slug, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewConflictError("product", "slug", in.Slug)
	}

	applyProductInput(p, in)
	p.LastModifiedDate = time.Now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return p, nil
}

// DeactivateProduct hides a product from the storefront
func (s *CatalogService) DeactivateProduct(ctx context.Context, id string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return errors.NewNotFoundError("product", id)
	}
	_, err = s.repo.SetActive(ctx, id, false)
	return err
}

func applyProductInput(p *models.Product, in ProductInput) {
	p.Slug = in.Slug
	p.Name = in.Name
	p.Description = strings.TrimSpace(in.Description)
	p.Category = in.Category
	p.HeatLevel = in.HeatLevel
	p.Price = in.Price
	p.WeightGrams = in.WeightGrams
	p.Stock = in.Stock
	p.IsPreorder = in.IsPreorder
	p.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}
