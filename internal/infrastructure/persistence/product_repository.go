package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/query"
)

var productColumns = []string{
	"id", "slug", "name", "description", "category", "heat_level", "price", "weight_grams",
	"stock", "is_active", "is_preorder", "image_url", "created_date", "last_modified_date",
}

// ProductFilter narrows product listings
type ProductFilter struct {
	Category        string
	IncludeInactive bool
	Terms           []string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Limit           int
}

// ProductRepository handles database operations for products
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row Scannable) (*models.Product, error) {
	var p models.Product
	var description sql.NullString
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &description, &p.Category, &p.HeatLevel, &p.Price, &p.WeightGrams,
		&p.Stock, &p.IsActive, &p.IsPreorder, &p.ImageURL, &p.CreatedDate, &p.LastModifiedDate)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	return &p, nil
}

// List returns products matching the filter, ordered by name
func (r *ProductRepository) List(ctx context.Context, filter ProductFilter) ([]*models.Product, error) {
	b := query.From(constants.TableProduct).Select(productColumns...)
	if !filter.IncludeInactive {
		b.Where("`is_active` = ?", true)
	}
	if filter.Category != "" {
		b.Where("`category` = ?", filter.Category)
	}
	if filter.MinPrice != nil {
		b.Where("`price` >= ?", filter.MinPrice.String())
	}
	if filter.MaxPrice != nil {
		b.Where("`price` <= ?", filter.MaxPrice.String())
	}
	b.WhereAnyLike([]string{"name", "description", "category"}, filter.Terms)
	b.OrderBy("name", "ASC")
	if filter.Limit > 0 {
		b.Limit(filter.Limit)
	}
	q := b.Build()

	rows, err := r.db.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) getBy(ctx context.Context, column, value string) (*models.Product, error) {
	q := query.From(constants.TableProduct).Select(productColumns...).Where(fmt.Sprintf("`%s` = ?", column), value).Limit(1).Build()
	p, err := scanProduct(r.db.QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetBySlug retrieves a product by slug regardless of active state
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return r.getBy(ctx, "slug", slug)
}

// GetByID retrieves a product by id
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return r.getBy(ctx, "id", id)
}

// SlugExists checks for another product using slug
func (r *ProductRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var exists bool
	stmt := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE slug = ? AND id != ?)", constants.TableProduct)
	err := r.db.QueryRowContext(ctx, stmt, slug, excludeID).Scan(&exists)
	return exists, err
}

// Insert creates a product
func (r *ProductRepository) Insert(ctx context.Context, p *models.Product) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, slug, name, description, category, heat_level, price, weight_grams, stock, is_active, is_preorder, image_url, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableProduct)

	_, err := r.db.ExecContext(ctx, stmt, p.ID, p.Slug, p.Name, p.Description, p.Category, p.HeatLevel, p.Price.String(),
		p.WeightGrams, p.Stock, p.IsActive, p.IsPreorder, p.ImageURL, p.CreatedDate, p.LastModifiedDate)
	return err
}

// Update overwrites the editable product fields
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET slug = ?, name = ?, description = ?, category = ?, heat_level = ?, price = ?, weight_grams = ?,
			stock = ?, is_active = ?, is_preorder = ?, image_url = ?, last_modified_date = ?
		WHERE id = ?`, constants.TableProduct)

	_, err := r.db.ExecContext(ctx, stmt, p.Slug, p.Name, p.Description, p.Category, p.HeatLevel, p.Price.String(), p.WeightGrams,
		p.Stock, p.IsActive, p.IsPreorder, p.ImageURL, p.LastModifiedDate, p.ID)
	return err
}

// SetActive toggles product visibility
func (r *ProductRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	stmt := fmt.Sprintf("UPDATE %s SET is_active = ?, last_modified_date = ? WHERE id = ?", constants.TableProduct)
	return rowsAffected(r.db.ExecContext(ctx, stmt, active, time.Now().UTC(), id))
}

// ReserveStock decrements stock only when enough is left. Returns false when it is not.
func (r *ProductRepository) ReserveStock(ctx context.Context, exec Executor, id string, qty int) (bool, error) {
	stmt := fmt.Sprintf("UPDATE %s SET stock = stock - ? WHERE id = ? AND stock >= ?", constants.TableProduct)
	return rowsAffected(exec.ExecContext(ctx, stmt, qty, id, qty))
}

// ReleaseStock returns reserved units, e.g. when an unpaid order is cancelled
func (r *ProductRepository) ReleaseStock(ctx context.Context, exec Executor, id string, qty int) error {
	stmt := fmt.Sprintf("UPDATE %s SET stock = stock + ? WHERE id = ?", constants.TableProduct)
	_, err := exec.ExecContext(ctx, stmt, qty, id)
	return err
}
