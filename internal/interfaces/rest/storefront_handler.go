package rest

import (
	"context"
	"net/http"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CatalogReader serves public product pages
type CatalogReader interface {
	ListProducts(ctx context.Context, category string) ([]*models.Product, error)
	GetProduct(ctx context.Context, slug string) (*models.Product, error)
}

// ContentReader serves public blog pages and the sitemap
type ContentReader interface {
	ListPosts(ctx context.Context, page int) ([]*models.BlogPost, error)
	GetPost(ctx context.Context, slug string) (*models.BlogPost, error)
	Sitemap(ctx context.Context) ([]byte, error)
}

// Searcher runs the storefront search
type Searcher interface {
	Search(ctx context.Context, req services.SearchRequest) (*services.SearchResponse, error)
}

// StorefrontHandler handles the public read API: products, posts, search and sitemap
type StorefrontHandler struct {
	catalog CatalogReader
	content ContentReader
	search  Searcher
}

// NewStorefrontHandler creates a new StorefrontHandler
func NewStorefrontHandler(catalog CatalogReader, content ContentReader, search Searcher) *StorefrontHandler {
	return &StorefrontHandler{catalog: catalog, content: content, search: search}
}

// ListProducts handles GET /api/products
func (h *StorefrontHandler) ListProducts(c *gin.Context) {
	HandleGetEnvelope(c, "products", func() (interface{}, error) {
		return h.catalog.ListProducts(c.Request.Context(), c.Query("category"))
	})
}

// GetProduct handles GET /api/products/:slug
func (h *StorefrontHandler) GetProduct(c *gin.Context) {
	HandleGetEnvelope(c, "product", func() (interface{}, error) {
		return h.catalog.GetProduct(c.Request.Context(), c.Param("slug"))
	})
}

// ListPosts handles GET /api/posts?page=
func (h *StorefrontHandler) ListPosts(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, "posts", func() (interface{}, error) {
		return h.content.ListPosts(c.Request.Context(), page)
	})
}

// GetPost handles GET /api/posts/:slug
func (h *StorefrontHandler) GetPost(c *gin.Context) {
	HandleGetEnvelope(c, "post", func() (interface{}, error) {
		return h.content.GetPost(c.Request.Context(), c.Param("slug"))
	})
}

// Search handles GET /api/search
func (h *StorefrontHandler) Search(c *gin.Context) {
	req := services.SearchRequest{
		Query:    c.Query("q"),
		Type:     c.DefaultQuery("type", services.SearchTypeAll),
		Category: c.Query("category"),
	}

	var err error
	if req.Limit, err = queryInt(c, "limit", 0); err != nil {
		RespondAppError(c, err)
		return
	}
	if req.MinPrice, err = queryDecimal(c, "min_price"); err != nil {
		RespondAppError(c, err)
		return
	}
	if req.MaxPrice, err = queryDecimal(c, "max_price"); err != nil {
		RespondAppError(c, err)
		return
	}

	resp, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Sitemap handles GET /sitemap.xml
func (h *StorefrontHandler) Sitemap(c *gin.Context) {
	body, err := h.content.Sitemap(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

func queryDecimal(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.NewValidationError(name, "must be a number")
	}
	return &d, nil
}
