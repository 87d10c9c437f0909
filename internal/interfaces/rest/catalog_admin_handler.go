package rest

import (
	"context"
	"time"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/gin-gonic/gin"
)

// ProductAdmin manages the product catalog
type ProductAdmin interface {
	ListAllProducts(ctx context.Context) ([]*models.Product, error)
	CreateProduct(ctx context.Context, in services.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, in services.ProductInput) (*models.Product, error)
	DeactivateProduct(ctx context.Context, id string) error
}

// PostAdmin manages blog posts
type PostAdmin interface {
	ListAllPosts(ctx context.Context) ([]*models.BlogPost, error)
	GetPostByID(ctx context.Context, id string) (*models.BlogPost, error)
	CreatePost(ctx context.Context, in services.PostInput) (*models.BlogPost, error)
	UpdatePost(ctx context.Context, id string, in services.PostInput) (*models.BlogPost, error)
	PublishPost(ctx context.Context, id string, at *time.Time) (*models.BlogPost, error)
	UnpublishPost(ctx context.Context, id string) error
	DeletePost(ctx context.Context, id string) error
}

// PublishRequest optionally schedules a post for later
type PublishRequest struct {
	PublishedAt *time.Time `json:"published_at"`
}

// CatalogAdminHandler handles product and post management
type CatalogAdminHandler struct {
	products ProductAdmin
	posts    PostAdmin
}

// NewCatalogAdminHandler creates a new CatalogAdminHandler
func NewCatalogAdminHandler(products ProductAdmin, posts PostAdmin) *CatalogAdminHandler {
	return &CatalogAdminHandler{products: products, posts: posts}
}

// ListProducts handles GET /api/admin/products (inactive included)
func (h *CatalogAdminHandler) ListProducts(c *gin.Context) {
	HandleGetEnvelope(c, "products", func() (interface{}, error) {
		return h.products.ListAllProducts(c.Request.Context())
	})
}

// CreateProduct handles POST /api/admin/products
func (h *CatalogAdminHandler) CreateProduct(c *gin.Context) {
	var in services.ProductInput
	HandleCreateEnvelope(c, "product", "Product created", &in, func() (interface{}, error) {
		return h.products.CreateProduct(c.Request.Context(), in)
	})
}

// UpdateProduct handles PUT /api/admin/products/:id
func (h *CatalogAdminHandler) UpdateProduct(c *gin.Context) {
	var in services.ProductInput
	HandleUpdateEnvelope(c, "product", "Product updated", &in, func() (interface{}, error) {
		return h.products.UpdateProduct(c.Request.Context(), c.Param("id"), in)
	})
}

// DeactivateProduct handles DELETE /api/admin/products/:id. Products are
// hidden rather than removed because orders reference them.
func (h *CatalogAdminHandler) DeactivateProduct(c *gin.Context) {
	HandleDeleteEnvelope(c, "Product deactivated", func() error {
		return h.products.DeactivateProduct(c.Request.Context(), c.Param("id"))
	})
}

// ListPosts handles GET /api/admin/posts (drafts included)
func (h *CatalogAdminHandler) ListPosts(c *gin.Context) {
	HandleGetEnvelope(c, "posts", func() (interface{}, error) {
		return h.posts.ListAllPosts(c.Request.Context())
	})
}

// GetPost handles GET /api/admin/posts/:id
func (h *CatalogAdminHandler) GetPost(c *gin.Context) {
	HandleGetEnvelope(c, "post", func() (interface{}, error) {
		return h.posts.GetPostByID(c.Request.Context(), c.Param("id"))
	})
}

// CreatePost handles POST /api/admin/posts
func (h *CatalogAdminHandler) CreatePost(c *gin.Context) {
	var in services.PostInput
	HandleCreateEnvelope(c, "post", "Post created", &in, func() (interface{}, error) {
		return h.posts.CreatePost(c.Request.Context(), in)
	})
}

// UpdatePost handles PUT /api/admin/posts/:id
func (h *CatalogAdminHandler) UpdatePost(c *gin.Context) {
	var in services.PostInput
	HandleUpdateEnvelope(c, "post", "Post updated", &in, func() (interface{}, error) {
		return h.posts.UpdatePost(c.Request.Context(), c.Param("id"), in)
	})
}

// PublishPost handles POST /api/admin/posts/:id/publish
func (h *CatalogAdminHandler) PublishPost(c *gin.Context) {
	var req PublishRequest
	if c.Request.ContentLength != 0 && !BindJSON(c, &req) {
		return
	}
	HandleGetEnvelope(c, "post", func() (interface{}, error) {
		return h.posts.PublishPost(c.Request.Context(), c.Param("id"), req.PublishedAt)
	})
}

// UnpublishPost handles POST /api/admin/posts/:id/unpublish
func (h *CatalogAdminHandler) UnpublishPost(c *gin.Context) {
	HandleDeleteEnvelope(c, "Post unpublished", func() error {
		return h.posts.UnpublishPost(c.Request.Context(), c.Param("id"))
	})
}

// DeletePost handles DELETE /api/admin/posts/:id
func (h *CatalogAdminHandler) DeletePost(c *gin.Context) {
	HandleDeleteEnvelope(c, "Post deleted", func() error {
		return h.posts.DeletePost(c.Request.Context(), c.Param("id"))
	})
}
