package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/interfaces/rest"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ListProducts(ctx context.Context, category string) ([]*models.Product, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Product), args.Error(1)
}

func (m *MockCatalog) GetProduct(ctx context.Context, slug string) (*models.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type MockContent struct {
	mock.Mock
}

func (m *MockContent) ListPosts(ctx context.Context, page int) ([]*models.BlogPost, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BlogPost), args.Error(1)
}

func (m *MockContent) GetPost(ctx context.Context, slug string) (*models.BlogPost, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BlogPost), args.Error(1)
}

func (m *MockContent) Sitemap(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockSearch struct {
	mock.Mock
}

func (m *MockSearch) Search(ctx context.Context, req services.SearchRequest) (*services.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SearchResponse), args.Error(1)
}

func TestStorefrontHandler_GetProduct(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := new(MockCatalog)
	handler := rest.NewStorefrontHandler(catalog, new(MockContent), new(MockSearch))

	t.Run("Found", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/products/sambal-matah", nil)
		c.Params = gin.Params{{Key: "slug", Value: "sambal-matah"}}
		catalog.On("GetProduct", mock.Anything, "sambal-matah").
			Return(&models.Product{Slug: "sambal-matah", Name: "Sambal Matah", Price: decimal.NewFromInt(45000)}, nil).Once()

		handler.GetProduct(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"price":"45000"`)
	})

	t.Run("Missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/products/nope", nil)
		c.Params = gin.Params{{Key: "slug", Value: "nope"}}
		catalog.On("GetProduct", mock.Anything, "nope").Return(nil, errors.NewNotFoundError("product", "nope")).Once()

		handler.GetProduct(c)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStorefrontHandler_Search(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Parses filters", func(t *testing.T) {
		search := new(MockSearch)
		handler := rest.NewStorefrontHandler(new(MockCatalog), new(MockContent), search)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/search?q=bawang&type=product&min_price=20000&max_price=50000&limit=5", nil)

		minPrice := decimal.NewFromInt(20000)
		maxPrice := decimal.NewFromInt(50000)
		search.On("Search", mock.Anything, mock.MatchedBy(func(req services.SearchRequest) bool {
			return req.Query == "bawang" && req.Type == "product" && req.Limit == 5 &&
				req.MinPrice.Equal(minPrice) && req.MaxPrice.Equal(maxPrice)
		})).Return(&services.SearchResponse{Query: "bawang", Terms: []string{"bawang"}, Results: []services.SearchResult{}}, nil)

		handler.Search(c)

		assert.Equal(t, http.StatusOK, w.Code)
		search.AssertExpectations(t)
	})

	t.Run("Defaults type to all", func(t *testing.T) {
		search := new(MockSearch)
		handler := rest.NewStorefrontHandler(new(MockCatalog), new(MockContent), search)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/search?q=pedas", nil)
		search.On("Search", mock.Anything, services.SearchRequest{Query: "pedas", Type: services.SearchTypeAll}).
			Return(&services.SearchResponse{Query: "pedas"}, nil)

		handler.Search(c)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Bad price", func(t *testing.T) {
		search := new(MockSearch)
		handler := rest.NewStorefrontHandler(new(MockCatalog), new(MockContent), search)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/search?q=pedas&min_price=murah", nil)

		handler.Search(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "min_price", decodeBody(t, w)["field"])
		search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})
}

func TestStorefrontHandler_Sitemap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	content := new(MockContent)
	handler := rest.NewStorefrontHandler(new(MockCatalog), content, new(MockSearch))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil)
	content.On("Sitemap", mock.Anything).Return([]byte(`<?xml version="1.0"?><urlset></urlset>`), nil)

	handler.Sitemap(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<urlset>")
}
