package rest_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/interfaces/rest"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockOrderService is a mock implementation of rest.OrderService and rest.OrderAdminService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) PlaceOrder(ctx context.Context, in services.PlaceOrderInput) (*models.Order, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) LookupOrder(ctx context.Context, number, email string) (*models.Order, error) {
	args := m.Called(ctx, number, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func (m *MockOrderService) ListOrders(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) Transition(ctx context.Context, id, action string) (*models.Order, error) {
	args := m.Called(ctx, id, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func TestOrderHandler_PlaceOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Checkout passes visitor id and returns url", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := rest.NewOrderHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set(constants.ContextKeyVisitorID, "vis-1")
		input := services.PlaceOrderInput{
			Name:            "Dewi",
			Email:           "dewi@example.com",
			Phone:           "081234567890",
			ShippingAddress: "Jl. Kaliurang 5",
			City:            "Yogyakarta",
			PostalCode:      "55281",
			Items:           []services.LineRequest{{Slug: "sambal-matah", Quantity: 2}},
		}
		c.Request = jsonRequest(t, http.MethodPost, "/api/orders", input)

		expected := input
		expected.VisitorID = "vis-1"
		svc.On("PlaceOrder", mock.Anything, expected).Return(&models.Order{
			OrderNumber: "DS-20260101-ABC123",
			Status:      "pending_payment",
			Total:       decimal.NewFromInt(95000),
			CheckoutURL: "https://checkout.stripe.com/c/pay/cs_test",
		}, nil)

		handler.PlaceOrder(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test", body["checkout_url"])
		order := body["order"].(map[string]interface{})
		assert.Equal(t, "DS-20260101-ABC123", order["order_number"])
		svc.AssertExpectations(t)
	})

	t.Run("Honeypot", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := rest.NewOrderHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(t, http.MethodPost, "/api/orders", services.PlaceOrderInput{Website: "x"})
		svc.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, nil)

		handler.PlaceOrder(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, decodeBody(t, w), "order")
	})

	t.Run("Out of stock", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := rest.NewOrderHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(t, http.MethodPost, "/api/orders", services.PlaceOrderInput{Name: "Dewi"})
		svc.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, errors.NewValidationError("items", "Sambal Matah is out of stock"))

		handler.PlaceOrder(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "items", decodeBody(t, w)["field"])
	})
}

func TestOrderHandler_LookupOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Email required", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := rest.NewOrderHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/orders/DS-1", nil)
		c.Params = gin.Params{{Key: "number", Value: "DS-1"}}

		handler.LookupOrder(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "LookupOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Found", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := rest.NewOrderHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/orders/DS-1?email=dewi@example.com", nil)
		c.Params = gin.Params{{Key: "number", Value: "DS-1"}}
		svc.On("LookupOrder", mock.Anything, "DS-1", "dewi@example.com").Return(&models.Order{OrderNumber: "DS-1", Status: "paid"}, nil)

		handler.LookupOrder(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"paid"`)
	})
}

func TestOrderHandler_PaymentWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Forwards payload and signature", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := rest.NewOrderHandler(svc)

		payload := []byte(`{"type":"checkout.session.completed"}`)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewBuffer(payload))
		c.Request.Header.Set(constants.HeaderStripeSig, "t=1,v1=abc")
		svc.On("HandlePaymentWebhook", mock.Anything, payload, "t=1,v1=abc").Return(nil)

		handler.PaymentWebhook(c)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Bad signature", func(t *testing.T) {
		svc := new(MockOrderService)
		handler := rest.NewOrderHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewBufferString("{}"))
		svc.On("HandlePaymentWebhook", mock.Anything, mock.Anything, "").Return(errors.NewValidationError("signature", "no signatures found"))

		handler.PaymentWebhook(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrderAdminHandler_Transition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockOrderService)
	handler := rest.NewOrderAdminHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/admin/orders/o1/transition", rest.TransitionRequest{Action: "fulfill"})
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	svc.On("Transition", mock.Anything, "o1", "fulfill").Return(nil, errors.NewValidationError("status", "invalid order transition: cannot fulfill from pending_payment"))

	handler.Transition(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestOrderAdminHandler_ListRejectsBadLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockOrderService)
	handler := rest.NewOrderAdminHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/admin/orders?limit=ten", nil)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "limit", decodeBody(t, w)["field"])
}
