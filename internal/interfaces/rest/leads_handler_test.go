package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/interfaces/rest"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLeadsService is a mock implementation of rest.LeadsService
type MockLeadsService struct {
	mock.Mock
}

func (m *MockLeadsService) Subscribe(ctx context.Context, in services.SubscribeInput) (*models.Subscriber, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscriber), args.Error(1)
}

func (m *MockLeadsService) Confirm(ctx context.Context, token string) (*models.Subscriber, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscriber), args.Error(1)
}

func (m *MockLeadsService) Unsubscribe(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockLeadsService) SubmitContact(ctx context.Context, in services.ContactInput) (*models.ContactMessage, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContactMessage), args.Error(1)
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewBuffer(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestLeadsHandler_Subscribe(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Accepted", func(t *testing.T) {
		svc := new(MockLeadsService)
		handler := rest.NewLeadsHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		input := services.SubscribeInput{Email: "budi@example.com", Name: "Budi", Source: "popup"}
		c.Request = jsonRequest(t, http.MethodPost, "/api/newsletter/subscribe", input)

		svc.On("Subscribe", mock.Anything, input).Return(&models.Subscriber{ID: "s1", Status: models.SubscriberPending}, nil)

		handler.Subscribe(c)

		assert.Equal(t, http.StatusAccepted, w.Code)
		body := decodeBody(t, w)
		assert.Contains(t, body["message"], "confirm")
		assert.NotContains(t, w.Body.String(), "pending")
		svc.AssertExpectations(t)
	})

	t.Run("Honeypot looks the same", func(t *testing.T) {
		svc := new(MockLeadsService)
		handler := rest.NewLeadsHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		input := services.SubscribeInput{Email: "bot@example.com", Website: "http://spam"}
		c.Request = jsonRequest(t, http.MethodPost, "/api/newsletter/subscribe", input)

		svc.On("Subscribe", mock.Anything, input).Return(nil, nil)

		handler.Subscribe(c)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("Invalid email", func(t *testing.T) {
		svc := new(MockLeadsService)
		handler := rest.NewLeadsHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(t, http.MethodPost, "/api/newsletter/subscribe", services.SubscribeInput{Email: "nope"})

		svc.On("Subscribe", mock.Anything, mock.Anything).Return(nil, errors.NewValidationError("email", "Please enter a valid email address"))

		handler.Subscribe(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
		assert.Equal(t, "email", body["field"])
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		svc := new(MockLeadsService)
		handler := rest.NewLeadsHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/newsletter/subscribe", bytes.NewBufferString("{"))
		c.Request.Header.Set("Content-Type", "application/json")

		handler.Subscribe(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
	})
}

func TestLeadsHandler_Confirm(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		svc := new(MockLeadsService)
		handler := rest.NewLeadsHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/newsletter/confirm/tok123", nil)
		c.Params = gin.Params{{Key: "token", Value: "tok123"}}

		svc.On("Confirm", mock.Anything, "tok123").Return(&models.Subscriber{Email: "budi@example.com", Status: models.SubscriberActive}, nil)

		handler.Confirm(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "budi@example.com", decodeBody(t, w)["email"])
	})

	t.Run("Unknown token", func(t *testing.T) {
		svc := new(MockLeadsService)
		handler := rest.NewLeadsHandler(svc)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/api/newsletter/confirm/bad", nil)
		c.Params = gin.Params{{Key: "token", Value: "bad"}}

		svc.On("Confirm", mock.Anything, "bad").Return(nil, errors.NewNotFoundError("subscription", "bad"))

		handler.Confirm(c)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLeadsHandler_Unsubscribe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockLeadsService)
	handler := rest.NewLeadsHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/newsletter/unsubscribe/u1", bytes.NewBufferString("List-Unsubscribe=One-Click"))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Params = gin.Params{{Key: "token", Value: "u1"}}

	svc.On("Unsubscribe", mock.Anything, "u1").Return(nil)

	handler.Unsubscribe(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestLeadsHandler_SubmitContact(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockLeadsService)
	handler := rest.NewLeadsHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	input := services.ContactInput{Name: "sari", Email: "sari@example.com", Message: "Apakah bisa kirim ke Medan?"}
	c.Request = jsonRequest(t, http.MethodPost, "/api/contact", input)

	svc.On("SubmitContact", mock.Anything, input).Return(&models.ContactMessage{ID: "m1"}, nil)

	handler.SubmitContact(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}
