package rest

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps payment webhook payloads, as Stripe recommends
const maxWebhookBody = 65536

// OrderService takes pre-orders and checkouts
type OrderService interface {
	PlaceOrder(ctx context.Context, in services.PlaceOrderInput) (*models.Order, error)
	LookupOrder(ctx context.Context, number, email string) (*models.Order, error)
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error
}

// OrderHandler handles the public order form, order lookup and payment webhooks
type OrderHandler struct {
	svc OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// PlaceOrder handles POST /api/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req services.PlaceOrderInput
	if !BindJSON(c, &req) {
		return
	}
	req.VisitorID = c.GetString(constants.ContextKeyVisitorID)

	order, err := h.svc.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if order == nil {
		// honeypot: look successful, store nothing
		c.JSON(http.StatusCreated, gin.H{constants.FieldMessage: "Order received"})
		return
	}

	resp := gin.H{constants.FieldMessage: "Order received", "order": order}
	if order.CheckoutURL != "" {
		resp["checkout_url"] = order.CheckoutURL
	}
	c.JSON(http.StatusCreated, resp)
}

// LookupOrder handles GET /api/orders/:number?email=
func (h *OrderHandler) LookupOrder(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		RespondAppError(c, errors.NewValidationError("email", "Email is required"))
		return
	}
	HandleGetEnvelope(c, "order", func() (interface{}, error) {
		return h.svc.LookupOrder(c.Request.Context(), c.Param("number"), email)
	})
}

// PaymentWebhook handles POST /api/payments/webhook
func (h *OrderHandler) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		RespondAppError(c, errors.NewValidationError("body", "Unreadable payload"))
		return
	}

	if err := h.svc.HandlePaymentWebhook(c.Request.Context(), payload, c.GetHeader(constants.HeaderStripeSig)); err != nil {
		if errors.IsValidation(err) {
			log.Printf("⚠️ Rejected payment webhook: %v", err)
		}
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// OrderAdminService is the dashboard's view of orders
type OrderAdminService interface {
	ListOrders(ctx context.Context, status string, limit, offset int) ([]*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	Transition(ctx context.Context, id, action string) (*models.Order, error)
}

// TransitionRequest names an order action: pay, fulfill, cancel or refund
type TransitionRequest struct {
	Action string `json:"action" binding:"required"`
}

// OrderAdminHandler handles the admin order API
type OrderAdminHandler struct {
	svc OrderAdminService
}

// NewOrderAdminHandler creates a new OrderAdminHandler
func NewOrderAdminHandler(svc OrderAdminService) *OrderAdminHandler {
	return &OrderAdminHandler{svc: svc}
}

// List handles GET /api/admin/orders?status=&limit=&offset=
func (h *OrderAdminHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, "orders", func() (interface{}, error) {
		return h.svc.ListOrders(c.Request.Context(), c.Query("status"), limit, offset)
	})
}

// Get handles GET /api/admin/orders/:id
func (h *OrderAdminHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "order", func() (interface{}, error) {
		return h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	})
}

// Transition handles POST /api/admin/orders/:id/transition
func (h *OrderAdminHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	HandleUpdateEnvelope(c, "order", "Order updated", &req, func() (interface{}, error) {
		return h.svc.Transition(c.Request.Context(), c.Param("id"), req.Action)
	})
}
