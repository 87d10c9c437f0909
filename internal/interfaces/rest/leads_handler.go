package rest

import (
	"context"
	"net/http"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/gin-gonic/gin"
)

// LeadsService collects newsletter signups and contact messages
type LeadsService interface {
	Subscribe(ctx context.Context, in services.SubscribeInput) (*models.Subscriber, error)
	Confirm(ctx context.Context, token string) (*models.Subscriber, error)
	Unsubscribe(ctx context.Context, token string) error
	SubmitContact(ctx context.Context, in services.ContactInput) (*models.ContactMessage, error)
}

// Messages shown to visitors. Signup answers are identical whatever the
// address's state so the form does not reveal who is subscribed.
const (
	msgSubscribed   = "Thanks! Please check your inbox to confirm your subscription."
	msgConfirmed    = "Your subscription is confirmed. Selamat datang!"
	msgUnsubscribed = "You have been unsubscribed."
	msgContactSent  = "Thanks for reaching out. We will reply within one working day."
)

// LeadsHandler handles the public newsletter and contact forms
type LeadsHandler struct {
	svc LeadsService
}

// NewLeadsHandler creates a new LeadsHandler
func NewLeadsHandler(svc LeadsService) *LeadsHandler {
	return &LeadsHandler{svc: svc}
}

// Subscribe handles POST /api/newsletter/subscribe
func (h *LeadsHandler) Subscribe(c *gin.Context) {
	var req services.SubscribeInput
	if !BindJSON(c, &req) {
		return
	}
	if _, err := h.svc.Subscribe(c.Request.Context(), req); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{constants.FieldMessage: msgSubscribed})
}

// Confirm handles GET /api/newsletter/confirm/:token
func (h *LeadsHandler) Confirm(c *gin.Context) {
	sub, err := h.svc.Confirm(c.Request.Context(), c.Param("token"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: msgConfirmed, "email": sub.Email})
}

// Unsubscribe handles POST /api/newsletter/unsubscribe/:token, including
// RFC 8058 one-click posts from mail clients
func (h *LeadsHandler) Unsubscribe(c *gin.Context) {
	if err := h.svc.Unsubscribe(c.Request.Context(), c.Param("token")); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: msgUnsubscribed})
}

// SubmitContact handles POST /api/contact
func (h *LeadsHandler) SubmitContact(c *gin.Context) {
	var req services.ContactInput
	if !BindJSON(c, &req) {
		return
	}
	if _, err := h.svc.SubmitContact(c.Request.Context(), req); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{constants.FieldMessage: msgContactSent})
}
