package rest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/gin-gonic/gin"
)

// AudienceService exposes subscribers and contact messages to the dashboard
type AudienceService interface {
	ListSubscribers(ctx context.Context, req services.SubscriberListRequest) ([]*models.Subscriber, error)
	ExportSubscribersCSV(ctx context.Context, req services.SubscriberListRequest, w io.Writer) error
	ListContacts(ctx context.Context, unreadOnly bool, limit, offset int) ([]*models.ContactMessage, error)
	ReadContact(ctx context.Context, id string) (*models.ContactMessage, error)
}

// AudienceHandler handles the admin subscriber and inbox views
type AudienceHandler struct {
	svc AudienceService
}

// NewAudienceHandler creates a new AudienceHandler
func NewAudienceHandler(svc AudienceService) *AudienceHandler {
	return &AudienceHandler{svc: svc}
}

func subscriberListRequest(c *gin.Context) (services.SubscriberListRequest, error) {
	req := services.SubscriberListRequest{Status: c.Query("status"), Filter: c.Query("filter")}
	var err error
	if req.Limit, err = queryInt(c, "limit", 50); err != nil {
		return req, err
	}
	req.Offset, err = queryInt(c, "offset", 0)
	return req, err
}

// ListSubscribers handles GET /api/admin/subscribers?status=&filter=&limit=&offset=
func (h *AudienceHandler) ListSubscribers(c *gin.Context) {
	req, err := subscriberListRequest(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, "subscribers", func() (interface{}, error) {
		return h.svc.ListSubscribers(c.Request.Context(), req)
	})
}

// ExportSubscribers handles GET /api/admin/subscribers/export
func (h *AudienceHandler) ExportSubscribers(c *gin.Context) {
	req, err := subscriberListRequest(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	// Validation errors must be reported before the CSV headers go out
	if _, err := h.svc.ListSubscribers(c.Request.Context(), services.SubscriberListRequest{Status: req.Status, Filter: req.Filter, Limit: 1}); err != nil {
		RespondAppError(c, err)
		return
	}

	filename := fmt.Sprintf("subscribers-%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := h.svc.ExportSubscribersCSV(c.Request.Context(), req, c.Writer); err != nil {
		// Headers are already sent; the truncated file is all we can do
		_ = c.Error(err)
	}
}

// ListContacts handles GET /api/admin/contacts?unread=true
func (h *AudienceHandler) ListContacts(c *gin.Context) {
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
	HandleGetEnvelope(c, "contacts", func() (interface{}, error) {
		return h.svc.ListContacts(c.Request.Context(), c.Query("unread") == "true", limit, offset)
	})
}

// ReadContact handles GET /api/admin/contacts/:id and marks the message read
func (h *AudienceHandler) ReadContact(c *gin.Context) {
	HandleGetEnvelope(c, "contact", func() (interface{}, error) {
		return h.svc.ReadContact(c.Request.Context(), c.Param("id"))
	})
}
