package rest

import (
	"context"
	"net/http"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/gin-gonic/gin"
)

// CampaignService manages email campaigns
type CampaignService interface {
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	CreateCampaign(ctx context.Context, in services.CampaignInput) (*models.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, in services.CampaignInput) (*models.Campaign, error)
	Schedule(ctx context.Context, id string) (*models.Campaign, error)
	Cancel(ctx context.Context, id string) (*models.Campaign, error)
	SendNow(ctx context.Context, id string) (int, error)
	Preview(ctx context.Context, id, subscriberID string) (*services.CampaignPreview, error)
	DeliveryStats(ctx context.Context, id string) (map[string]int, error)
}

// CampaignHandler handles the admin campaign API
type CampaignHandler struct {
	svc CampaignService
}

// NewCampaignHandler creates a new CampaignHandler
func NewCampaignHandler(svc CampaignService) *CampaignHandler {
	return &CampaignHandler{svc: svc}
}

// List handles GET /api/admin/campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	HandleGetEnvelope(c, "campaigns", func() (interface{}, error) {
		return h.svc.ListCampaigns(c.Request.Context())
	})
}

// Get handles GET /api/admin/campaigns/:id
func (h *CampaignHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "campaign", func() (interface{}, error) {
		return h.svc.GetCampaign(c.Request.Context(), c.Param("id"))
	})
}

// Create handles POST /api/admin/campaigns. New campaigns start as drafts.
func (h *CampaignHandler) Create(c *gin.Context) {
	var in services.CampaignInput
	HandleCreateEnvelope(c, "campaign", "Campaign created", &in, func() (interface{}, error) {
		return h.svc.CreateCampaign(c.Request.Context(), in)
	})
}

// Update handles PUT /api/admin/campaigns/:id
func (h *CampaignHandler) Update(c *gin.Context) {
	var in services.CampaignInput
	HandleUpdateEnvelope(c, "campaign", "Campaign updated", &in, func() (interface{}, error) {
		return h.svc.UpdateCampaign(c.Request.Context(), c.Param("id"), in)
	})
}

// Schedule handles POST /api/admin/campaigns/:id/schedule
func (h *CampaignHandler) Schedule(c *gin.Context) {
	HandleGetEnvelope(c, "campaign", func() (interface{}, error) {
		return h.svc.Schedule(c.Request.Context(), c.Param("id"))
	})
}

// Cancel handles POST /api/admin/campaigns/:id/cancel
func (h *CampaignHandler) Cancel(c *gin.Context) {
	HandleGetEnvelope(c, "campaign", func() (interface{}, error) {
		return h.svc.Cancel(c.Request.Context(), c.Param("id"))
	})
}

// SendNow handles POST /api/admin/campaigns/:id/send. It blocks until the run ends.
func (h *CampaignHandler) SendNow(c *gin.Context) {
	sent, err := h.svc.SendNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: "Campaign sent", "sent": sent})
}

// Preview handles GET /api/admin/campaigns/:id/preview?subscriber_id=
func (h *CampaignHandler) Preview(c *gin.Context) {
	HandleGetEnvelope(c, "preview", func() (interface{}, error) {
		return h.svc.Preview(c.Request.Context(), c.Param("id"), c.Query("subscriber_id"))
	})
}

// Stats handles GET /api/admin/campaigns/:id/stats
func (h *CampaignHandler) Stats(c *gin.Context) {
	HandleGetEnvelope(c, "stats", func() (interface{}, error) {
		return h.svc.DeliveryStats(c.Request.Context(), c.Param("id"))
	})
}
