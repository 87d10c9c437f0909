package rest

import (
	"context"
	"net/http"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/gin-gonic/gin"
)

// ExperimentService runs A/B tests
type ExperimentService interface {
	Assign(ctx context.Context, key, visitorID string, attrs map[string]interface{}) (*services.Assignment, error)
	Convert(ctx context.Context, key, visitorID string) (bool, error)
	Results(ctx context.Context, key string) (*services.ExperimentResults, error)
	ListExperiments(ctx context.Context) ([]*models.Experiment, error)
	GetExperiment(ctx context.Context, id string) (*models.Experiment, error)
	CreateExperiment(ctx context.Context, in services.ExperimentInput) (*models.Experiment, error)
	UpdateExperiment(ctx context.Context, id string, in services.ExperimentInput) (*models.Experiment, error)
	SetStatus(ctx context.Context, id, status string) (*models.Experiment, error)
}

// AssignRequest carries targeting attributes such as locale or landing page
type AssignRequest struct {
	Attributes map[string]interface{} `json:"attributes"`
}

// ExperimentStatusRequest moves an experiment between draft, running and stopped
type ExperimentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ExperimentHandler handles visitor assignment and the admin experiment API
type ExperimentHandler struct {
	svc ExperimentService
}

// NewExperimentHandler creates a new ExperimentHandler
func NewExperimentHandler(svc ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{svc: svc}
}

// Assign handles POST /api/experiments/:key/assign
func (h *ExperimentHandler) Assign(c *gin.Context) {
	var req AssignRequest
	if c.Request.ContentLength != 0 && !BindJSON(c, &req) {
		return
	}
	assignment, err := h.svc.Assign(c.Request.Context(), c.Param("key"), c.GetString(constants.ContextKeyVisitorID), req.Attributes)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignment)
}

// Convert handles POST /api/experiments/:key/convert
func (h *ExperimentHandler) Convert(c *gin.Context) {
	first, err := h.svc.Convert(c.Request.Context(), c.Param("key"), c.GetString(constants.ContextKeyVisitorID))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"converted": first})
}

// List handles GET /api/admin/experiments
func (h *ExperimentHandler) List(c *gin.Context) {
	HandleGetEnvelope(c, "experiments", func() (interface{}, error) {
		return h.svc.ListExperiments(c.Request.Context())
	})
}

// Get handles GET /api/admin/experiments/:id
func (h *ExperimentHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "experiment", func() (interface{}, error) {
		return h.svc.GetExperiment(c.Request.Context(), c.Param("id"))
	})
}

// Create handles POST /api/admin/experiments
func (h *ExperimentHandler) Create(c *gin.Context) {
	var in services.ExperimentInput
	HandleCreateEnvelope(c, "experiment", "Experiment created", &in, func() (interface{}, error) {
		return h.svc.CreateExperiment(c.Request.Context(), in)
	})
}

// Update handles PUT /api/admin/experiments/:id
func (h *ExperimentHandler) Update(c *gin.Context) {
	var in services.ExperimentInput
	HandleUpdateEnvelope(c, "experiment", "Experiment updated", &in, func() (interface{}, error) {
		return h.svc.UpdateExperiment(c.Request.Context(), c.Param("id"), in)
	})
}

// SetStatus handles POST /api/admin/experiments/:id/status
func (h *ExperimentHandler) SetStatus(c *gin.Context) {
	var req ExperimentStatusRequest
	HandleUpdateEnvelope(c, "experiment", "Experiment status updated", &req, func() (interface{}, error) {
		return h.svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	})
}

// Results handles GET /api/admin/experiments/:id/results
func (h *ExperimentHandler) Results(c *gin.Context) {
	HandleGetEnvelope(c, "results", func() (interface{}, error) {
		e, err := h.svc.GetExperiment(c.Request.Context(), c.Param("id"))
		if err != nil {
			return nil, err
		}
		return h.svc.Results(c.Request.Context(), e.Key)
	})
}
