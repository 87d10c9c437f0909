package rest

import (
	"context"
	"net/http"

	"github.com/dapursambal/storefront/internal/application/services"
	"github.com/gin-gonic/gin"
)

// DashboardService summarises the shop for the admin home page
type DashboardService interface {
	Summary(ctx context.Context) (*services.DashboardSummary, error)
}

// ReportService runs validated read-only report queries
type ReportService interface {
	Query(ctx context.Context, statement string) (*services.ReportResult, error)
}

// AdminHandler handles the dashboard and ad-hoc reports
type AdminHandler struct {
	dashboard DashboardService
	reports   ReportService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(dashboard DashboardService, reports ReportService) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, reports: reports}
}

// Dashboard handles GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	HandleGetEnvelope(c, "data", func() (interface{}, error) {
		return h.dashboard.Summary(c.Request.Context())
	})
}

// ReportQueryRequest is an admin report statement
type ReportQueryRequest struct {
	SQL string `json:"sql" binding:"required"`
}

// RunReport handles POST /api/admin/reports/query.
// Only single SELECTs over reportable tables get through; see ReportValidator.
func (h *AdminHandler) RunReport(c *gin.Context) {
	var req ReportQueryRequest
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.reports.Query(c.Request.Context(), req.SQL)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
