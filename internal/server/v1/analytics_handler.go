package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/polychat/internal/analytics"
	"github.com/nulzo/polychat/pkg/api"
)

type AnalyticsHandler struct {
	service analytics.Service
}

// NewAnalyticsHandler accepts a nil service, in which case the endpoint reports 503.
func NewAnalyticsHandler(service analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

// GET /api/v1/analytics/usage?days=7
func (h *AnalyticsHandler) GetUsage(c *gin.Context) {
	if h.service == nil {
		_ = c.Error(api.UnavailableError("Analytics store is disabled"))
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 0 {
		_ = c.Error(api.BadRequestError("Invalid 'days' parameter"))
		return
	}

	stats, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   stats,
	})
}
