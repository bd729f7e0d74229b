package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/polychat/internal/gateway"
	"github.com/nulzo/polychat/pkg/api"
)

type ModelHandler struct {
	service gateway.Service
}

func NewModelHandler(service gateway.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// ListModels returns the registry contents.
//
// GET /api/v1/models
func (h *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, api.ModelList{
		Object: "list",
		Data:   h.service.Models(),
	})
}
