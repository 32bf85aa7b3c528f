package tariff

import (
	"github.com/gin-gonic/gin"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/models"
)

// Handler serves tariff suggestions.
type Handler struct {
	service *Service
}

// NewHandler creates a new tariff handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the suggestion endpoint on the trips group.
func (h *Handler) RegisterRoutes(trips *gin.RouterGroup) {
	trips.POST("/tariff/suggest", h.Suggest)
}

// Suggest computes a per-seat price recommendation.
// POST /trips/tariff/suggest
func (h *Handler) Suggest(c *gin.Context) {
	var req models.TariffSuggestRequest
	if !common.BindJSON(c, &req) {
		return
	}

	suggestion, err := h.service.Suggest(&req)
	if common.HandleServiceError(c, err, "failed to compute tariff") {
		return
	}

	common.SuccessResponse(c, suggestion)
}
