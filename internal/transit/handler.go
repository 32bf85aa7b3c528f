package transit

import (
	"github.com/gin-gonic/gin"

	"github.com/sabanago/ride-sharing/pkg/common"
)

// Handler serves the public TransMilenio catalog.
type Handler struct {
	service *Service
}

// NewHandler creates a new transit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the catalog routes on the maps group. These are
// public: mobile clients load the catalog before login.
func (h *Handler) RegisterRoutes(maps *gin.RouterGroup) {
	tm := maps.Group("/transmilenio")
	{
		tm.GET("/routes", h.ListRoutes)
		tm.GET("/stations", h.ListStations)
		tm.GET("/stops", h.ListStops)
	}
}

// ListRoutes returns the service lines.
// GET /maps/transmilenio/routes
func (h *Handler) ListRoutes(c *gin.Context) {
	routes, err := h.service.ListRoutes(c.Request.Context())
	if common.HandleServiceError(c, err, "failed to list transit routes") {
		return
	}
	common.SuccessResponse(c, gin.H{"routes": routes})
}

// ListStations returns trunk stations.
// GET /maps/transmilenio/stations
func (h *Handler) ListStations(c *gin.Context) {
	stations, err := h.service.ListStations(c.Request.Context())
	if common.HandleServiceError(c, err, "failed to list transit stations") {
		return
	}
	common.SuccessResponse(c, gin.H{"stations": stations})
}

// ListStops returns every stop and station.
// GET /maps/transmilenio/stops
func (h *Handler) ListStops(c *gin.Context) {
	stops, err := h.service.ListStops(c.Request.Context())
	if common.HandleServiceError(c, err, "failed to list transit stops") {
		return
	}
	common.SuccessResponse(c, gin.H{"stops": stops})
}
