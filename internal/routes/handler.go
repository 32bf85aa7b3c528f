package routes

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sabanago/ride-sharing/pkg/common"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the authenticated routing endpoints under the maps group.
func (h *Handler) RegisterRoutes(maps *gin.RouterGroup) {
	maps.GET("/distance", h.Distance)
	maps.POST("/calculate", h.Calculate)
}

// RegisterPublicRoutes wires the endpoints the app calls before login.
func (h *Handler) RegisterPublicRoutes(maps *gin.RouterGroup) {
	maps.GET("/route-suggest", h.RouteSuggest)
}

// Distance returns road distance and duration between two points.
func (h *Handler) Distance(c *gin.Context) {
	origin, err := coordinateQuery(c, "from_lat", "from_lng")
	if common.HandleServiceError(c, err, "invalid origin") {
		return
	}
	destination, err := coordinateQuery(c, "to_lat", "to_lng")
	if common.HandleServiceError(c, err, "invalid destination") {
		return
	}

	route, err := h.service.Lookup(c.Request.Context(), origin, destination, Mode(c.Query("mode")))
	if common.HandleServiceError(c, err, "Failed to calculate distance") {
		return
	}

	common.SuccessResponse(c, gin.H{
		"distance_meters":  route.DistanceMeters,
		"distance_km":      route.DistanceKm(),
		"duration_seconds": route.DurationSeconds,
		"duration_minutes": route.DurationMinutes(),
		"provider":         route.Provider,
		"cache_hit":        route.CacheHit,
	})
}

type calculateRequest struct {
	Origin      *Coordinate `json:"origin" binding:"required"`
	Destination *Coordinate `json:"destination" binding:"required"`
	Mode        Mode        `json:"mode"`
}

// Calculate returns the full route, polyline included.
func (h *Handler) Calculate(c *gin.Context) {
	var req calculateRequest
	if !common.BindJSON(c, &req) {
		return
	}

	route, err := h.service.Lookup(c.Request.Context(), *req.Origin, *req.Destination, req.Mode)
	if common.HandleServiceError(c, err, "Failed to calculate route") {
		return
	}

	common.SuccessResponse(c, route)
}

// RouteSuggest returns the route together with a tariff estimate so the trip
// form can prefill price_per_seat.
func (h *Handler) RouteSuggest(c *gin.Context) {
	origin, err := coordinateQuery(c, "from_lat", "from_lng")
	if common.HandleServiceError(c, err, "invalid origin") {
		return
	}
	destination, err := coordinateQuery(c, "to_lat", "to_lng")
	if common.HandleServiceError(c, err, "invalid destination") {
		return
	}

	route, suggestion, err := h.service.RouteSuggest(c.Request.Context(), origin, destination, Mode(c.Query("mode")))
	if common.HandleServiceError(c, err, "Failed to suggest route") {
		return
	}

	common.SuccessResponse(c, gin.H{
		"route":  route,
		"tariff": suggestion,
	})
}

// coordinateQuery reads a lat/lng pair from the query string. Zero is inside
// the valid latitude range, so missing and malformed values are rejected
// instead of defaulted.
func coordinateQuery(c *gin.Context, latParam, lngParam string) (Coordinate, error) {
	lat, err := floatQuery(c, latParam)
	if err != nil {
		return Coordinate{}, err
	}
	lng, err := floatQuery(c, lngParam)
	if err != nil {
		return Coordinate{}, err
	}
	return Coordinate{Latitude: lat, Longitude: lng}, nil
}

func floatQuery(c *gin.Context, name string) (float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return 0, common.NewBadRequestError(name+" is required", nil)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, common.NewBadRequestError(name+" must be a number", nil)
	}
	return value, nil
}
