package vehicles

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/middleware"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/storage"
)

// Handler handles HTTP requests for the vehicle registry.
type Handler struct {
	service *Service
	store   storage.Store
	cfg     config.StorageConfig
}

// NewHandler creates a new vehicles handler.
func NewHandler(service *Service, store storage.Store, cfg config.StorageConfig) *Handler {
	return &Handler{service: service, store: store, cfg: cfg}
}

// RegisterRoutes wires the vehicle endpoints. All of them sit behind the
// auth middleware; the review decision additionally requires the admin role.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.POST("", h.Create)
	group.POST("/validate", h.Validate)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.PUT("/:id/activate", h.Activate)
	group.POST("/:id/request-review", h.RequestReview)
	group.PUT("/:id/review", middleware.RequireRole(models.RoleAdmin), h.Review)

	group.GET("/:id/pickup-points", h.ListPickupPoints)
	group.POST("/:id/pickup-points", h.AddPickupPoint)
	group.PUT("/:id/pickup-points/:pointId", h.UpdatePickupPoint)
	group.DELETE("/:id/pickup-points/:pointId", h.DeletePickupPoint)
}

// List returns the caller's vehicles with their computed meta.
func (h *Handler) List(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	owned, err := h.service.ListByOwner(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to list vehicles") {
		return
	}

	common.SuccessResponse(c, owned)
}

// Create registers a vehicle. The payload arrives as JSON or as a multipart
// form carrying the document photos.
func (h *Handler) Create(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	if c.ContentType() == "multipart/form-data" {
		h.createMultipart(c, userID)
		return
	}

	var req models.CreateVehicleRequest
	if !common.BindJSON(c, &req) {
		return
	}

	vehicle, err := h.service.Create(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to create vehicle") {
		return
	}

	common.CreatedResponse(c, vehicle)
}

func (h *Handler) createMultipart(c *gin.Context, userID uuid.UUID) {
	req, err := createRequestFromForm(c)
	if common.HandleServiceError(c, err, "invalid form payload") {
		return
	}

	up := newUploader(h.store, h.cfg, userID)
	if err := up.applyCreate(c, req); err != nil {
		up.rollback(c)
		common.HandleServiceError(c, err, "upload failed")
		return
	}

	vehicle, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		up.rollback(c)
		common.HandleServiceError(c, err, "failed to create vehicle")
		return
	}

	common.CreatedResponse(c, vehicle)
}

// Update applies a partial edit, again as JSON or multipart.
func (h *Handler) Update(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}

	if c.ContentType() == "multipart/form-data" {
		h.updateMultipart(c, userID, vehicleID)
		return
	}

	var req models.UpdateVehicleRequest
	if !common.BindJSON(c, &req) {
		return
	}

	vehicle, err := h.service.Update(c.Request.Context(), userID, vehicleID, &req)
	if common.HandleServiceError(c, err, "failed to update vehicle") {
		return
	}

	common.SuccessResponse(c, vehicle)
}

func (h *Handler) updateMultipart(c *gin.Context, userID, vehicleID uuid.UUID) {
	req, err := updateRequestFromForm(c)
	if common.HandleServiceError(c, err, "invalid form payload") {
		return
	}

	up := newUploader(h.store, h.cfg, userID)
	if err := up.applyUpdate(c, req); err != nil {
		up.rollback(c)
		common.HandleServiceError(c, err, "upload failed")
		return
	}

	vehicle, err := h.service.Update(c.Request.Context(), userID, vehicleID, req)
	if err != nil {
		up.rollback(c)
		common.HandleServiceError(c, err, "failed to update vehicle")
		return
	}

	common.SuccessResponse(c, vehicle)
}

// Delete removes a vehicle and recomputes the owner's driver capability.
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, vehicleID); common.HandleServiceError(c, err, "failed to delete vehicle") {
		return
	}

	common.SuccessResponse(c, gin.H{"message": "vehicle deleted"})
}

// Activate sets the owner's active vehicle.
func (h *Handler) Activate(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}

	vehicle, err := h.service.Activate(c.Request.Context(), userID, vehicleID)
	if common.HandleServiceError(c, err, "failed to activate vehicle") {
		return
	}

	common.SuccessResponse(c, vehicle)
}

// Validate dry-runs the create validation without persisting anything.
func (h *Handler) Validate(c *gin.Context) {
	var req models.CreateVehicleRequest
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.service.ValidateNew(c.Request.Context(), &req); common.HandleServiceError(c, err, "validation failed") {
		return
	}

	common.SuccessResponse(c, gin.H{"valid": true})
}

// RequestReview queues the vehicle for an admin decision.
func (h *Handler) RequestReview(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}

	vehicle, err := h.service.RequestReview(c.Request.Context(), userID, vehicleID)
	if common.HandleServiceError(c, err, "failed to request review") {
		return
	}

	common.SuccessResponse(c, vehicle)
}

// Review records the admin decision on a vehicle under review.
func (h *Handler) Review(c *gin.Context) {
	reviewerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}

	var req models.ReviewVehicleRequest
	if !common.BindJSON(c, &req) {
		return
	}

	vehicle, err := h.service.Review(c.Request.Context(), reviewerID, vehicleID, &req)
	if common.HandleServiceError(c, err, "failed to review vehicle") {
		return
	}

	common.SuccessResponse(c, vehicle)
}

// ListPickupPoints returns the boarding spots of an owned vehicle.
func (h *Handler) ListPickupPoints(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}

	points, err := h.service.ListPickupPoints(c.Request.Context(), userID, vehicleID)
	if common.HandleServiceError(c, err, "failed to list pickup points") {
		return
	}

	common.SuccessResponse(c, points)
}

// AddPickupPoint appends a boarding spot to an owned vehicle.
func (h *Handler) AddPickupPoint(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}

	var req models.PickupPointRequest
	if !common.BindJSON(c, &req) {
		return
	}

	point, err := h.service.AddPickupPoint(c.Request.Context(), userID, vehicleID, &req)
	if common.HandleServiceError(c, err, "failed to add pickup point") {
		return
	}

	common.CreatedResponse(c, point)
}

// UpdatePickupPoint rewrites one boarding spot.
func (h *Handler) UpdatePickupPoint(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}
	pointID, ok := common.ParseUUIDParam(c, "pointId", "pickup point id")
	if !ok {
		return
	}

	var req models.PickupPointRequest
	if !common.BindJSON(c, &req) {
		return
	}

	point, err := h.service.UpdatePickupPoint(c.Request.Context(), userID, vehicleID, pointID, &req)
	if common.HandleServiceError(c, err, "failed to update pickup point") {
		return
	}

	common.SuccessResponse(c, point)
}

// DeletePickupPoint removes one boarding spot.
func (h *Handler) DeletePickupPoint(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	vehicleID, ok := common.ParseUUIDParam(c, "id", "vehicle id")
	if !ok {
		return
	}
	pointID, ok := common.ParseUUIDParam(c, "pointId", "pickup point id")
	if !ok {
		return
	}

	if err := h.service.DeletePickupPoint(c.Request.Context(), userID, vehicleID, pointID); common.HandleServiceError(c, err, "failed to delete pickup point") {
		return
	}

	common.SuccessResponse(c, gin.H{"message": "pickup point removed"})
}
