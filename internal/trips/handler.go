package trips

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/middleware"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/pagination"
)

// Handler handles HTTP requests for the trip engine.
type Handler struct {
	service *Service
}

// NewHandler creates a new trips handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the trip endpoints. Everything sits behind the auth
// middleware; publishing requires the driver role, and per-trip driver
// actions are enforced by ownership checks in the service.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.POST("", middleware.RequireRole(models.RoleDriver), h.Create)
	group.GET("/mine", h.Mine)
	group.GET("/:id", h.Get)
	group.PUT("/:id/cancel", h.Cancel)
	group.PUT("/:id/complete", h.Complete)
	group.GET("/:id/passengers", h.Passengers)

	group.POST("/:id/reservations", h.Reserve)
	group.PUT("/:id/reservations/:reservationId/confirm", h.ConfirmReservation)
	group.PUT("/:id/reservations/:reservationId/reject", h.RejectReservation)
	group.PUT("/:id/reservations/:reservationId/cancel", h.CancelReservation)

	group.POST("/:id/pickup-suggestions", h.SuggestPickup)
	group.PUT("/:id/pickup-suggestions/:suggestionId/accept", h.AcceptSuggestion)
	group.PUT("/:id/pickup-suggestions/:suggestionId/reject", h.RejectSuggestion)
}

// List returns open trips, filtered and paginated.
func (h *Handler) List(c *gin.Context) {
	var filters models.TripFilters
	if !common.BindQuery(c, &filters) {
		return
	}
	params := pagination.ParseParams(c)

	trips, total, err := h.service.List(c.Request.Context(), &filters, params)
	if common.HandleServiceError(c, err, "failed to list trips") {
		return
	}

	common.SuccessResponseWithMeta(c, trips, pagination.BuildMeta(params, total))
}

// Create publishes a trip.
func (h *Handler) Create(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req models.CreateTripRequest
	if !common.BindJSON(c, &req) {
		return
	}

	trip, err := h.service.Create(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to create trip") {
		return
	}

	common.CreatedResponse(c, trip)
}

// Mine returns the caller's trips, as driver or as passenger.
func (h *Handler) Mine(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	trips, err := h.service.MyTrips(c.Request.Context(), userID, c.Query("role"))
	if common.HandleServiceError(c, err, "failed to list trips") {
		return
	}

	common.SuccessResponse(c, trips)
}

// Get returns one trip with the caller's view of its details.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	detail, err := h.service.GetTrip(c.Request.Context(), tripID, userID)
	if common.HandleServiceError(c, err, "failed to load trip") {
		return
	}

	common.SuccessResponse(c, detail)
}

// Cancel cancels the caller's trip and sweeps its active reservations.
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	trip, err := h.service.CancelTrip(c.Request.Context(), tripID, userID)
	if common.HandleServiceError(c, err, "failed to cancel trip") {
		return
	}

	common.SuccessResponse(c, trip)
}

// Complete marks the caller's trip completed.
func (h *Handler) Complete(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	trip, err := h.service.CompleteTrip(c.Request.Context(), tripID, userID)
	if common.HandleServiceError(c, err, "failed to complete trip") {
		return
	}

	common.SuccessResponse(c, trip)
}

// Passengers returns the driver's manifest for a trip.
func (h *Handler) Passengers(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	entries, err := h.service.Manifest(c.Request.Context(), tripID, userID)
	if common.HandleServiceError(c, err, "failed to load passenger manifest") {
		return
	}

	common.SuccessResponse(c, entries)
}

// Reserve books seats on a trip.
func (h *Handler) Reserve(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	var req models.CreateReservationRequest
	if !common.BindJSON(c, &req) {
		return
	}

	outcome, err := h.service.Reserve(c.Request.Context(), tripID, userID, &req)
	if common.HandleServiceError(c, err, "failed to reserve seats") {
		return
	}

	common.CreatedResponse(c, outcome)
}

// ConfirmReservation accepts a pending reservation on the caller's trip.
func (h *Handler) ConfirmReservation(c *gin.Context) {
	h.transitionReservation(c, h.service.ConfirmReservation, "failed to confirm reservation")
}

// RejectReservation declines a pending reservation on the caller's trip.
func (h *Handler) RejectReservation(c *gin.Context) {
	h.transitionReservation(c, h.service.RejectReservation, "failed to reject reservation")
}

// CancelReservation releases a reservation, called by the trip's driver or
// the owning passenger.
func (h *Handler) CancelReservation(c *gin.Context) {
	h.transitionReservation(c, h.service.CancelReservation, "failed to cancel reservation")
}

func (h *Handler) transitionReservation(c *gin.Context, transition func(ctx context.Context, tripID, reservationID, callerID uuid.UUID) (*models.Reservation, error), fallback string) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}
	reservationID, ok := common.ParseUUIDParam(c, "reservationId", "reservation id")
	if !ok {
		return
	}

	reservation, err := transition(c.Request.Context(), tripID, reservationID, userID)
	if common.HandleServiceError(c, err, fallback) {
		return
	}

	common.SuccessResponse(c, reservation)
}

// SuggestPickup files a boarding spot proposal on a trip.
func (h *Handler) SuggestPickup(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	var req models.SuggestPickupRequest
	if !common.BindJSON(c, &req) {
		return
	}

	suggestion, err := h.service.SuggestPickup(c.Request.Context(), tripID, userID, &req)
	if common.HandleServiceError(c, err, "failed to store pickup suggestion") {
		return
	}

	common.CreatedResponse(c, suggestion)
}

// AcceptSuggestion keeps a proposed pickup point on the caller's trip.
func (h *Handler) AcceptSuggestion(c *gin.Context) {
	h.resolveSuggestion(c, h.service.AcceptSuggestion, "failed to accept pickup suggestion")
}

// RejectSuggestion declines a proposed pickup point on the caller's trip.
func (h *Handler) RejectSuggestion(c *gin.Context) {
	h.resolveSuggestion(c, h.service.RejectSuggestion, "failed to reject pickup suggestion")
}

func (h *Handler) resolveSuggestion(c *gin.Context, resolve func(ctx context.Context, tripID, suggestionID, driverID uuid.UUID) (*models.PickupSuggestion, error), fallback string) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}
	suggestionID, ok := common.ParseUUIDParam(c, "suggestionId", "suggestion id")
	if !ok {
		return
	}

	suggestion, err := resolve(c.Request.Context(), tripID, suggestionID, userID)
	if common.HandleServiceError(c, err, fallback) {
		return
	}

	common.SuccessResponse(c, suggestion)
}
