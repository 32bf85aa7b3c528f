// Package trips implements the trip engine: publishing trips, the atomic
// seat reservation path, the reservation and pickup-suggestion state
// machines, cancellation fan-out and the driver's passenger manifest.
//
// Seat accounting is the one contended resource in the system. Every booking
// runs as a single conditional statement that decrements seats and inserts
// the reservation together with all preconditions, so concurrent requests
// can never oversell a trip or double-book a passenger.
package trips

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/geo"
	"github.com/sabanago/ride-sharing/pkg/models"
)

// Client-facing error codes for the trip engine.
const (
	CodeTripNotFound            = "TRIP_NOT_FOUND"
	CodeReservationNotFound     = "RESERVATION_NOT_FOUND"
	CodeSuggestionNotFound      = "SUGGESTION_NOT_FOUND"
	CodeOwnTrip                 = "OWN_TRIP"
	CodeTripNotAvailable        = "TRIP_NOT_AVAILABLE"
	CodeInsufficientSeats       = "INSUFFICIENT_SEATS"
	CodeDuplicateReservation    = "DUPLICATE_RESERVATION"
	CodeSuggestionLimit         = "SUGGESTION_LIMIT"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeNotOwner                = "NOT_OWNER"
	CodeDocumentsInvalid        = "DOCUMENTS_INVALID"
)

// maxPendingSuggestions caps how many unresolved pickup proposals one
// passenger may hold on a single trip.
const maxPendingSuggestions = 3

// NewTrip builds a scheduled trip from a validated creation payload. Pickup
// points are attached by the service, which knows whether they came from the
// driver's list or from snapping a route onto transit stops.
func NewTrip(driverID, vehicleID uuid.UUID, req *models.CreateTripRequest) *models.Trip {
	now := time.Now()
	return &models.Trip{
		ID:               uuid.New(),
		DriverID:         driverID,
		VehicleID:        vehicleID,
		Origin:           strings.TrimSpace(req.Origin),
		Destination:      strings.TrimSpace(req.Destination),
		RouteDescription: req.RouteDescription,
		DepartureAt:      req.DepartureAt,
		SeatsTotal:       req.SeatsTotal,
		SeatsAvailable:   req.SeatsTotal,
		PricePerSeat:     req.PricePerSeat,
		DistanceKm:       req.DistanceKm,
		DurationMinutes:  req.DurationMinutes,
		Status:           models.TripStatusScheduled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// driverPickupPoints materializes the pickup points a driver supplied
// directly on the creation payload.
func driverPickupPoints(tripID uuid.UUID, reqs []models.PickupPointRequest, now time.Time) ([]models.TripPickupPoint, error) {
	points := make([]models.TripPickupPoint, 0, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		if strings.TrimSpace(req.Name) == "" {
			return nil, common.NewValidationError("pickup point name is required")
		}
		if !geo.ValidCoordinate(req.Latitude, req.Longitude) {
			return nil, common.NewValidationError("pickup point coordinates are out of range")
		}
		points = append(points, models.TripPickupPoint{
			ID:          uuid.New(),
			TripID:      tripID,
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Latitude:    req.Latitude,
			Longitude:   req.Longitude,
			Source:      models.PickupSourceDriver,
			Status:      models.PickupPointActive,
			CreatedAt:   now,
		})
	}
	return points, nil
}

// stopPickupPoints materializes snapped transit stops as system pickup
// points, preserving traversal order.
func stopPickupPoints(tripID uuid.UUID, stops []models.TransitStop, now time.Time) []models.TripPickupPoint {
	points := make([]models.TripPickupPoint, 0, len(stops))
	for _, stop := range stops {
		points = append(points, models.TripPickupPoint{
			ID:        uuid.New(),
			TripID:    tripID,
			Name:      stop.Name,
			Latitude:  stop.Latitude,
			Longitude: stop.Longitude,
			Source:    models.PickupSourceSystem,
			Status:    models.PickupPointActive,
			CreatedAt: now,
		})
	}
	return points
}

func tripNotFound(err error) *common.AppError {
	return common.NewNotFoundError("trip not found", err).WithCode(CodeTripNotFound)
}

func reservationNotFound(err error) *common.AppError {
	return common.NewNotFoundError("reservation not found", err).WithCode(CodeReservationNotFound)
}

func suggestionNotFound(err error) *common.AppError {
	return common.NewNotFoundError("pickup suggestion not found", err).WithCode(CodeSuggestionNotFound)
}

func notTripOwner() *common.AppError {
	return common.NewForbiddenError("trip belongs to another driver").WithCode(CodeNotOwner)
}

func tripNotAvailable(status models.TripStatus) *common.AppError {
	return common.NewBadRequestError("trip is "+string(status), nil).WithCode(CodeTripNotAvailable)
}

func insufficientSeats(available int) *common.AppError {
	msg := "not enough seats available"
	if available == 1 {
		msg = "only 1 seat available"
	}
	return common.NewConflictError(msg).WithCode(CodeInsufficientSeats)
}

func duplicateReservation() *common.AppError {
	return common.NewConflictError("an active reservation for this trip already exists").
		WithCode(CodeDuplicateReservation)
}

func ownTrip() *common.AppError {
	return common.NewBadRequestError("drivers cannot reserve seats on their own trip", nil).
		WithCode(CodeOwnTrip)
}

func invalidTransition(from models.ReservationStatus, action string) *common.AppError {
	return common.NewBadRequestError("cannot "+action+" a "+string(from)+" reservation", nil).
		WithCode(CodeInvalidStatusTransition)
}

func invalidTripTransition(status models.TripStatus, action string) *common.AppError {
	return common.NewBadRequestError("cannot "+action+" a "+string(status)+" trip", nil).
		WithCode(CodeInvalidStatusTransition)
}

func suggestionLimit() *common.AppError {
	return common.NewTooManyRequestsError("pending suggestion limit reached for this trip").
		WithCode(CodeSuggestionLimit)
}

func documentsInvalid() *common.AppError {
	return common.NewBadRequestError("vehicle documents are expired", nil).
		WithCode(CodeDocumentsInvalid)
}
