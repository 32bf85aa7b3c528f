package trips

import (
	"context"

	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/eventbus"
	"github.com/sabanago/ride-sharing/pkg/models"
)

// ReservationAttempt carries one booking request into the conditional
// insert. PickupPoints is stored as jsonb on the reservation row.
type ReservationAttempt struct {
	ReservationID uuid.UUID
	TripID        uuid.UUID
	PassengerID   uuid.UUID
	Seats         int
	PickupPoints  []models.ReservationPickup
	PaymentMethod models.PaymentMethod
}

// CancelledPassenger identifies one passenger whose active reservation was
// cancelled by a trip cancellation, for the email fan-out.
type CancelledPassenger struct {
	PassengerID uuid.UUID
	Email       string
	FirstName   string
}

// RepositoryInterface defines the persistence operations the trip engine
// depends on, so tests can swap in mocks.
type RepositoryInterface interface {
	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	List(ctx context.Context, filters *models.TripFilters, limit, offset int) ([]models.Trip, int64, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Trip, error)
	ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Trip, error)
	GetDriver(ctx context.Context, driverID uuid.UUID) (*models.User, error)

	// AtomicReserve books seats in one conditional statement. It returns
	// false with a nil error when a precondition failed (nothing changed)
	// and ErrDuplicateReservation when the same-passenger guard tripped.
	AtomicReserve(ctx context.Context, attempt *ReservationAttempt) (bool, error)
	GetReservation(ctx context.Context, tripID, reservationID uuid.UUID) (*models.Reservation, error)
	GetActiveReservation(ctx context.Context, tripID, passengerID uuid.UUID) (*models.Reservation, error)
	ListReservations(ctx context.Context, tripID uuid.UUID) ([]models.Reservation, error)
	// TransitionReservation moves a reservation from one of the from states
	// to the to state under the trip's row lock, returning the held seats to
	// the pool when returnSeats is set. The bool reports whether the
	// transition applied; when it did not, the returned reservation is the
	// current row so the caller can decide idempotency.
	TransitionReservation(ctx context.Context, tripID, reservationID uuid.UUID, from []models.ReservationStatus, to models.ReservationStatus, returnSeats bool) (*models.Reservation, bool, error)

	CancelTrip(ctx context.Context, tripID uuid.UUID) ([]CancelledPassenger, error)
	CompleteTrip(ctx context.Context, tripID uuid.UUID) error

	CountPendingSuggestions(ctx context.Context, tripID, passengerID uuid.UUID) (int, error)
	AddSuggestion(ctx context.Context, suggestion *models.PickupSuggestion, point *models.TripPickupPoint) error
	GetSuggestion(ctx context.Context, tripID, suggestionID uuid.UUID) (*models.PickupSuggestion, error)
	ListSuggestions(ctx context.Context, tripID uuid.UUID) ([]models.PickupSuggestion, error)
	ResolveSuggestion(ctx context.Context, suggestion *models.PickupSuggestion, rejectPoint bool) error

	Manifest(ctx context.Context, tripID uuid.UUID) ([]models.PassengerManifestEntry, error)
}

// VehicleRegistry is the slice of the vehicle registry trip creation
// consults: the selected vehicle must exist, belong to the driver and carry
// current documents.
type VehicleRegistry interface {
	GetOwned(ctx context.Context, userID, vehicleID uuid.UUID) (*models.Vehicle, error)
}

// TariffValidator enforces the suggested price band when the payload carries
// both distance and duration.
type TariffValidator interface {
	ValidatePrice(price, distanceKm float64, durationMinutes int) error
}

// StopResolver is the slice of the transit catalog used by the stops+route
// creation shape.
type StopResolver interface {
	GetStops(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.TransitStop, error)
	SnapRoute(ctx context.Context, points []models.RoutePoint) ([]models.TransitStop, error)
}

// RatingsDirectory supplies driver rating aggregates for listing
// enrichment. Read-only: scores are written by the campus feedback flow.
type RatingsDirectory interface {
	DriverRating(ctx context.Context, driverID uuid.UUID) (*models.DriverRating, error)
	DriverRatings(ctx context.Context, driverIDs []uuid.UUID) (map[uuid.UUID]models.DriverRating, error)
}

// TripMailer is the slice of the mailer the cancellation fan-out uses.
type TripMailer interface {
	SendTripCancelledEmail(ctx context.Context, to, name string, tripDetails map[string]interface{}) error
}

// EventPublisher mirrors trip lifecycle changes onto the event bus. Nil when
// NATS is not configured; publish failures are logged and never fail the
// operation.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}
