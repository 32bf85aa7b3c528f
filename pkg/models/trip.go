package models

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus represents the lifecycle state of a published trip.
type TripStatus string

const (
	TripStatusScheduled TripStatus = "scheduled"
	TripStatusFull      TripStatus = "full"
	TripStatusCancelled TripStatus = "cancelled"
	TripStatusCompleted TripStatus = "completed"
)

// Terminal reports whether the status admits no further transitions.
func (s TripStatus) Terminal() bool {
	return s == TripStatusCancelled || s == TripStatusCompleted
}

// ReservationStatus represents the state of a seat reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusRejected  ReservationStatus = "rejected"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Active reports whether the reservation still holds seats.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

// Terminal reports whether the reservation reached a final state.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusRejected || s == ReservationStatusCancelled
}

// PickupPointSource records who contributed a trip pickup point.
type PickupPointSource string

const (
	PickupSourceDriver    PickupPointSource = "driver"
	PickupSourcePassenger PickupPointSource = "passenger"
	PickupSourceSystem    PickupPointSource = "system"
)

// PickupPointStatus marks whether a trip pickup point is still offered.
type PickupPointStatus string

const (
	PickupPointActive   PickupPointStatus = "active"
	PickupPointRejected PickupPointStatus = "rejected"
)

// SuggestionStatus represents a passenger pickup suggestion's state.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Trip represents a published trip offer. SeatsAvailable is maintained by
// the reservation flow and always equals SeatsTotal minus the seats held by
// pending and confirmed reservations.
type Trip struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	DriverID         uuid.UUID  `json:"driver_id" db:"driver_id"`
	VehicleID        uuid.UUID  `json:"vehicle_id" db:"vehicle_id"`
	Origin           string     `json:"origin" db:"origin"`
	Destination      string     `json:"destination" db:"destination"`
	RouteDescription *string    `json:"route_description,omitempty" db:"route_description"`
	DepartureAt      time.Time  `json:"departure_at" db:"departure_at"`
	SeatsTotal       int        `json:"seats_total" db:"seats_total"`
	SeatsAvailable   int        `json:"seats_available" db:"seats_available"`
	PricePerSeat     float64    `json:"price_per_seat" db:"price_per_seat"`
	DistanceKm       *float64   `json:"distance_km,omitempty" db:"distance_km"`
	DurationMinutes  *int       `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Status           TripStatus `json:"status" db:"status"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`

	PickupPoints []TripPickupPoint `json:"pickup_points,omitempty"`
	DriverRating *DriverRating     `json:"driver_rating,omitempty"`
}

// TripPickupPoint is a boarding spot attached to one trip. Driver and system
// points are snapshotted at creation; passenger points arrive through the
// suggestion flow.
type TripPickupPoint struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	TripID      uuid.UUID         `json:"trip_id" db:"trip_id"`
	Name        string            `json:"name" db:"name"`
	Description *string           `json:"description,omitempty" db:"description"`
	Latitude    float64           `json:"latitude" db:"latitude"`
	Longitude   float64           `json:"longitude" db:"longitude"`
	Source      PickupPointSource `json:"source" db:"source"`
	Status      PickupPointStatus `json:"status" db:"status"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

// ReservationPickup is one selected boarding spot inside a reservation.
// Stored as jsonb on the reservation row; the array length equals seats.
type ReservationPickup struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Reservation represents a passenger's claim on seats of a trip.
type Reservation struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	TripID        uuid.UUID           `json:"trip_id" db:"trip_id"`
	PassengerID   uuid.UUID           `json:"passenger_id" db:"passenger_id"`
	Seats         int                 `json:"seats" db:"seats"`
	PickupPoints  []ReservationPickup `json:"pickup_points" db:"pickup_points"`
	PaymentMethod PaymentMethod       `json:"payment_method" db:"payment_method"`
	Status        ReservationStatus   `json:"status" db:"status"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	DecisionAt    *time.Time          `json:"decision_at,omitempty" db:"decision_at"`
}

// PickupSuggestion is a passenger-proposed boarding spot awaiting the
// driver's decision. The accepted point mirrors into the trip's pickup list.
type PickupSuggestion struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	TripID      uuid.UUID        `json:"trip_id" db:"trip_id"`
	PassengerID uuid.UUID        `json:"passenger_id" db:"passenger_id"`
	PointID     *uuid.UUID       `json:"point_id,omitempty" db:"point_id"`
	Name        string           `json:"name" db:"name"`
	Description *string          `json:"description,omitempty" db:"description"`
	Latitude    float64          `json:"latitude" db:"latitude"`
	Longitude   float64          `json:"longitude" db:"longitude"`
	Status      SuggestionStatus `json:"status" db:"status"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}

// DriverRating is the aggregate score shown on trip listings.
type DriverRating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// RoutePoint is a raw coordinate on a proposed route.
type RoutePoint struct {
	Latitude  float64 `json:"lat" binding:"min=-90,max=90"`
	Longitude float64 `json:"lng" binding:"min=-180,max=180"`
}

// CreateTripRequest covers both creation shapes. The legacy shape names the
// endpoints as free text and optionally lists pickup points; the stops shape
// references transit stops and carries the route polyline points, which the
// service snaps to known stops. VehicleID defaults to the driver's active
// vehicle when omitted.
type CreateTripRequest struct {
	VehicleID         *uuid.UUID           `json:"vehicle_id,omitempty"`
	Origin            string               `json:"origin"`
	Destination       string               `json:"destination"`
	RouteDescription  *string              `json:"route_description,omitempty"`
	DepartureAt       time.Time            `json:"departure_at" binding:"required"`
	SeatsTotal        int                  `json:"seats_total" binding:"required,min=1"`
	PricePerSeat      float64              `json:"price_per_seat" binding:"min=0"`
	DistanceKm        *float64             `json:"distance_km,omitempty"`
	DurationMinutes   *int                 `json:"duration_minutes,omitempty"`
	PickupPoints      []PickupPointRequest `json:"pickup_points,omitempty"`
	OriginStopID      *uuid.UUID           `json:"origin_stop_id,omitempty"`
	DestinationStopID *uuid.UUID           `json:"destination_stop_id,omitempty"`
	Route             []RoutePoint         `json:"route,omitempty"`
}

// StopsShape reports whether the request uses the stops+route shape.
func (r *CreateTripRequest) StopsShape() bool {
	return r.OriginStopID != nil && r.DestinationStopID != nil
}

// CreateReservationRequest books seats on a trip. PickupPoints length must
// equal Seats: one boarding spot per seat.
type CreateReservationRequest struct {
	Seats         int                 `json:"seats" binding:"required,min=1"`
	PickupPoints  []ReservationPickup `json:"pickup_points" binding:"required"`
	PaymentMethod PaymentMethod       `json:"payment_method" binding:"required,oneof=cash nequi"`
}

// ReservationOutcome is returned by the booking path: the refreshed trip and
// the created reservation.
type ReservationOutcome struct {
	Trip        *Trip        `json:"trip"`
	Reservation *Reservation `json:"reservation"`
}

// SuggestPickupRequest proposes a new boarding spot on a trip.
type SuggestPickupRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	Latitude    float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude   float64 `json:"longitude" binding:"min=-180,max=180"`
}

// TripFilters narrows the public trip listing.
type TripFilters struct {
	DeparturePoint string     `form:"departure_point"`
	MinSeats       *int       `form:"min_seats"`
	MaxPrice       *float64   `form:"max_price"`
	StartTime      *time.Time `form:"start_time" time_format:"2006-01-02T15:04:05Z07:00"`
	EndTime        *time.Time `form:"end_time" time_format:"2006-01-02T15:04:05Z07:00"`
}

// PassengerManifestEntry is one reservation on the driver's passenger list.
type PassengerManifestEntry struct {
	ReservationID uuid.UUID           `json:"reservation_id"`
	PassengerID   uuid.UUID           `json:"passenger_id"`
	FirstName     string              `json:"first_name"`
	LastName      string              `json:"last_name"`
	Email         string              `json:"email"`
	Phone         string              `json:"phone"`
	Seats         int                 `json:"seats"`
	PickupPoints  []ReservationPickup `json:"pickup_points"`
	PaymentMethod PaymentMethod       `json:"payment_method"`
	Status        ReservationStatus   `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	DecisionAt    *time.Time          `json:"decision_at,omitempty"`
}

// TripDetail is the single-trip read: the trip plus the rows the caller is
// allowed to see.
type TripDetail struct {
	Trip           *Trip              `json:"trip"`
	Suggestions    []PickupSuggestion `json:"suggestions,omitempty"`
	Reservations   []Reservation      `json:"reservations,omitempty"`
	OwnReservation *Reservation       `json:"own_reservation,omitempty"`
}
