package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// TripCreatedData is emitted when a driver publishes a trip.
type TripCreatedData struct {
	TripID         uuid.UUID `json:"trip_id"`
	DriverID       uuid.UUID `json:"driver_id"`
	DeparturePoint string    `json:"departure_point"`
	ArrivalPoint   string    `json:"arrival_point"`
	DepartureAt    time.Time `json:"departure_at"`
	SeatsTotal     int       `json:"seats_total"`
	PricePerSeat   float64   `json:"price_per_seat"`
	CreatedAt      time.Time `json:"created_at"`
}

// TripCancelledData is emitted when a driver cancels a trip. Consumers use
// it to fan out notifications beyond the synchronous email send.
type TripCancelledData struct {
	TripID               uuid.UUID `json:"trip_id"`
	DriverID             uuid.UUID `json:"driver_id"`
	AffectedReservations int       `json:"affected_reservations"`
	CancelledAt          time.Time `json:"cancelled_at"`
}

// TripCompletedData is emitted after a trip is marked completed.
type TripCompletedData struct {
	TripID      uuid.UUID `json:"trip_id"`
	DriverID    uuid.UUID `json:"driver_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// ReservationRequestedData is emitted when a passenger claims seats.
type ReservationRequestedData struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	TripID        uuid.UUID `json:"trip_id"`
	PassengerID   uuid.UUID `json:"passenger_id"`
	Seats         int       `json:"seats"`
	RequestedAt   time.Time `json:"requested_at"`
}

// ReservationConfirmedData is emitted when the driver confirms a reservation.
type ReservationConfirmedData struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	TripID        uuid.UUID `json:"trip_id"`
	PassengerID   uuid.UUID `json:"passenger_id"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// ReservationRejectedData is emitted when the driver rejects a reservation
// and its seats return to the pool.
type ReservationRejectedData struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	TripID        uuid.UUID `json:"trip_id"`
	PassengerID   uuid.UUID `json:"passenger_id"`
	SeatsReturned int       `json:"seats_returned"`
	RejectedAt    time.Time `json:"rejected_at"`
}

// ReservationCancelledData is emitted when either side cancels a reservation.
type ReservationCancelledData struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	TripID        uuid.UUID `json:"trip_id"`
	PassengerID   uuid.UUID `json:"passenger_id"`
	CancelledBy   string    `json:"cancelled_by"` // "driver" or "passenger"
	SeatsReturned int       `json:"seats_returned"`
	CancelledAt   time.Time `json:"cancelled_at"`
}
