package trips

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sabanago/ride-sharing/pkg/async"
	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/eventbus"
	"github.com/sabanago/ride-sharing/pkg/geo"
	"github.com/sabanago/ride-sharing/pkg/logger"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/pagination"
	"github.com/sabanago/ride-sharing/pkg/tracing"
)

// Service handles trip engine business logic.
type Service struct {
	repo     RepositoryInterface
	registry VehicleRegistry
	tariffs  TariffValidator
	stops    StopResolver
	ratings  RatingsDirectory
	mailer   TripMailer
	events   EventPublisher
}

// NewService creates a new trips service.
func NewService(repo RepositoryInterface, registry VehicleRegistry, tariffs TariffValidator, stops StopResolver, ratings RatingsDirectory, mailer TripMailer, events EventPublisher) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		tariffs:  tariffs,
		stops:    stops,
		ratings:  ratings,
		mailer:   mailer,
		events:   events,
	}
}

// Create publishes a trip. The vehicle defaults to the driver's active one,
// must be owned by the driver and carry current documents, and caps
// seats_total at its capacity. The stops+route shape snaps the route onto
// known transit stops; the legacy shape takes the driver's pickup points
// as given.
func (s *Service) Create(ctx context.Context, driverID uuid.UUID, req *models.CreateTripRequest) (*models.Trip, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "Create")
	defer span.End()

	if !req.DepartureAt.After(time.Now()) {
		return nil, common.NewValidationError("departure_at must be in the future")
	}

	vehicleID, err := s.resolveVehicleID(ctx, driverID, req.VehicleID)
	if err != nil {
		return nil, err
	}
	vehicle, err := s.registry.GetOwned(ctx, driverID, vehicleID)
	if err != nil {
		return nil, err
	}
	if !vehicle.DocumentsValid(time.Now()) {
		return nil, documentsInvalid()
	}
	if req.SeatsTotal > vehicle.Capacity {
		return nil, common.NewValidationError(fmt.Sprintf("seats_total cannot exceed the vehicle capacity of %d", vehicle.Capacity))
	}

	if req.DistanceKm != nil && req.DurationMinutes != nil {
		if err := s.tariffs.ValidatePrice(req.PricePerSeat, *req.DistanceKm, *req.DurationMinutes); err != nil {
			return nil, err
		}
	}

	trip := NewTrip(driverID, vehicleID, req)
	trip.VehicleID = vehicle.ID

	if req.StopsShape() {
		if err := s.applyStopsShape(ctx, trip, req); err != nil {
			return nil, err
		}
	} else {
		if trip.Origin == "" || trip.Destination == "" {
			return nil, common.NewValidationError("origin and destination are required")
		}
		points, err := driverPickupPoints(trip.ID, req.PickupPoints, trip.CreatedAt)
		if err != nil {
			return nil, err
		}
		trip.PickupPoints = points
	}

	if err := s.repo.CreateTrip(ctx, trip); err != nil {
		return nil, common.NewInternalError("failed to create trip", err)
	}
	span.SetAttributes(tracing.TripIDKey.String(trip.ID.String()))

	s.publish(ctx, eventbus.SubjectTripCreated, eventbus.TripCreatedData{
		TripID:         trip.ID,
		DriverID:       trip.DriverID,
		DeparturePoint: trip.Origin,
		ArrivalPoint:   trip.Destination,
		DepartureAt:    trip.DepartureAt,
		SeatsTotal:     trip.SeatsTotal,
		PricePerSeat:   trip.PricePerSeat,
		CreatedAt:      trip.CreatedAt,
	})
	return trip, nil
}

// applyStopsShape resolves the endpoint stops, snaps the route polyline onto
// the transit catalog and materializes the snapped stops as system pickup
// points in traversal order.
func (s *Service) applyStopsShape(ctx context.Context, trip *models.Trip, req *models.CreateTripRequest) error {
	if len(req.Route) < 2 {
		return common.NewValidationError("route must contain at least 2 points")
	}
	endpoints, err := s.stops.GetStops(ctx, []uuid.UUID{*req.OriginStopID, *req.DestinationStopID})
	if err != nil {
		return err
	}
	if trip.Origin == "" {
		trip.Origin = endpoints[*req.OriginStopID].Name
	}
	if trip.Destination == "" {
		trip.Destination = endpoints[*req.DestinationStopID].Name
	}

	snapped, err := s.stops.SnapRoute(ctx, req.Route)
	if err != nil {
		return err
	}
	trip.PickupPoints = stopPickupPoints(trip.ID, snapped, trip.CreatedAt)
	return nil
}

// List returns the open trip listing, filtered, paginated and decorated with
// driver rating aggregates.
func (s *Service) List(ctx context.Context, filters *models.TripFilters, params pagination.Params) ([]models.Trip, int64, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "List")
	defer span.End()

	trips, total, err := s.repo.List(ctx, filters, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list trips", err)
	}
	s.attachRatings(ctx, trips)
	return trips, total, nil
}

// GetTrip returns one trip with what the caller may see: the driver gets
// every suggestion and reservation, everyone else gets active pickup points
// and their own reservation when they hold one.
func (s *Service) GetTrip(ctx context.Context, tripID, callerID uuid.UUID) (*models.TripDetail, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "GetTrip")
	defer span.End()

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tripNotFound(err)
		}
		return nil, common.NewInternalError("failed to load trip", err)
	}
	if rating, err := s.ratings.DriverRating(ctx, trip.DriverID); err != nil {
		logger.WarnContext(ctx, "driver rating lookup failed", zap.Error(err))
	} else if rating != nil {
		trip.DriverRating = rating
	}

	detail := &models.TripDetail{Trip: trip}
	if callerID == trip.DriverID {
		if detail.Suggestions, err = s.repo.ListSuggestions(ctx, tripID); err != nil {
			return nil, common.NewInternalError("failed to load pickup suggestions", err)
		}
		if detail.Reservations, err = s.repo.ListReservations(ctx, tripID); err != nil {
			return nil, common.NewInternalError("failed to load reservations", err)
		}
		return detail, nil
	}

	trip.PickupPoints = activePoints(trip.PickupPoints)
	own, err := s.repo.GetActiveReservation(ctx, tripID, callerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewInternalError("failed to load reservation", err)
	}
	detail.OwnReservation = own
	return detail, nil
}

// MyTrips lists the caller's trips: published ones as driver, reserved ones
// as passenger. An empty role means passenger.
func (s *Service) MyTrips(ctx context.Context, userID uuid.UUID, role string) ([]models.Trip, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "MyTrips")
	defer span.End()

	var (
		trips []models.Trip
		err   error
	)
	switch role {
	case "driver":
		trips, err = s.repo.ListByDriver(ctx, userID)
	case "", "passenger":
		trips, err = s.repo.ListByPassenger(ctx, userID)
	default:
		return nil, common.NewValidationError("role must be driver or passenger")
	}
	if err != nil {
		return nil, common.NewInternalError("failed to list trips", err)
	}
	s.attachRatings(ctx, trips)
	return trips, nil
}

// Reserve books seats through the single conditional statement. On a zero-row
// outcome the trip is re-read once to name the precondition that failed; the
// booking decision itself was already made atomically, the re-read is only
// diagnostic.
func (s *Service) Reserve(ctx context.Context, tripID, passengerID uuid.UUID, req *models.CreateReservationRequest) (*models.ReservationOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "Reserve")
	defer span.End()
	span.SetAttributes(
		tracing.TripIDKey.String(tripID.String()),
		tracing.UserIDKey.String(passengerID.String()),
		tracing.SeatsKey.Int(req.Seats),
	)

	if len(req.PickupPoints) != req.Seats {
		return nil, common.NewValidationError("pickup_points must name one boarding spot per seat")
	}
	for i := range req.PickupPoints {
		p := &req.PickupPoints[i]
		if strings.TrimSpace(p.Name) == "" {
			return nil, common.NewValidationError("pickup point name is required")
		}
		if !geo.ValidCoordinate(p.Latitude, p.Longitude) {
			return nil, common.NewValidationError("pickup point coordinates are out of range")
		}
	}

	attempt := &ReservationAttempt{
		ReservationID: uuid.New(),
		TripID:        tripID,
		PassengerID:   passengerID,
		Seats:         req.Seats,
		PickupPoints:  req.PickupPoints,
		PaymentMethod: req.PaymentMethod,
	}
	booked, err := s.repo.AtomicReserve(ctx, attempt)
	if err != nil {
		if errors.Is(err, ErrDuplicateReservation) {
			return nil, duplicateReservation()
		}
		return nil, common.NewInternalError("failed to reserve seats", err)
	}
	if !booked {
		return nil, s.classifyReservationFailure(ctx, tripID, passengerID)
	}

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to reload trip", err)
	}
	reservation, err := s.repo.GetReservation(ctx, tripID, attempt.ReservationID)
	if err != nil {
		return nil, common.NewInternalError("failed to reload reservation", err)
	}

	s.publish(ctx, eventbus.SubjectReservationRequested, eventbus.ReservationRequestedData{
		ReservationID: reservation.ID,
		TripID:        tripID,
		PassengerID:   passengerID,
		Seats:         reservation.Seats,
		RequestedAt:   reservation.CreatedAt,
	})
	return &models.ReservationOutcome{Trip: trip, Reservation: reservation}, nil
}

// classifyReservationFailure maps a failed booking attempt onto its root
// cause. A duplicate outranks insufficient seats: the passenger's own active
// reservation is the one condition that will not clear on retry.
func (s *Service) classifyReservationFailure(ctx context.Context, tripID, passengerID uuid.UUID) error {
	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tripNotFound(err)
		}
		return common.NewInternalError("failed to load trip", err)
	}
	if trip.DriverID == passengerID {
		return ownTrip()
	}
	if trip.Status.Terminal() {
		return tripNotAvailable(trip.Status)
	}
	if _, err := s.repo.GetActiveReservation(ctx, tripID, passengerID); err == nil {
		return duplicateReservation()
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return common.NewInternalError("failed to load reservation", err)
	}
	return insufficientSeats(trip.SeatsAvailable)
}

// ConfirmReservation is the driver accepting a pending reservation. Seats
// stay held. Confirming an already confirmed reservation is a no-op success.
func (s *Service) ConfirmReservation(ctx context.Context, tripID, reservationID, driverID uuid.UUID) (*models.Reservation, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "ConfirmReservation")
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, driverID); err != nil {
		return nil, err
	}
	res, applied, err := s.repo.TransitionReservation(ctx, tripID, reservationID,
		[]models.ReservationStatus{models.ReservationStatusPending},
		models.ReservationStatusConfirmed, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reservationNotFound(err)
		}
		return nil, common.NewInternalError("failed to confirm reservation", err)
	}
	if !applied {
		if res.Status == models.ReservationStatusConfirmed {
			return res, nil
		}
		return nil, invalidTransition(res.Status, "confirm")
	}

	s.publish(ctx, eventbus.SubjectReservationConfirmed, eventbus.ReservationConfirmedData{
		ReservationID: res.ID,
		TripID:        tripID,
		PassengerID:   res.PassengerID,
		ConfirmedAt:   decidedAt(res),
	})
	return res, nil
}

// RejectReservation is the driver declining a pending reservation. The held
// seats return to the pool and the trip status renormalizes.
func (s *Service) RejectReservation(ctx context.Context, tripID, reservationID, driverID uuid.UUID) (*models.Reservation, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "RejectReservation")
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, driverID); err != nil {
		return nil, err
	}
	res, applied, err := s.repo.TransitionReservation(ctx, tripID, reservationID,
		[]models.ReservationStatus{models.ReservationStatusPending},
		models.ReservationStatusRejected, true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reservationNotFound(err)
		}
		return nil, common.NewInternalError("failed to reject reservation", err)
	}
	if !applied {
		if res.Status == models.ReservationStatusRejected {
			return res, nil
		}
		return nil, invalidTransition(res.Status, "reject")
	}

	s.publish(ctx, eventbus.SubjectReservationRejected, eventbus.ReservationRejectedData{
		ReservationID: res.ID,
		TripID:        tripID,
		PassengerID:   res.PassengerID,
		SeatsReturned: res.Seats,
		RejectedAt:    decidedAt(res),
	})
	return res, nil
}

// CancelReservation releases a pending or confirmed reservation. The trip's
// driver and the owning passenger may cancel; anyone else is refused.
func (s *Service) CancelReservation(ctx context.Context, tripID, reservationID, callerID uuid.UUID) (*models.Reservation, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "CancelReservation")
	defer span.End()

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tripNotFound(err)
		}
		return nil, common.NewInternalError("failed to load trip", err)
	}
	current, err := s.repo.GetReservation(ctx, tripID, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reservationNotFound(err)
		}
		return nil, common.NewInternalError("failed to load reservation", err)
	}

	var cancelledBy string
	switch callerID {
	case trip.DriverID:
		cancelledBy = "driver"
	case current.PassengerID:
		cancelledBy = "passenger"
	default:
		return nil, common.NewForbiddenError("reservation belongs to another passenger").WithCode(CodeNotOwner)
	}

	res, applied, err := s.repo.TransitionReservation(ctx, tripID, reservationID,
		[]models.ReservationStatus{models.ReservationStatusPending, models.ReservationStatusConfirmed},
		models.ReservationStatusCancelled, true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reservationNotFound(err)
		}
		return nil, common.NewInternalError("failed to cancel reservation", err)
	}
	if !applied {
		if res.Status == models.ReservationStatusCancelled {
			return res, nil
		}
		return nil, invalidTransition(res.Status, "cancel")
	}

	s.publish(ctx, eventbus.SubjectReservationCancelled, eventbus.ReservationCancelledData{
		ReservationID: res.ID,
		TripID:        tripID,
		PassengerID:   res.PassengerID,
		CancelledBy:   cancelledBy,
		SeatsReturned: res.Seats,
		CancelledAt:   decidedAt(res),
	})
	return res, nil
}

// CancelTrip cancels the whole trip: every active reservation is swept to
// cancelled in the same transaction and each affected passenger gets an
// email. Sends run concurrently and are awaited, so by the time the driver
// has the response every attempt was made; individual failures are logged
// and swallowed. Cancelling an already cancelled trip is a no-op success.
func (s *Service) CancelTrip(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "CancelTrip")
	defer span.End()
	span.SetAttributes(
		tracing.TripIDKey.String(tripID.String()),
		tracing.DriverIDKey.String(driverID.String()),
	)

	trip, err := s.ownedTrip(ctx, tripID, driverID)
	if err != nil {
		return nil, err
	}
	if trip.Status == models.TripStatusCancelled {
		return trip, nil
	}
	if trip.Status == models.TripStatusCompleted {
		return nil, invalidTripTransition(trip.Status, "cancel")
	}

	affected, err := s.repo.CancelTrip(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to cancel trip", err)
	}
	s.notifyCancelled(ctx, trip, affected)

	trip, err = s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to reload trip", err)
	}

	s.publish(ctx, eventbus.SubjectTripCancelled, eventbus.TripCancelledData{
		TripID:               trip.ID,
		DriverID:             trip.DriverID,
		AffectedReservations: len(affected),
		CancelledAt:          trip.UpdatedAt,
	})
	return trip, nil
}

// CompleteTrip closes out a trip after its departure has passed. Completing
// an already completed trip is a no-op success.
func (s *Service) CompleteTrip(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "CompleteTrip")
	defer span.End()

	trip, err := s.ownedTrip(ctx, tripID, driverID)
	if err != nil {
		return nil, err
	}
	if trip.Status == models.TripStatusCompleted {
		return trip, nil
	}
	if trip.Status == models.TripStatusCancelled {
		return nil, invalidTripTransition(trip.Status, "complete")
	}
	if time.Now().Before(trip.DepartureAt) {
		return nil, common.NewBadRequestError("trip cannot be completed before departure", nil).
			WithCode(CodeInvalidStatusTransition)
	}

	if err := s.repo.CompleteTrip(ctx, tripID); err != nil {
		return nil, common.NewInternalError("failed to complete trip", err)
	}
	trip, err = s.repo.GetByID(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to reload trip", err)
	}

	s.publish(ctx, eventbus.SubjectTripCompleted, eventbus.TripCompletedData{
		TripID:      trip.ID,
		DriverID:    trip.DriverID,
		CompletedAt: trip.UpdatedAt,
	})
	return trip, nil
}

// SuggestPickup files a passenger's boarding spot proposal. The spot joins
// the trip's pickup list right away and a mirror suggestion row queues for
// the driver's decision. A passenger may hold at most three pending
// suggestions per trip.
func (s *Service) SuggestPickup(ctx context.Context, tripID, passengerID uuid.UUID, req *models.SuggestPickupRequest) (*models.PickupSuggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "SuggestPickup")
	defer span.End()

	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tripNotFound(err)
		}
		return nil, common.NewInternalError("failed to load trip", err)
	}
	if trip.DriverID == passengerID {
		return nil, common.NewBadRequestError("drivers cannot suggest pickup points on their own trip", nil).
			WithCode(CodeOwnTrip)
	}
	if trip.Status.Terminal() {
		return nil, tripNotAvailable(trip.Status)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, common.NewValidationError("pickup point name is required")
	}
	if !geo.ValidCoordinate(req.Latitude, req.Longitude) {
		return nil, common.NewValidationError("pickup point coordinates are out of range")
	}

	pending, err := s.repo.CountPendingSuggestions(ctx, tripID, passengerID)
	if err != nil {
		return nil, common.NewInternalError("failed to count pending suggestions", err)
	}
	if pending >= maxPendingSuggestions {
		return nil, suggestionLimit()
	}

	now := time.Now()
	point := &models.TripPickupPoint{
		ID:          uuid.New(),
		TripID:      tripID,
		Name:        name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Source:      models.PickupSourcePassenger,
		Status:      models.PickupPointActive,
		CreatedAt:   now,
	}
	suggestion := &models.PickupSuggestion{
		ID:          uuid.New(),
		TripID:      tripID,
		PassengerID: passengerID,
		PointID:     &point.ID,
		Name:        name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Status:      models.SuggestionPending,
		CreatedAt:   now,
	}
	if err := s.repo.AddSuggestion(ctx, suggestion, point); err != nil {
		return nil, common.NewInternalError("failed to store pickup suggestion", err)
	}
	return suggestion, nil
}

// AcceptSuggestion keeps the passenger's proposed spot on the trip's pickup
// list.
func (s *Service) AcceptSuggestion(ctx context.Context, tripID, suggestionID, driverID uuid.UUID) (*models.PickupSuggestion, error) {
	return s.resolveSuggestion(ctx, tripID, suggestionID, driverID, models.SuggestionAccepted)
}

// RejectSuggestion declines the proposal and retires its mirrored pickup
// point.
func (s *Service) RejectSuggestion(ctx context.Context, tripID, suggestionID, driverID uuid.UUID) (*models.PickupSuggestion, error) {
	return s.resolveSuggestion(ctx, tripID, suggestionID, driverID, models.SuggestionRejected)
}

func (s *Service) resolveSuggestion(ctx context.Context, tripID, suggestionID, driverID uuid.UUID, decision models.SuggestionStatus) (*models.PickupSuggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "ResolveSuggestion")
	defer span.End()

	action := "accept"
	if decision == models.SuggestionRejected {
		action = "reject"
	}

	if _, err := s.ownedTrip(ctx, tripID, driverID); err != nil {
		return nil, err
	}
	suggestion, err := s.repo.GetSuggestion(ctx, tripID, suggestionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, suggestionNotFound(err)
		}
		return nil, common.NewInternalError("failed to load pickup suggestion", err)
	}
	if suggestion.Status != models.SuggestionPending {
		if suggestion.Status == decision {
			return suggestion, nil
		}
		return nil, common.NewBadRequestError("cannot "+action+" a "+string(suggestion.Status)+" suggestion", nil).
			WithCode(CodeInvalidStatusTransition)
	}

	now := time.Now()
	suggestion.Status = decision
	suggestion.ResolvedAt = &now
	if err := s.repo.ResolveSuggestion(ctx, suggestion, decision == models.SuggestionRejected); err != nil {
		return nil, common.NewInternalError("failed to resolve pickup suggestion", err)
	}
	return suggestion, nil
}

// Manifest returns the driver's passenger list for a trip they own.
func (s *Service) Manifest(ctx context.Context, tripID, driverID uuid.UUID) ([]models.PassengerManifestEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "trips-service", "Manifest")
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, driverID); err != nil {
		return nil, err
	}
	entries, err := s.repo.Manifest(ctx, tripID)
	if err != nil {
		return nil, common.NewInternalError("failed to load passenger manifest", err)
	}
	return entries, nil
}

// ownedTrip loads the trip and verifies the caller drives it.
func (s *Service) ownedTrip(ctx context.Context, tripID, driverID uuid.UUID) (*models.Trip, error) {
	trip, err := s.repo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tripNotFound(err)
		}
		return nil, common.NewInternalError("failed to load trip", err)
	}
	if trip.DriverID != driverID {
		return nil, notTripOwner()
	}
	return trip, nil
}

func (s *Service) resolveVehicleID(ctx context.Context, driverID uuid.UUID, explicit *uuid.UUID) (uuid.UUID, error) {
	if explicit != nil {
		return *explicit, nil
	}
	driver, err := s.repo.GetDriver(ctx, driverID)
	if err != nil {
		return uuid.Nil, common.NewInternalError("failed to load driver", err)
	}
	if driver.ActiveVehicleID == nil {
		return uuid.Nil, common.NewBadRequestError("no active vehicle: pass vehicle_id or activate one", nil)
	}
	return *driver.ActiveVehicleID, nil
}

// attachRatings decorates listings with driver aggregates. Best effort: a
// ratings outage must not hide trips.
func (s *Service) attachRatings(ctx context.Context, trips []models.Trip) {
	if len(trips) == 0 {
		return
	}
	seen := make(map[uuid.UUID]struct{}, len(trips))
	ids := make([]uuid.UUID, 0, len(trips))
	for i := range trips {
		if _, ok := seen[trips[i].DriverID]; ok {
			continue
		}
		seen[trips[i].DriverID] = struct{}{}
		ids = append(ids, trips[i].DriverID)
	}

	ratings, err := s.ratings.DriverRatings(ctx, ids)
	if err != nil {
		logger.WarnContext(ctx, "driver rating lookup failed", zap.Error(err))
		return
	}
	for i := range trips {
		if r, ok := ratings[trips[i].DriverID]; ok {
			rating := r
			trips[i].DriverRating = &rating
		}
	}
}

// notifyCancelled emails every passenger the cancellation swept away.
func (s *Service) notifyCancelled(ctx context.Context, trip *models.Trip, affected []CancelledPassenger) {
	if len(affected) == 0 {
		return
	}
	details := map[string]interface{}{
		"origin":       trip.Origin,
		"destination":  trip.Destination,
		"departure_at": trip.DepartureAt,
	}
	fns := make([]func(ctx context.Context), 0, len(affected))
	for _, p := range affected {
		p := p
		fns = append(fns, func(taskCtx context.Context) {
			if err := s.mailer.SendTripCancelledEmail(taskCtx, p.Email, p.FirstName, details); err != nil {
				logger.WarnContext(taskCtx, "trip cancellation email failed",
					zap.String("to", p.Email),
					zap.String("trip_id", trip.ID.String()),
					zap.Error(err),
				)
			}
		})
	}
	async.RunAll(ctx, "trip-cancelled-emails", fns...)
}

// publish mirrors a lifecycle change onto the bus. Bus failures are logged
// and never fail the request.
func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.events == nil {
		return
	}
	async.Go(ctx, "publish-"+subject, func(taskCtx context.Context) {
		event, err := eventbus.NewEvent(subject, "trips-service", data)
		if err != nil {
			logger.WarnContext(taskCtx, "event build failed", zap.String("subject", subject), zap.Error(err))
			return
		}
		if err := s.events.Publish(taskCtx, subject, event); err != nil {
			logger.WarnContext(taskCtx, "event publish failed", zap.String("subject", subject), zap.Error(err))
		}
	})
}

func decidedAt(res *models.Reservation) time.Time {
	if res.DecisionAt != nil {
		return *res.DecisionAt
	}
	return time.Now()
}
