package trips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sabanago/ride-sharing/pkg/models"
)

// ErrDuplicateReservation reports that the active-reservation unique index
// caught a same-passenger double booking the conditional statement raced on.
var ErrDuplicateReservation = errors.New("active reservation already exists")

// Repository handles database operations for trips, reservations and pickup
// suggestions.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new trips repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const tripColumns = `id, driver_id, vehicle_id, origin, destination, route_description,
	       departure_at, seats_total, seats_available, price_per_seat,
	       distance_km, duration_minutes, status, created_at, updated_at`

const reservationColumns = `id, trip_id, passenger_id, seats, pickup_points,
	       payment_method, status, created_at, decision_at`

// CreateTrip inserts the trip and its pickup-point snapshot in one
// transaction.
func (r *Repository) CreateTrip(ctx context.Context, trip *models.Trip) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trips (
			id, driver_id, vehicle_id, origin, destination, route_description,
			departure_at, seats_total, seats_available, price_per_seat,
			distance_km, duration_minutes, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if _, err := tx.Exec(ctx, query,
		trip.ID, trip.DriverID, trip.VehicleID, trip.Origin, trip.Destination,
		trip.RouteDescription, trip.DepartureAt, trip.SeatsTotal, trip.SeatsAvailable,
		trip.PricePerSeat, trip.DistanceKm, trip.DurationMinutes, trip.Status,
		trip.CreatedAt, trip.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}

	for i := range trip.PickupPoints {
		if err := insertTripPickupPoint(ctx, tx, &trip.PickupPoints[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertTripPickupPoint(ctx context.Context, tx pgx.Tx, p *models.TripPickupPoint) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO trip_pickup_points (id, trip_id, name, description, latitude, longitude, source, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.TripID, p.Name, p.Description, p.Latitude, p.Longitude, p.Source, p.Status, p.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert trip pickup point %q: %w", p.Name, err)
	}
	return nil
}

// GetByID returns a trip with its pickup points, or pgx.ErrNoRows.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	trip, err := scanTrip(r.db.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE id = $1`, id,
	))
	if err != nil {
		return nil, err
	}
	points, err := r.loadPickupPoints(ctx, []uuid.UUID{trip.ID})
	if err != nil {
		return nil, fmt.Errorf("load pickup points: %w", err)
	}
	trip.PickupPoints = points[trip.ID]
	return trip, nil
}

// List returns non-terminal trips soonest departure first, narrowed by the
// optional filters, with the total for pagination.
func (r *Repository) List(ctx context.Context, filters *models.TripFilters, limit, offset int) ([]models.Trip, int64, error) {
	baseQuery := `SELECT ` + tripColumns + ` FROM trips WHERE status IN ('scheduled', 'full')`
	countQuery := `SELECT COUNT(*) FROM trips WHERE status IN ('scheduled', 'full')`

	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if point := strings.TrimSpace(filters.DeparturePoint); point != "" {
			clause := fmt.Sprintf(" AND origin ILIKE $%d", argCount)
			baseQuery += clause
			countQuery += clause
			args = append(args, "%"+point+"%")
			argCount++
		}
		if filters.MinSeats != nil {
			clause := fmt.Sprintf(" AND seats_available >= $%d", argCount)
			baseQuery += clause
			countQuery += clause
			args = append(args, *filters.MinSeats)
			argCount++
		}
		if filters.MaxPrice != nil {
			clause := fmt.Sprintf(" AND price_per_seat <= $%d", argCount)
			baseQuery += clause
			countQuery += clause
			args = append(args, *filters.MaxPrice)
			argCount++
		}
		if filters.StartTime != nil {
			clause := fmt.Sprintf(" AND departure_at >= $%d", argCount)
			baseQuery += clause
			countQuery += clause
			args = append(args, *filters.StartTime)
			argCount++
		}
		if filters.EndTime != nil {
			clause := fmt.Sprintf(" AND departure_at <= $%d", argCount)
			baseQuery += clause
			countQuery += clause
			args = append(args, *filters.EndTime)
			argCount++
		}
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count trips: %w", err)
	}

	baseQuery += fmt.Sprintf(" ORDER BY departure_at ASC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	trips, err := r.queryTrips(ctx, baseQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return trips, total, nil
}

// ListByDriver returns every trip the driver published, newest departure
// first.
func (r *Repository) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Trip, error) {
	return r.queryTrips(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE driver_id = $1 ORDER BY departure_at DESC`,
		driverID,
	)
}

// ListByPassenger returns every trip the passenger has ever reserved on,
// newest departure first.
func (r *Repository) ListByPassenger(ctx context.Context, passengerID uuid.UUID) ([]models.Trip, error) {
	return r.queryTrips(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE id IN (SELECT trip_id FROM reservations WHERE passenger_id = $1)
		ORDER BY departure_at DESC`,
		passengerID,
	)
}

// GetDriver loads the public driver fields plus the active vehicle ref that
// trip creation falls back to.
func (r *Repository) GetDriver(ctx context.Context, driverID uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, phone, photo_url, active_vehicle_id
		FROM users WHERE id = $1`,
		driverID,
	).Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Phone, &user.PhotoURL, &user.ActiveVehicleID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AtomicReserve books seats in one conditional statement: the trip update and
// the reservation insert share a CTE, so the decrement, the status flip to
// full and the insert land together or not at all. Every precondition sits in
// the WHERE clause; a concurrent booking that invalidates any of them makes
// the statement touch zero rows. Read-then-write is forbidden on this path.
func (r *Repository) AtomicReserve(ctx context.Context, attempt *ReservationAttempt) (bool, error) {
	pickups, err := json.Marshal(attempt.PickupPoints)
	if err != nil {
		return false, fmt.Errorf("marshal pickup points: %w", err)
	}

	query := `
		WITH booked AS (
			UPDATE trips
			SET seats_available = seats_available - $4,
			    status = CASE WHEN seats_available - $4 = 0 THEN 'full' ELSE status END,
			    updated_at = NOW()
			WHERE id = $2
			  AND status IN ('scheduled', 'full')
			  AND driver_id <> $3
			  AND seats_available >= $4
			  AND NOT EXISTS (
				SELECT 1 FROM reservations
				WHERE trip_id = $2 AND passenger_id = $3 AND status IN ('pending', 'confirmed')
			  )
			RETURNING id
		)
		INSERT INTO reservations (id, trip_id, passenger_id, seats, pickup_points, payment_method, status, created_at)
		SELECT $1, booked.id, $3, $4, $5, $6, 'pending', NOW()
		FROM booked
	`
	tag, err := r.db.Exec(ctx, query,
		attempt.ReservationID, attempt.TripID, attempt.PassengerID,
		attempt.Seats, pickups, attempt.PaymentMethod,
	)
	if err != nil {
		return false, translateActiveUnique(err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetReservation returns one reservation scoped to its trip, or
// pgx.ErrNoRows.
func (r *Repository) GetReservation(ctx context.Context, tripID, reservationID uuid.UUID) (*models.Reservation, error) {
	return scanReservation(r.db.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $2 AND trip_id = $1`,
		tripID, reservationID,
	))
}

// GetActiveReservation returns the passenger's pending or confirmed
// reservation on the trip, or pgx.ErrNoRows. The reservation failure path
// uses it to tell a duplicate from an insufficient-seats loss.
func (r *Repository) GetActiveReservation(ctx context.Context, tripID, passengerID uuid.UUID) (*models.Reservation, error) {
	return scanReservation(r.db.QueryRow(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE trip_id = $1 AND passenger_id = $2 AND status IN ('pending', 'confirmed')
		LIMIT 1`,
		tripID, passengerID,
	))
}

// ListReservations returns the trip's reservations oldest first.
func (r *Repository) ListReservations(ctx context.Context, tripID uuid.UUID) ([]models.Reservation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE trip_id = $1 ORDER BY created_at`,
		tripID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}
	return reservations, rows.Err()
}

// TransitionReservation moves a reservation between states under the trip's
// row lock, so transitions on the same trip are serialized against each other
// and against the seat CAS. When the current status is not in from, nothing
// changes and the current row comes back with applied=false for the caller's
// idempotency decision. With returnSeats the held seats go back to the pool,
// capped at seats_total, and the trip status renormalizes without ever
// overriding a terminal state.
func (r *Repository) TransitionReservation(ctx context.Context, tripID, reservationID uuid.UUID, from []models.ReservationStatus, to models.ReservationStatus, returnSeats bool) (*models.Reservation, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var tripStatus models.TripStatus
	if err := tx.QueryRow(ctx,
		`SELECT status FROM trips WHERE id = $1 FOR UPDATE`, tripID,
	).Scan(&tripStatus); err != nil {
		return nil, false, err
	}

	res, err := scanReservation(tx.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $2 AND trip_id = $1`,
		tripID, reservationID,
	))
	if err != nil {
		return nil, false, err
	}

	applies := false
	for _, s := range from {
		if res.Status == s {
			applies = true
			break
		}
	}
	if !applies {
		return res, false, nil
	}

	now := time.Now()
	if _, err := tx.Exec(ctx,
		`UPDATE reservations SET status = $3, decision_at = $4 WHERE id = $2 AND trip_id = $1`,
		tripID, reservationID, to, now,
	); err != nil {
		return nil, false, fmt.Errorf("update reservation: %w", err)
	}

	if returnSeats {
		if _, err := tx.Exec(ctx, `
			UPDATE trips
			SET seats_available = LEAST(seats_available + $2, seats_total),
			    status = CASE
				WHEN status IN ('cancelled', 'completed') THEN status
				WHEN LEAST(seats_available + $2, seats_total) = 0 THEN 'full'
				ELSE 'scheduled'
			    END,
			    updated_at = NOW()
			WHERE id = $1`,
			tripID, res.Seats,
		); err != nil {
			return nil, false, fmt.Errorf("return seats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}
	res.Status = to
	res.DecisionAt = &now
	return res, true, nil
}

// CancelTrip marks the trip cancelled, zeroes its seats and cancels every
// active reservation, returning the affected passengers for the email
// fan-out.
func (r *Repository) CancelTrip(ctx context.Context, tripID uuid.UUID) ([]CancelledPassenger, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE trips
		SET status = 'cancelled', seats_available = 0, updated_at = NOW()
		WHERE id = $1`,
		tripID,
	); err != nil {
		return nil, fmt.Errorf("cancel trip: %w", err)
	}

	rows, err := tx.Query(ctx, `
		UPDATE reservations res
		SET status = 'cancelled', decision_at = NOW()
		FROM users u
		WHERE res.trip_id = $1
		  AND res.status IN ('pending', 'confirmed')
		  AND u.id = res.passenger_id
		RETURNING res.passenger_id, u.email, u.first_name`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel reservations: %w", err)
	}

	var affected []CancelledPassenger
	for rows.Next() {
		var p CancelledPassenger
		if err := rows.Scan(&p.PassengerID, &p.Email, &p.FirstName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cancelled passenger: %w", err)
		}
		affected = append(affected, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return affected, nil
}

// CompleteTrip marks a non-terminal trip completed. Zero rows affected means
// the trip was already terminal (or absent); the service decides idempotency.
func (r *Repository) CompleteTrip(ctx context.Context, tripID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE trips
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status IN ('scheduled', 'full')`,
		tripID,
	)
	if err != nil {
		return fmt.Errorf("complete trip: %w", err)
	}
	return nil
}

// CountPendingSuggestions counts the passenger's unresolved suggestions on
// one trip, for the per-passenger cap.
func (r *Repository) CountPendingSuggestions(ctx context.Context, tripID, passengerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM pickup_suggestions
		WHERE trip_id = $1 AND passenger_id = $2 AND status = 'pending'`,
		tripID, passengerID,
	).Scan(&count)
	return count, err
}

// AddSuggestion stores the suggestion and its mirrored trip pickup point in
// one transaction.
func (r *Repository) AddSuggestion(ctx context.Context, suggestion *models.PickupSuggestion, point *models.TripPickupPoint) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertTripPickupPoint(ctx, tx, point); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO pickup_suggestions (id, trip_id, passenger_id, point_id, name, description, latitude, longitude, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		suggestion.ID, suggestion.TripID, suggestion.PassengerID, suggestion.PointID,
		suggestion.Name, suggestion.Description, suggestion.Latitude, suggestion.Longitude,
		suggestion.Status, suggestion.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert pickup suggestion: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetSuggestion returns one suggestion scoped to its trip, or pgx.ErrNoRows.
func (r *Repository) GetSuggestion(ctx context.Context, tripID, suggestionID uuid.UUID) (*models.PickupSuggestion, error) {
	return scanSuggestion(r.db.QueryRow(ctx, `
		SELECT id, trip_id, passenger_id, point_id, name, description, latitude, longitude, status, created_at, resolved_at
		FROM pickup_suggestions
		WHERE id = $2 AND trip_id = $1`,
		tripID, suggestionID,
	))
}

// ListSuggestions returns the trip's suggestions oldest first.
func (r *Repository) ListSuggestions(ctx context.Context, tripID uuid.UUID) ([]models.PickupSuggestion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, trip_id, passenger_id, point_id, name, description, latitude, longitude, status, created_at, resolved_at
		FROM pickup_suggestions
		WHERE trip_id = $1
		ORDER BY created_at`,
		tripID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suggestions []models.PickupSuggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, *s)
	}
	return suggestions, rows.Err()
}

// ResolveSuggestion persists the driver's decision. Rejection also retires
// the mirrored trip pickup point so passengers stop seeing it.
func (r *Repository) ResolveSuggestion(ctx context.Context, suggestion *models.PickupSuggestion, rejectPoint bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE pickup_suggestions SET status = $3, resolved_at = $4 WHERE id = $2 AND trip_id = $1`,
		suggestion.TripID, suggestion.ID, suggestion.Status, suggestion.ResolvedAt,
	); err != nil {
		return fmt.Errorf("resolve suggestion: %w", err)
	}
	if rejectPoint && suggestion.PointID != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE trip_pickup_points SET status = 'rejected' WHERE id = $2 AND trip_id = $1`,
			suggestion.TripID, *suggestion.PointID,
		); err != nil {
			return fmt.Errorf("retire pickup point: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Manifest returns the driver's passenger list: one entry per reservation
// with the minimal contact fields, oldest first.
func (r *Repository) Manifest(ctx context.Context, tripID uuid.UUID) ([]models.PassengerManifestEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT res.id, res.passenger_id, u.first_name, u.last_name, u.email, u.phone,
		       res.seats, res.pickup_points, res.payment_method, res.status,
		       res.created_at, res.decision_at
		FROM reservations res
		JOIN users u ON u.id = res.passenger_id
		WHERE res.trip_id = $1
		ORDER BY res.created_at`,
		tripID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PassengerManifestEntry
	for rows.Next() {
		var e models.PassengerManifestEntry
		var pickups []byte
		if err := rows.Scan(
			&e.ReservationID, &e.PassengerID, &e.FirstName, &e.LastName, &e.Email, &e.Phone,
			&e.Seats, &pickups, &e.PaymentMethod, &e.Status, &e.CreatedAt, &e.DecisionAt,
		); err != nil {
			return nil, fmt.Errorf("scan manifest entry: %w", err)
		}
		if err := json.Unmarshal(pickups, &e.PickupPoints); err != nil {
			return nil, fmt.Errorf("decode pickup points: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) queryTrips(ctx context.Context, query string, args ...interface{}) ([]models.Trip, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []models.Trip
	var ids []uuid.UUID
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *trip)
		ids = append(ids, trip.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return trips, nil
	}

	points, err := r.loadPickupPoints(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load pickup points: %w", err)
	}
	for i := range trips {
		trips[i].PickupPoints = points[trips[i].ID]
	}
	return trips, nil
}

func (r *Repository) loadPickupPoints(ctx context.Context, tripIDs []uuid.UUID) (map[uuid.UUID][]models.TripPickupPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, trip_id, name, description, latitude, longitude, source, status, created_at
		FROM trip_pickup_points
		WHERE trip_id = ANY($1)
		ORDER BY created_at`,
		tripIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make(map[uuid.UUID][]models.TripPickupPoint)
	for rows.Next() {
		var p models.TripPickupPoint
		if err := rows.Scan(&p.ID, &p.TripID, &p.Name, &p.Description, &p.Latitude, &p.Longitude, &p.Source, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		points[p.TripID] = append(points[p.TripID], p)
	}
	return points, rows.Err()
}

func scanTrip(row interface{ Scan(dest ...any) error }) (*models.Trip, error) {
	t := &models.Trip{}
	err := row.Scan(
		&t.ID, &t.DriverID, &t.VehicleID, &t.Origin, &t.Destination, &t.RouteDescription,
		&t.DepartureAt, &t.SeatsTotal, &t.SeatsAvailable, &t.PricePerSeat,
		&t.DistanceKm, &t.DurationMinutes, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanReservation(row interface{ Scan(dest ...any) error }) (*models.Reservation, error) {
	res := &models.Reservation{}
	var pickups []byte
	err := row.Scan(
		&res.ID, &res.TripID, &res.PassengerID, &res.Seats, &pickups,
		&res.PaymentMethod, &res.Status, &res.CreatedAt, &res.DecisionAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pickups, &res.PickupPoints); err != nil {
		return nil, fmt.Errorf("decode pickup points: %w", err)
	}
	return res, nil
}

func scanSuggestion(row interface{ Scan(dest ...any) error }) (*models.PickupSuggestion, error) {
	s := &models.PickupSuggestion{}
	err := row.Scan(
		&s.ID, &s.TripID, &s.PassengerID, &s.PointID, &s.Name, &s.Description,
		&s.Latitude, &s.Longitude, &s.Status, &s.CreatedAt, &s.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// translateActiveUnique maps a violation of the active-reservation partial
// unique index onto its sentinel.
func translateActiveUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "active") {
		return ErrDuplicateReservation
	}
	return err
}
