package vehicles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sabanago/ride-sharing/pkg/models"
)

// ErrDuplicatePlate reports a plate unique-index violation. The service maps
// it to a client-facing conflict.
var ErrDuplicatePlate = errors.New("plate already registered")

// Repository handles database operations for vehicles and pickup points.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new vehicles repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// execer is the slice of pgxpool.Pool and pgx.Tx the writes run against.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InsertVehicle writes the vehicle row and its pickup points inside the
// caller's transaction. Driver registration uses it to land the user and the
// vehicle atomically. Unique violations come back unwrapped so callers can
// translate them.
func InsertVehicle(ctx context.Context, tx pgx.Tx, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (
			id, owner_id, plate, brand, model, capacity, year, color,
			vehicle_photo_url, soat_photo_url, soat_expiration,
			license_number, license_photo_url, license_expiration,
			status, status_updated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
	`
	_, err := tx.Exec(ctx, query,
		v.ID, v.OwnerID, v.Plate, v.Brand, v.Model, v.Capacity, v.Year, v.Color,
		v.VehiclePhotoURL, v.SoatPhotoURL, v.SoatExpiration,
		v.LicenseNumber, v.LicensePhotoURL, v.LicenseExpiration,
		v.Status, v.StatusUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return insertPickupPoints(ctx, tx, v.PickupPoints)
}

func insertPickupPoints(ctx context.Context, q execer, points []models.VehiclePickupPoint) error {
	for _, p := range points {
		if _, err := q.Exec(ctx, `
			INSERT INTO vehicle_pickup_points (id, vehicle_id, name, description, latitude, longitude, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.VehicleID, p.Name, p.Description, p.Latitude, p.Longitude, p.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert pickup point %q: %w", p.Name, err)
		}
	}
	return nil
}

// Create inserts a vehicle and promotes its owner in one transaction: the
// driver role is appended when missing and the vehicle becomes active when
// the owner has none.
func (r *Repository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := InsertVehicle(ctx, tx, vehicle); err != nil {
		return translateUnique(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET roles = CASE WHEN $2 = ANY(roles) THEN roles ELSE array_append(roles, $2) END,
		    active_vehicle_id = COALESCE(active_vehicle_id, $3),
		    updated_at = NOW()
		WHERE id = $1`,
		vehicle.OwnerID, string(models.RoleDriver), vehicle.ID,
	); err != nil {
		return fmt.Errorf("promote owner: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID returns a vehicle with its pickup points, or pgx.ErrNoRows.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	query := `
		SELECT id, owner_id, plate, brand, model, capacity, year, color,
		       vehicle_photo_url, soat_photo_url, soat_expiration,
		       license_number, license_photo_url, license_expiration,
		       status, status_updated_at, requested_review_at, reviewed_at,
		       reviewed_by, verification_notes, created_at, updated_at
		FROM vehicles
		WHERE id = $1
	`
	vehicle, err := scanVehicle(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	points, err := r.loadPickupPoints(ctx, []uuid.UUID{vehicle.ID})
	if err != nil {
		return nil, fmt.Errorf("load pickup points: %w", err)
	}
	vehicle.PickupPoints = points[vehicle.ID]
	return vehicle, nil
}

// ListByOwner returns the owner's vehicles oldest first, pickup points
// included.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error) {
	query := `
		SELECT id, owner_id, plate, brand, model, capacity, year, color,
		       vehicle_photo_url, soat_photo_url, soat_expiration,
		       license_number, license_photo_url, license_expiration,
		       status, status_updated_at, requested_review_at, reviewed_at,
		       reviewed_by, verification_notes, created_at, updated_at
		FROM vehicles
		WHERE owner_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	var ids []uuid.UUID
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *vehicle)
		ids = append(ids, vehicle.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return vehicles, nil
	}

	points, err := r.loadPickupPoints(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load pickup points: %w", err)
	}
	for i := range vehicles {
		vehicles[i].PickupPoints = points[vehicles[i].ID]
	}
	return vehicles, nil
}

// Update persists the full vehicle row. With replacePoints the stored pickup
// points are swapped for the ones on the struct in the same transaction.
func (r *Repository) Update(ctx context.Context, vehicle *models.Vehicle, replacePoints bool) error {
	if !replacePoints {
		return translateUnique(updateVehicle(ctx, r.db, vehicle))
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateVehicle(ctx, tx, vehicle); err != nil {
		return translateUnique(err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM vehicle_pickup_points WHERE vehicle_id = $1`, vehicle.ID,
	); err != nil {
		return fmt.Errorf("clear pickup points: %w", err)
	}
	if err := insertPickupPoints(ctx, tx, vehicle.PickupPoints); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func updateVehicle(ctx context.Context, q execer, v *models.Vehicle) error {
	query := `
		UPDATE vehicles
		SET plate = $2, brand = $3, model = $4, capacity = $5, year = $6,
		    color = $7, vehicle_photo_url = $8, soat_photo_url = $9,
		    soat_expiration = $10, license_number = $11, license_photo_url = $12,
		    license_expiration = $13, status = $14, status_updated_at = $15,
		    requested_review_at = $16, reviewed_at = $17, reviewed_by = $18,
		    verification_notes = $19, updated_at = NOW()
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query,
		v.ID, v.Plate, v.Brand, v.Model, v.Capacity, v.Year,
		v.Color, v.VehiclePhotoURL, v.SoatPhotoURL,
		v.SoatExpiration, v.LicenseNumber, v.LicensePhotoURL,
		v.LicenseExpiration, v.Status, v.StatusUpdatedAt,
		v.RequestedReviewAt, v.ReviewedAt, v.ReviewedBy,
		v.VerificationNotes,
	)
	if err != nil {
		return fmt.Errorf("update vehicle: %w", err)
	}
	return nil
}

// Delete removes the vehicle. Pickup points cascade and any
// users.active_vehicle_id referencing it goes null through the foreign keys.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	return err
}

// PlateExists reports whether another vehicle already carries the plate.
// Pass uuid.Nil on create, the vehicle's own id on update.
func (r *Repository) PlateExists(ctx context.Context, plate string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vehicles WHERE plate = $1 AND id <> $2)`,
		plate, excludeID,
	).Scan(&exists)
	return exists, err
}

// HasActiveTrips reports whether the vehicle still backs upcoming published
// trips, which blocks deletion.
func (r *Repository) HasActiveTrips(ctx context.Context, vehicleID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trips
			WHERE vehicle_id = $1
			  AND status IN ('scheduled', 'full')
			  AND departure_at >= NOW()
		)`, vehicleID,
	).Scan(&exists)
	return exists, err
}

// GetOwner loads only the capability fields the registry recomputes: roles,
// active role and active vehicle.
func (r *Repository) GetOwner(ctx context.Context, ownerID uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var roles []string
	err := r.db.QueryRow(ctx,
		`SELECT id, roles, active_role, active_vehicle_id FROM users WHERE id = $1`,
		ownerID,
	).Scan(&user.ID, &roles, &user.ActiveRole, &user.ActiveVehicleID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		user.Roles = append(user.Roles, models.Role(role))
	}
	return user, nil
}

// UpdateOwnerVehicleState persists a recomputed capability set for the owner.
func (r *Repository) UpdateOwnerVehicleState(ctx context.Context, ownerID uuid.UUID, roles []models.Role, activeRole models.Role, activeVehicleID *uuid.UUID) error {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET roles = $2, active_role = $3, active_vehicle_id = $4, updated_at = NOW()
		WHERE id = $1`,
		ownerID, names, activeRole, activeVehicleID,
	)
	return err
}

// SetActiveVehicle points the owner at the given vehicle.
func (r *Repository) SetActiveVehicle(ctx context.Context, ownerID, vehicleID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET active_vehicle_id = $2, updated_at = NOW() WHERE id = $1`,
		ownerID, vehicleID,
	)
	return err
}

// GetPickupPoint returns one pickup point scoped to its vehicle, or
// pgx.ErrNoRows.
func (r *Repository) GetPickupPoint(ctx context.Context, vehicleID, pointID uuid.UUID) (*models.VehiclePickupPoint, error) {
	p := &models.VehiclePickupPoint{}
	err := r.db.QueryRow(ctx, `
		SELECT id, vehicle_id, name, description, latitude, longitude, created_at
		FROM vehicle_pickup_points
		WHERE id = $2 AND vehicle_id = $1`,
		vehicleID, pointID,
	).Scan(&p.ID, &p.VehicleID, &p.Name, &p.Description, &p.Latitude, &p.Longitude, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AddPickupPoint appends one pickup point to a vehicle.
func (r *Repository) AddPickupPoint(ctx context.Context, point *models.VehiclePickupPoint) error {
	return insertPickupPoints(ctx, r.db, []models.VehiclePickupPoint{*point})
}

// UpdatePickupPoint rewrites one pickup point in place.
func (r *Repository) UpdatePickupPoint(ctx context.Context, point *models.VehiclePickupPoint) error {
	_, err := r.db.Exec(ctx, `
		UPDATE vehicle_pickup_points
		SET name = $3, description = $4, latitude = $5, longitude = $6
		WHERE id = $2 AND vehicle_id = $1`,
		point.VehicleID, point.ID, point.Name, point.Description, point.Latitude, point.Longitude,
	)
	return err
}

// DeletePickupPoint removes one pickup point and reports whether it existed.
func (r *Repository) DeletePickupPoint(ctx context.Context, vehicleID, pointID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM vehicle_pickup_points WHERE id = $2 AND vehicle_id = $1`,
		vehicleID, pointID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) loadPickupPoints(ctx context.Context, vehicleIDs []uuid.UUID) (map[uuid.UUID][]models.VehiclePickupPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, vehicle_id, name, description, latitude, longitude, created_at
		FROM vehicle_pickup_points
		WHERE vehicle_id = ANY($1)
		ORDER BY created_at`, vehicleIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make(map[uuid.UUID][]models.VehiclePickupPoint)
	for rows.Next() {
		var p models.VehiclePickupPoint
		if err := rows.Scan(&p.ID, &p.VehicleID, &p.Name, &p.Description, &p.Latitude, &p.Longitude, &p.CreatedAt); err != nil {
			return nil, err
		}
		points[p.VehicleID] = append(points[p.VehicleID], p)
	}
	return points, rows.Err()
}

func scanVehicle(row interface{ Scan(dest ...any) error }) (*models.Vehicle, error) {
	v := &models.Vehicle{}
	err := row.Scan(
		&v.ID, &v.OwnerID, &v.Plate, &v.Brand, &v.Model, &v.Capacity, &v.Year, &v.Color,
		&v.VehiclePhotoURL, &v.SoatPhotoURL, &v.SoatExpiration,
		&v.LicenseNumber, &v.LicensePhotoURL, &v.LicenseExpiration,
		&v.Status, &v.StatusUpdatedAt, &v.RequestedReviewAt, &v.ReviewedAt,
		&v.ReviewedBy, &v.VerificationNotes, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// translateUnique maps the plate unique violation onto its sentinel.
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if err != nil && errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "plate") {
		return ErrDuplicatePlate
	}
	return err
}
