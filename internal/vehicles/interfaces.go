package vehicles

import (
	"context"

	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/models"
)

// RepositoryInterface defines the persistence operations the vehicles
// service depends on, so tests can swap in mocks.
type RepositoryInterface interface {
	Create(ctx context.Context, vehicle *models.Vehicle) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error)
	Update(ctx context.Context, vehicle *models.Vehicle, replacePoints bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	PlateExists(ctx context.Context, plate string, excludeID uuid.UUID) (bool, error)
	HasActiveTrips(ctx context.Context, vehicleID uuid.UUID) (bool, error)
	GetOwner(ctx context.Context, ownerID uuid.UUID) (*models.User, error)
	UpdateOwnerVehicleState(ctx context.Context, ownerID uuid.UUID, roles []models.Role, activeRole models.Role, activeVehicleID *uuid.UUID) error
	SetActiveVehicle(ctx context.Context, ownerID, vehicleID uuid.UUID) error
	GetPickupPoint(ctx context.Context, vehicleID, pointID uuid.UUID) (*models.VehiclePickupPoint, error)
	AddPickupPoint(ctx context.Context, point *models.VehiclePickupPoint) error
	UpdatePickupPoint(ctx context.Context, point *models.VehiclePickupPoint) error
	DeletePickupPoint(ctx context.Context, vehicleID, pointID uuid.UUID) (bool, error)
}
