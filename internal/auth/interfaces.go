package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/models"
)

// RepositoryInterface defines the persistence operations the auth service
// depends on, so tests can swap in mocks.
type RepositoryInterface interface {
	CreateUser(ctx context.Context, user *models.User) error
	CreateUserWithVehicle(ctx context.Context, user *models.User, vehicle *models.Vehicle) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error
	GetPasswordResetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error)
	ConsumePasswordReset(ctx context.Context, resetID, userID uuid.UUID, passwordHash string) error
}

// VehicleRegistry is the slice of the vehicle registry the auth flows need:
// payload validation during driver registration and eligibility checks when
// switching into the driver role.
type VehicleRegistry interface {
	ValidateNew(ctx context.Context, req *models.CreateVehicleRequest) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error)
}

// MailSender is the slice of the mailer the auth flows use. Delivery failures
// are logged, never surfaced to clients.
type MailSender interface {
	SendWelcomeEmail(ctx context.Context, to, name string) error
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
}
