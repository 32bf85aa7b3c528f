package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sabanago/ride-sharing/internal/vehicles"
	"github.com/sabanago/ride-sharing/pkg/models"
)

// Sentinel errors for races the unique indexes catch. The service maps them
// to client-facing conflicts.
var (
	ErrEmailTaken        = errors.New("email already registered")
	ErrUniversityIDTaken = errors.New("university id already registered")
	ErrPlateTaken        = errors.New("plate already registered")
	ErrResetConsumed     = errors.New("reset token already used")
)

// Repository handles database operations for users and password resets.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new auth repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// execer is the slice of pgxpool.Pool and pgx.Tx the inserts run against.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return insertUser(ctx, r.db, user)
}

// CreateUserWithVehicle registers a driver atomically: the user row, the
// vehicle row, and the active-vehicle pointer all land in one transaction.
func (r *Repository) CreateUserWithVehicle(ctx context.Context, user *models.User, vehicle *models.Vehicle) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}
	if err := vehicles.InsertVehicle(ctx, tx, vehicle); err != nil {
		return translateUnique(err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET active_vehicle_id = $2, updated_at = NOW() WHERE id = $1`,
		user.ID, vehicle.ID,
	); err != nil {
		return fmt.Errorf("set active vehicle: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	user.ActiveVehicleID = &vehicle.ID
	return nil
}

func insertUser(ctx context.Context, q execer, user *models.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, university_id,
			phone, photo_url, roles, active_role, active_vehicle_id,
			emergency_contact, preferred_payment_method, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`
	_, err := q.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.UniversityID, user.Phone, user.PhotoURL, rolesToStrings(user.Roles),
		user.ActiveRole, user.ActiveVehicleID, user.EmergencyContact,
		user.PreferredPaymentMethod,
	)
	return translateUnique(err)
}

// GetUserByEmail returns the user with the given email, or pgx.ErrNoRows.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, university_id,
		       phone, photo_url, roles, active_role, active_vehicle_id,
		       emergency_contact, preferred_payment_method, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

// GetUserByID returns the user with the given id, or pgx.ErrNoRows.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, university_id,
		       phone, photo_url, roles, active_role, active_vehicle_id,
		       emergency_contact, preferred_payment_method, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	user := &models.User{}
	var roles []string
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.UniversityID, &user.Phone, &user.PhotoURL, &roles, &user.ActiveRole,
		&user.ActiveVehicleID, &user.EmergencyContact, &user.PreferredPaymentMethod,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Roles = rolesFromStrings(roles)
	return user, nil
}

// UpdateUser persists the mutable profile and role fields.
func (r *Repository) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, phone = $4, photo_url = $5,
		    roles = $6, active_role = $7, active_vehicle_id = $8,
		    emergency_contact = $9, preferred_payment_method = $10, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Phone, user.PhotoURL,
		rolesToStrings(user.Roles), user.ActiveRole, user.ActiveVehicleID,
		user.EmergencyContact, user.PreferredPaymentMethod,
	)
	return err
}

// CreatePasswordReset invalidates any prior unused tokens for the user and
// stores the new one in the same transaction.
func (r *Repository) CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE password_resets SET used = TRUE WHERE user_id = $1 AND used = FALSE`,
		reset.UserID,
	); err != nil {
		return fmt.Errorf("invalidate prior tokens: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())`,
		reset.ID, reset.UserID, reset.TokenHash, reset.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return tx.Commit(ctx)
}

// GetPasswordResetByTokenHash returns the reset entry for a token hash, or
// pgx.ErrNoRows.
func (r *Repository) GetPasswordResetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	reset := &models.PasswordReset{}
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, used, created_at
		FROM password_resets
		WHERE token_hash = $1`, tokenHash,
	).Scan(&reset.ID, &reset.UserID, &reset.TokenHash, &reset.ExpiresAt, &reset.Used, &reset.CreatedAt)
	if err != nil {
		return nil, err
	}
	return reset, nil
}

// ConsumePasswordReset marks the token used and rewrites the user's password
// in one transaction. A token already redeemed by a concurrent request
// surfaces as ErrResetConsumed.
func (r *Repository) ConsumePasswordReset(ctx context.Context, resetID, userID uuid.UUID, passwordHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE password_resets SET used = TRUE WHERE id = $1 AND used = FALSE`, resetID)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResetConsumed
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash,
	); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return tx.Commit(ctx)
}

// translateUnique maps postgres unique violations onto sentinel errors.
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return ErrEmailTaken
	case strings.Contains(pgErr.ConstraintName, "university"):
		return ErrUniversityIDTaken
	case strings.Contains(pgErr.ConstraintName, "plate"):
		return ErrPlateTaken
	}
	return err
}

func rolesToStrings(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}

func rolesFromStrings(roles []string) []models.Role {
	out := make([]models.Role, len(roles))
	for i, role := range roles {
		out[i] = models.Role(role)
	}
	return out
}
