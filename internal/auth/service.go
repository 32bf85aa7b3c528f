package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sabanago/ride-sharing/internal/vehicles"
	"github.com/sabanago/ride-sharing/pkg/async"
	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/logger"
	"github.com/sabanago/ride-sharing/pkg/middleware"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/session"
	"github.com/sabanago/ride-sharing/pkg/tracing"
	"github.com/sabanago/ride-sharing/pkg/validation"
)

// Client-facing error codes for identity flows.
const (
	CodeInvalidEmailDomain    = "INVALID_EMAIL_DOMAIN"
	CodeWeakPassword          = "WEAK_PASSWORD"
	CodeDuplicateEmail        = "DUPLICATE_EMAIL"
	CodeDuplicateUniversityID = "DUPLICATE_UNIVERSITY_ID"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeTokenInvalidOrExpired = "TOKEN_INVALID_OR_EXPIRED"
	CodeRoleNotEnabled        = "ROLE_NOT_ENABLED"
	CodeDocumentsInvalid      = "DOCUMENTS_INVALID"
)

// Service handles identity business logic.
type Service struct {
	repo      RepositoryInterface
	registry  VehicleRegistry
	mailer    MailSender
	sessions  session.RevocationStore
	jwtSecret string
	jwtExpiry time.Duration
	cfg       config.AuthConfig
}

// NewService creates a new auth service.
func NewService(repo RepositoryInterface, registry VehicleRegistry, mailer MailSender, sessions session.RevocationStore, jwtCfg config.JWTConfig, authCfg config.AuthConfig) *Service {
	return &Service{
		repo:      repo,
		registry:  registry,
		mailer:    mailer,
		sessions:  sessions,
		jwtSecret: jwtCfg.Secret,
		jwtExpiry: jwtCfg.JWTExpiry(),
		cfg:       authCfg,
	}
}

// Register creates an account. Driver registrations carry a vehicle payload
// and both rows land in one transaction, so a half-registered driver cannot
// exist.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "auth-service", "Register")
	defer span.End()
	span.SetAttributes(attribute.String("user.role", string(req.Role)))

	email := validation.NormalizeEmail(req.Email)
	if err := s.checkEmailDomain(email); err != nil {
		return nil, err
	}
	if len(req.Password) < s.cfg.MinPasswordLength {
		return nil, weakPassword(s.cfg.MinPasswordLength)
	}

	if existing, err := s.repo.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, common.NewConflictError("email already registered").WithCode(CodeDuplicateEmail)
	}

	if req.Role == models.RoleDriver {
		if req.Vehicle == nil {
			return nil, common.NewBadRequestError("vehicle is required for driver registration", nil)
		}
		if err := s.registry.ValidateNew(ctx, req.Vehicle); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost())
	if err != nil {
		return nil, common.NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		ID:                     uuid.New(),
		Email:                  email,
		PasswordHash:           string(hash),
		FirstName:              strings.TrimSpace(req.FirstName),
		LastName:               strings.TrimSpace(req.LastName),
		UniversityID:           strings.TrimSpace(req.UniversityID),
		Phone:                  strings.TrimSpace(req.Phone),
		PhotoURL:               req.PhotoURL,
		Roles:                  []models.Role{models.RolePassenger},
		ActiveRole:             models.RolePassenger,
		PreferredPaymentMethod: models.PaymentCash,
	}

	if req.Role == models.RoleDriver {
		user.AddRole(models.RoleDriver)
		user.ActiveRole = models.RoleDriver
		vehicle := vehicles.NewVehicle(user.ID, req.Vehicle)
		if err := s.repo.CreateUserWithVehicle(ctx, user, vehicle); err != nil {
			return nil, mapCreateError(err)
		}
	} else if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, mapCreateError(err)
	}

	// Delivery failures must never fail registration.
	s.sendAsync(ctx, "welcome-email", user.Email, func(taskCtx context.Context) error {
		return s.mailer.SendWelcomeEmail(taskCtx, user.Email, user.FirstName)
	})

	token, err := s.generateToken(user)
	if err != nil {
		return nil, common.NewInternalError("failed to generate token", err)
	}

	user.PasswordHash = ""
	return &models.AuthResponse{User: user, Token: token}, nil
}

// Login verifies credentials and issues an access token. Unknown accounts and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "auth-service", "Login")
	defer span.End()

	user, err := s.repo.GetUserByEmail(ctx, validation.NormalizeEmail(req.Email))
	if err != nil {
		return nil, invalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalidCredentials()
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, common.NewInternalError("failed to generate token", err)
	}

	user.PasswordHash = ""
	return &models.AuthResponse{User: user, Token: token}, nil
}

// Logout revokes the presented token until its natural expiry.
func (s *Service) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token, expiresAt); err != nil {
		return common.NewInternalError("failed to revoke session", err)
	}
	return nil
}

// GetProfile returns the caller's profile.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("user not found", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateProfile mutates the editable profile fields. Nil pointers keep the
// current value.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("user not found", err)
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.PhotoURL != nil {
		user.PhotoURL = req.PhotoURL
	}
	if req.EmergencyContact != nil {
		user.EmergencyContact = req.EmergencyContact
	}
	if req.PreferredPaymentMethod != nil {
		if !models.ValidPaymentMethod(*req.PreferredPaymentMethod) {
			return nil, common.NewValidationError("unsupported payment method")
		}
		user.PreferredPaymentMethod = *req.PreferredPaymentMethod
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, common.NewInternalError("failed to update profile", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// SwitchRole changes the active role. Switching into the driver seat requires
// a verified vehicle with current documents; the first eligible one is
// adopted when no vehicle is active yet.
func (s *Service) SwitchRole(ctx context.Context, userID uuid.UUID, role models.Role) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, common.NewNotFoundError("user not found", err)
	}
	if !user.HasRole(role) {
		return nil, common.NewForbiddenError("role not enabled for this account").WithCode(CodeRoleNotEnabled)
	}

	if role == models.RoleDriver {
		eligible, err := s.eligibleVehicle(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if user.ActiveVehicleID == nil {
			user.ActiveVehicleID = &eligible.ID
		}
	}

	user.ActiveRole = role
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, common.NewInternalError("failed to switch role", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// eligibleVehicle returns the first verified vehicle with current documents.
func (s *Service) eligibleVehicle(ctx context.Context, ownerID uuid.UUID) (*models.Vehicle, error) {
	owned, err := s.registry.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, common.NewInternalError("failed to list vehicles", err)
	}
	now := time.Now()
	for i := range owned {
		v := &owned[i]
		if v.Status == models.VehicleStatusVerified && v.DocumentsValid(now) {
			return v, nil
		}
	}
	return nil, common.NewBadRequestError("driving requires a verified vehicle with current documents", nil).WithCode(CodeDocumentsInvalid)
}

// ForgotPassword issues a reset token when the account exists. The response
// is identical either way so the endpoint cannot be used to probe accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			logger.ErrorContext(ctx, "password reset lookup failed", zap.Error(err))
		}
		return nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return common.NewInternalError("failed to generate reset token", err)
	}
	token := hex.EncodeToString(raw)

	reset := &models.PasswordReset{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: hashResetToken(token),
		ExpiresAt: time.Now().Add(s.cfg.PasswordResetTTL()),
	}
	if err := s.repo.CreatePasswordReset(ctx, reset); err != nil {
		return common.NewInternalError("failed to store reset token", err)
	}

	s.sendAsync(ctx, "password-reset-email", user.Email, func(taskCtx context.Context) error {
		return s.mailer.SendPasswordResetEmail(taskCtx, user.Email, user.FirstName, token)
	})
	return nil
}

// ResetPassword redeems a reset token for a new password. The token hash is
// marked used and the password rewritten in one transaction.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < s.cfg.MinPasswordLength {
		return weakPassword(s.cfg.MinPasswordLength)
	}

	reset, err := s.repo.GetPasswordResetByTokenHash(ctx, hashResetToken(token))
	if err != nil {
		return invalidResetToken()
	}
	if reset.Used || reset.Expired(time.Now()) {
		return invalidResetToken()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost())
	if err != nil {
		return common.NewInternalError("failed to hash password", err)
	}
	if err := s.repo.ConsumePasswordReset(ctx, reset.ID, reset.UserID, string(hash)); err != nil {
		if errors.Is(err, ErrResetConsumed) {
			return invalidResetToken()
		}
		return common.NewInternalError("failed to reset password", err)
	}
	return nil
}

// generateToken signs an HS256 access token for the user.
func (s *Service) generateToken(user *models.User) (string, error) {
	if s.jwtSecret == "" {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	now := time.Now()
	claims := &middleware.Claims{
		Email: user.Email,
		Role:  user.ActiveRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *Service) sendAsync(ctx context.Context, taskName, to string, send func(ctx context.Context) error) {
	async.Go(ctx, taskName, func(taskCtx context.Context) {
		if err := send(taskCtx); err != nil {
			logger.WarnContext(taskCtx, "email delivery failed",
				zap.String("task", taskName),
				zap.String("to", to),
				zap.Error(err),
			)
		}
	})
}

func (s *Service) bcryptCost() int {
	if s.cfg.BcryptCost < bcrypt.MinCost || s.cfg.BcryptCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return s.cfg.BcryptCost
}

func (s *Service) checkEmailDomain(email string) error {
	domain := s.cfg.AllowedEmailDomain
	if domain == "" {
		return nil
	}
	if !validation.InstitutionalEmail(email, domain) {
		return common.NewBadRequestError(fmt.Sprintf("email must belong to %s", domain), nil).WithCode(CodeInvalidEmailDomain)
	}
	return nil
}

func mapCreateError(err error) error {
	switch {
	case errors.Is(err, ErrEmailTaken):
		return common.NewConflictError("email already registered").WithCode(CodeDuplicateEmail)
	case errors.Is(err, ErrUniversityIDTaken):
		return common.NewConflictError("university id already registered").WithCode(CodeDuplicateUniversityID)
	case errors.Is(err, ErrPlateTaken):
		return common.NewConflictError("plate already registered").WithCode(vehicles.CodeDuplicatePlate)
	}
	return common.NewInternalError("failed to create user", err)
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func weakPassword(minLen int) error {
	return common.NewBadRequestError(fmt.Sprintf("password must be at least %d characters", minLen), nil).WithCode(CodeWeakPassword)
}

func invalidCredentials() error {
	return common.NewUnauthorizedError("invalid credentials").WithCode(CodeInvalidCredentials)
}

func invalidResetToken() error {
	return common.NewBadRequestError("reset token is invalid or expired", nil).WithCode(CodeTokenInvalidOrExpired)
}
