package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sabanago/ride-sharing/internal/vehicles"
	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/middleware"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/session"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockRepository) CreateUserWithVehicle(ctx context.Context, user *models.User, vehicle *models.Vehicle) error {
	args := m.Called(ctx, user, vehicle)
	return args.Error(0)
}

func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) UpdateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockRepository) CreatePasswordReset(ctx context.Context, reset *models.PasswordReset) error {
	args := m.Called(ctx, reset)
	return args.Error(0)
}

func (m *MockRepository) GetPasswordResetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	args := m.Called(ctx, tokenHash)
	if reset := args.Get(0); reset != nil {
		return reset.(*models.PasswordReset), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ConsumePasswordReset(ctx context.Context, resetID, userID uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, resetID, userID, passwordHash)
	return args.Error(0)
}

type stubRegistry struct {
	validateErr error
	owned       []models.Vehicle
	listErr     error
}

func (s *stubRegistry) ValidateNew(_ context.Context, _ *models.CreateVehicleRequest) error {
	return s.validateErr
}

func (s *stubRegistry) ListByOwner(_ context.Context, _ uuid.UUID) ([]models.Vehicle, error) {
	return s.owned, s.listErr
}

type stubMailer struct {
	mu       sync.Mutex
	welcomes []string
	resets   []string
	err      error
}

func (s *stubMailer) SendWelcomeEmail(_ context.Context, to, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.welcomes = append(s.welcomes, to)
	return s.err
}

func (s *stubMailer) SendPasswordResetEmail(_ context.Context, _, _, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, token)
	return s.err
}

func (s *stubMailer) welcomeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.welcomes)
}

func (s *stubMailer) lastReset() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.resets) == 0 {
		return "", false
	}
	return s.resets[len(s.resets)-1], true
}

func newTestService(repo RepositoryInterface, registry VehicleRegistry, mailer MailSender) *Service {
	return NewService(repo, registry, mailer, session.NewMemoryStore(),
		config.JWTConfig{Secret: "test-secret", ExpiryHours: 168},
		config.AuthConfig{
			AllowedEmailDomain:      "unisabana.edu.co",
			MinPasswordLength:       8,
			PasswordResetTTLMinutes: 15,
			BcryptCost:              bcrypt.MinCost,
		},
	)
}

func registerRequest() *models.RegisterRequest {
	return &models.RegisterRequest{
		Email:        "ana.gomez@unisabana.edu.co",
		Password:     "correct-horse",
		FirstName:    "Ana",
		LastName:     "Gómez",
		UniversityID: "0000123456",
		Phone:        "+57 300 123 4567",
		Role:         models.RolePassenger,
	}
}

func vehiclePayload() *models.CreateVehicleRequest {
	return &models.CreateVehicleRequest{
		Plate:             "abc123",
		Brand:             "Renault",
		Model:             "Logan",
		Capacity:          4,
		SoatPhotoURL:      "uploads/soat.pdf",
		SoatExpiration:    time.Now().Add(90 * 24 * time.Hour),
		LicenseNumber:     "LIC-9876",
		LicensePhotoURL:   "uploads/license.pdf",
		LicenseExpiration: time.Now().Add(180 * 24 * time.Hour),
	}
}

func testUser(password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &models.User{
		ID:           uuid.New(),
		Email:        "ana.gomez@unisabana.edu.co",
		PasswordHash: string(hash),
		FirstName:    "Ana",
		LastName:     "Gómez",
		Roles:        []models.Role{models.RolePassenger},
		ActiveRole:   models.RolePassenger,
	}
}

func assertAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, status, appErr.Code)
	assert.Equal(t, code, appErr.ErrorCode)
}

func parseClaims(t *testing.T, token string) *middleware.Claims {
	t.Helper()
	claims := &middleware.Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	return claims
}

func TestService_Register_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	mailer := &stubMailer{}
	service := newTestService(mockRepo, &stubRegistry{}, mailer)
	req := registerRequest()

	var created *models.User
	mockRepo.On("GetUserByEmail", mock.Anything, req.Email).Return(nil, pgx.ErrNoRows)
	mockRepo.On("CreateUser", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.User) })

	resp, err := service.Register(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, req.Email, resp.User.Email)
	assert.Equal(t, []models.Role{models.RolePassenger}, resp.User.Roles)
	assert.Equal(t, models.RolePassenger, resp.User.ActiveRole)
	assert.Empty(t, resp.User.PasswordHash)

	require.NotNil(t, created)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte(req.Password)))

	claims := parseClaims(t, resp.Token)
	assert.Equal(t, created.ID.String(), claims.Subject)
	assert.Equal(t, models.RolePassenger, claims.Role)

	require.Eventually(t, func() bool { return mailer.welcomeCount() == 1 }, time.Second, 10*time.Millisecond)
	mockRepo.AssertExpectations(t)
}

func TestService_Register_WelcomeEmailFailureIsNotFatal(t *testing.T) {
	mockRepo := new(MockRepository)
	mailer := &stubMailer{err: assert.AnError}
	service := newTestService(mockRepo, &stubRegistry{}, mailer)

	mockRepo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, pgx.ErrNoRows)
	mockRepo.On("CreateUser", mock.Anything, mock.Anything).Return(nil)

	resp, err := service.Register(context.Background(), registerRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestService_Register_ForeignDomainRejected(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	req := registerRequest()
	req.Email = "ana.gomez@gmail.com"

	resp, err := service.Register(context.Background(), req)

	assert.Nil(t, resp)
	assertAppError(t, err, http.StatusBadRequest, CodeInvalidEmailDomain)
	mockRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestService_Register_ShortPasswordRejected(t *testing.T) {
	service := newTestService(new(MockRepository), &stubRegistry{}, &stubMailer{})
	req := registerRequest()
	req.Password = "short"

	_, err := service.Register(context.Background(), req)

	assertAppError(t, err, http.StatusBadRequest, CodeWeakPassword)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	req := registerRequest()

	mockRepo.On("GetUserByEmail", mock.Anything, req.Email).Return(testUser("whatever1"), nil)

	_, err := service.Register(context.Background(), req)

	assertAppError(t, err, http.StatusConflict, CodeDuplicateEmail)
	mockRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestService_Register_DuplicateEmailRace(t *testing.T) {
	// Two concurrent registrations can both pass the lookup. The unique
	// index decides, and the loser still gets a clean conflict.
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})

	mockRepo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, pgx.ErrNoRows)
	mockRepo.On("CreateUser", mock.Anything, mock.Anything).Return(ErrEmailTaken)

	_, err := service.Register(context.Background(), registerRequest())

	assertAppError(t, err, http.StatusConflict, CodeDuplicateEmail)
}

func TestService_Register_DuplicateUniversityID(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})

	mockRepo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, pgx.ErrNoRows)
	mockRepo.On("CreateUser", mock.Anything, mock.Anything).Return(ErrUniversityIDTaken)

	_, err := service.Register(context.Background(), registerRequest())

	assertAppError(t, err, http.StatusConflict, CodeDuplicateUniversityID)
}

func TestService_Register_DriverCreatesUserAndVehicleTogether(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	req := registerRequest()
	req.Role = models.RoleDriver
	req.Vehicle = vehiclePayload()

	var created *models.User
	var vehicle *models.Vehicle
	mockRepo.On("GetUserByEmail", mock.Anything, req.Email).Return(nil, pgx.ErrNoRows)
	mockRepo.On("CreateUserWithVehicle", mock.Anything, mock.Anything, mock.Anything).Return(nil).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*models.User)
			vehicle = args.Get(2).(*models.Vehicle)
		})

	resp, err := service.Register(context.Background(), req)

	require.NoError(t, err)
	require.NotNil(t, created)
	require.NotNil(t, vehicle)
	assert.True(t, created.HasRole(models.RoleDriver))
	assert.True(t, created.HasRole(models.RolePassenger))
	assert.Equal(t, models.RoleDriver, created.ActiveRole)
	assert.Equal(t, created.ID, vehicle.OwnerID)
	assert.Equal(t, "ABC123", vehicle.Plate)
	assert.Equal(t, models.VehicleStatusPending, vehicle.Status)
	assert.Equal(t, models.RoleDriver, parseClaims(t, resp.Token).Role)
	mockRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestService_Register_DriverWithoutVehicleRejected(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	req := registerRequest()
	req.Role = models.RoleDriver
	req.Vehicle = nil

	mockRepo.On("GetUserByEmail", mock.Anything, req.Email).Return(nil, pgx.ErrNoRows)

	_, err := service.Register(context.Background(), req)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestService_Register_DriverVehicleValidationFails(t *testing.T) {
	mockRepo := new(MockRepository)
	registry := &stubRegistry{
		validateErr: common.NewBadRequestError("soat is expired", nil).WithCode(vehicles.CodeExpiredDocument),
	}
	service := newTestService(mockRepo, registry, &stubMailer{})
	req := registerRequest()
	req.Role = models.RoleDriver
	req.Vehicle = vehiclePayload()

	mockRepo.On("GetUserByEmail", mock.Anything, req.Email).Return(nil, pgx.ErrNoRows)

	_, err := service.Register(context.Background(), req)

	assertAppError(t, err, http.StatusBadRequest, vehicles.CodeExpiredDocument)
	mockRepo.AssertNotCalled(t, "CreateUserWithVehicle", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Register_DuplicatePlateRace(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	req := registerRequest()
	req.Role = models.RoleDriver
	req.Vehicle = vehiclePayload()

	mockRepo.On("GetUserByEmail", mock.Anything, req.Email).Return(nil, pgx.ErrNoRows)
	mockRepo.On("CreateUserWithVehicle", mock.Anything, mock.Anything, mock.Anything).Return(ErrPlateTaken)

	_, err := service.Register(context.Background(), req)

	assertAppError(t, err, http.StatusConflict, vehicles.CodeDuplicatePlate)
}

func TestService_Login_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	user := testUser("correct-horse")

	mockRepo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)

	resp, err := service.Login(context.Background(), &models.LoginRequest{
		Email:    "Ana.Gomez@unisabana.edu.co",
		Password: "correct-horse",
	})

	require.NoError(t, err)
	assert.Empty(t, resp.User.PasswordHash)
	assert.Equal(t, user.ID.String(), parseClaims(t, resp.Token).Subject)
}

func TestService_Login_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	user := testUser("correct-horse")

	mockRepo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
	mockRepo.On("GetUserByEmail", mock.Anything, "nobody@unisabana.edu.co").Return(nil, pgx.ErrNoRows)

	_, wrongPass := service.Login(context.Background(), &models.LoginRequest{Email: user.Email, Password: "wrong"})
	_, unknown := service.Login(context.Background(), &models.LoginRequest{Email: "nobody@unisabana.edu.co", Password: "wrong"})

	assertAppError(t, wrongPass, http.StatusUnauthorized, CodeInvalidCredentials)
	assertAppError(t, unknown, http.StatusUnauthorized, CodeInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestService_Logout_RevokesToken(t *testing.T) {
	store := session.NewMemoryStore()
	service := NewService(new(MockRepository), &stubRegistry{}, &stubMailer{}, store,
		config.JWTConfig{Secret: "test-secret"}, config.AuthConfig{})

	err := service.Logout(context.Background(), "token-abc", time.Now().Add(time.Hour))

	require.NoError(t, err)
	revoked, err := store.IsRevoked(context.Background(), "token-abc")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestService_SwitchRole_NotEnabled(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	user := testUser("correct-horse")

	mockRepo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	_, err := service.SwitchRole(context.Background(), user.ID, models.RoleDriver)

	assertAppError(t, err, http.StatusForbidden, CodeRoleNotEnabled)
}

func TestService_SwitchRole_DriverNeedsEligibleVehicle(t *testing.T) {
	mockRepo := new(MockRepository)
	user := testUser("correct-horse")
	user.AddRole(models.RoleDriver)
	registry := &stubRegistry{owned: []models.Vehicle{
		{ID: uuid.New(), Status: models.VehicleStatusPending,
			SoatExpiration: time.Now().Add(time.Hour), LicenseExpiration: time.Now().Add(time.Hour)},
		{ID: uuid.New(), Status: models.VehicleStatusVerified,
			SoatExpiration: time.Now().Add(-time.Hour), LicenseExpiration: time.Now().Add(time.Hour)},
	}}
	service := newTestService(mockRepo, registry, &stubMailer{})

	mockRepo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	_, err := service.SwitchRole(context.Background(), user.ID, models.RoleDriver)

	assertAppError(t, err, http.StatusBadRequest, CodeDocumentsInvalid)
	mockRepo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
}

func TestService_SwitchRole_AdoptsFirstEligibleVehicle(t *testing.T) {
	mockRepo := new(MockRepository)
	user := testUser("correct-horse")
	user.AddRole(models.RoleDriver)
	eligible := models.Vehicle{ID: uuid.New(), Status: models.VehicleStatusVerified,
		SoatExpiration: time.Now().Add(time.Hour), LicenseExpiration: time.Now().Add(time.Hour)}
	registry := &stubRegistry{owned: []models.Vehicle{
		{ID: uuid.New(), Status: models.VehicleStatusRejected,
			SoatExpiration: time.Now().Add(time.Hour), LicenseExpiration: time.Now().Add(time.Hour)},
		eligible,
	}}
	service := newTestService(mockRepo, registry, &stubMailer{})

	mockRepo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	mockRepo.On("UpdateUser", mock.Anything, mock.Anything).Return(nil)

	updated, err := service.SwitchRole(context.Background(), user.ID, models.RoleDriver)

	require.NoError(t, err)
	assert.Equal(t, models.RoleDriver, updated.ActiveRole)
	require.NotNil(t, updated.ActiveVehicleID)
	assert.Equal(t, eligible.ID, *updated.ActiveVehicleID)
}

func TestService_SwitchRole_KeepsExistingActiveVehicle(t *testing.T) {
	mockRepo := new(MockRepository)
	user := testUser("correct-horse")
	user.AddRole(models.RoleDriver)
	current := uuid.New()
	user.ActiveVehicleID = &current
	registry := &stubRegistry{owned: []models.Vehicle{
		{ID: uuid.New(), Status: models.VehicleStatusVerified,
			SoatExpiration: time.Now().Add(time.Hour), LicenseExpiration: time.Now().Add(time.Hour)},
	}}
	service := newTestService(mockRepo, registry, &stubMailer{})

	mockRepo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	mockRepo.On("UpdateUser", mock.Anything, mock.Anything).Return(nil)

	updated, err := service.SwitchRole(context.Background(), user.ID, models.RoleDriver)

	require.NoError(t, err)
	assert.Equal(t, current, *updated.ActiveVehicleID)
}

func TestService_UpdateProfile_PartialUpdate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	user := testUser("correct-horse")
	phone := "  +57 311 000 1122 "
	method := models.PaymentNequi

	mockRepo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	mockRepo.On("UpdateUser", mock.Anything, mock.Anything).Return(nil)

	updated, err := service.UpdateProfile(context.Background(), user.ID, &models.UpdateProfileRequest{
		Phone:                  &phone,
		PreferredPaymentMethod: &method,
	})

	require.NoError(t, err)
	assert.Equal(t, "+57 311 000 1122", updated.Phone)
	assert.Equal(t, models.PaymentNequi, updated.PreferredPaymentMethod)
	assert.Equal(t, "Ana", updated.FirstName)
}

func TestService_UpdateProfile_RejectsUnknownPaymentMethod(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	user := testUser("correct-horse")
	method := models.PaymentMethod("crypto")

	mockRepo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	_, err := service.UpdateProfile(context.Background(), user.ID, &models.UpdateProfileRequest{
		PreferredPaymentMethod: &method,
	})

	require.Error(t, err)
	mockRepo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
}

func TestService_ForgotPassword_UnknownEmailStaysSilent(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})

	mockRepo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, pgx.ErrNoRows)

	err := service.ForgotPassword(context.Background(), "ghost@unisabana.edu.co")

	require.NoError(t, err)
	mockRepo.AssertNotCalled(t, "CreatePasswordReset", mock.Anything, mock.Anything)
}

func TestService_ForgotPassword_StoresHashNotToken(t *testing.T) {
	mockRepo := new(MockRepository)
	mailer := &stubMailer{}
	service := newTestService(mockRepo, &stubRegistry{}, mailer)
	user := testUser("correct-horse")

	var reset *models.PasswordReset
	mockRepo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
	mockRepo.On("CreatePasswordReset", mock.Anything, mock.AnythingOfType("*models.PasswordReset")).Return(nil).
		Run(func(args mock.Arguments) { reset = args.Get(1).(*models.PasswordReset) })

	err := service.ForgotPassword(context.Background(), user.Email)

	require.NoError(t, err)
	require.NotNil(t, reset)
	assert.Equal(t, user.ID, reset.UserID)
	assert.False(t, reset.Used)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), reset.ExpiresAt, time.Minute)

	var raw string
	require.Eventually(t, func() bool {
		var ok bool
		raw, ok = mailer.lastReset()
		return ok
	}, time.Second, 10*time.Millisecond)

	// The mail carries the raw token, the database only its digest.
	assert.NotEqual(t, raw, reset.TokenHash)
	sum := sha256.Sum256([]byte(raw))
	assert.Equal(t, hex.EncodeToString(sum[:]), reset.TokenHash)
}

func TestService_ResetPassword_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	reset := &models.PasswordReset{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}

	var newHash string
	mockRepo.On("GetPasswordResetByTokenHash", mock.Anything, hashResetToken("raw-token")).Return(reset, nil)
	mockRepo.On("ConsumePasswordReset", mock.Anything, reset.ID, reset.UserID, mock.AnythingOfType("string")).Return(nil).
		Run(func(args mock.Arguments) { newHash = args.Get(3).(string) })

	err := service.ResetPassword(context.Background(), "raw-token", "brand-new-pass")

	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("brand-new-pass")))
}

func TestService_ResetPassword_ExpiredToken(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	reset := &models.PasswordReset{ID: uuid.New(), UserID: uuid.New(), ExpiresAt: time.Now().Add(-time.Minute)}

	mockRepo.On("GetPasswordResetByTokenHash", mock.Anything, mock.Anything).Return(reset, nil)

	err := service.ResetPassword(context.Background(), "raw-token", "brand-new-pass")

	assertAppError(t, err, http.StatusBadRequest, CodeTokenInvalidOrExpired)
	mockRepo.AssertNotCalled(t, "ConsumePasswordReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ResetPassword_UsedToken(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	reset := &models.PasswordReset{ID: uuid.New(), UserID: uuid.New(), ExpiresAt: time.Now().Add(10 * time.Minute), Used: true}

	mockRepo.On("GetPasswordResetByTokenHash", mock.Anything, mock.Anything).Return(reset, nil)

	err := service.ResetPassword(context.Background(), "raw-token", "brand-new-pass")

	assertAppError(t, err, http.StatusBadRequest, CodeTokenInvalidOrExpired)
}

func TestService_ResetPassword_UnknownToken(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})

	mockRepo.On("GetPasswordResetByTokenHash", mock.Anything, mock.Anything).Return(nil, pgx.ErrNoRows)

	err := service.ResetPassword(context.Background(), "bogus", "brand-new-pass")

	assertAppError(t, err, http.StatusBadRequest, CodeTokenInvalidOrExpired)
}

func TestService_ResetPassword_ConsumedByConcurrentRequest(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})
	reset := &models.PasswordReset{ID: uuid.New(), UserID: uuid.New(), ExpiresAt: time.Now().Add(10 * time.Minute)}

	mockRepo.On("GetPasswordResetByTokenHash", mock.Anything, mock.Anything).Return(reset, nil)
	mockRepo.On("ConsumePasswordReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(ErrResetConsumed)

	err := service.ResetPassword(context.Background(), "raw-token", "brand-new-pass")

	assertAppError(t, err, http.StatusBadRequest, CodeTokenInvalidOrExpired)
}

func TestService_ResetPassword_WeakPassword(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newTestService(mockRepo, &stubRegistry{}, &stubMailer{})

	err := service.ResetPassword(context.Background(), "raw-token", "short")

	assertAppError(t, err, http.StatusBadRequest, CodeWeakPassword)
	mockRepo.AssertNotCalled(t, "GetPasswordResetByTokenHash", mock.Anything, mock.Anything)
}
