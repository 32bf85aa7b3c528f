package vehicles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/geo"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/tracing"
)

// Service handles vehicle registry business logic.
type Service struct {
	repo RepositoryInterface
	cfg  config.VehiclesConfig
}

// NewService creates a new vehicles service.
func NewService(repo RepositoryInterface, cfg config.VehiclesConfig) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// Create registers a vehicle for the owner, who gains the driver role and,
// lacking one, this vehicle as the active one.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *models.CreateVehicleRequest) (*models.Vehicle, error) {
	ctx, span := tracing.StartSpan(ctx, "vehicles-service", "CreateVehicle")
	defer span.End()

	if err := s.ValidateNew(ctx, req); err != nil {
		return nil, err
	}

	vehicle := NewVehicle(ownerID, req)
	span.SetAttributes(attribute.String("vehicle.plate", vehicle.Plate))

	if err := s.repo.Create(ctx, vehicle); err != nil {
		if errors.Is(err, ErrDuplicatePlate) {
			return nil, duplicatePlate()
		}
		return nil, common.NewInternalError("failed to create vehicle", err)
	}
	Decorate(vehicle, time.Now())
	return vehicle, nil
}

// ValidateNew runs the create validation without persisting anything. Driver
// registration and the validate endpoint share it, so every path into the
// registry enforces the same rules.
func (s *Service) ValidateNew(ctx context.Context, req *models.CreateVehicleRequest) error {
	plate := NormalizePlate(req.Plate)
	if !ValidPlate(plate) {
		return common.NewValidationError("plate must match ABC123 or ABC12D")
	}
	taken, err := s.repo.PlateExists(ctx, plate, uuid.Nil)
	if err != nil {
		return common.NewInternalError("failed to check plate", err)
	}
	if taken {
		return duplicatePlate()
	}

	minCap, maxCap := s.capacityBounds()
	if req.Capacity < minCap || req.Capacity > maxCap {
		return common.NewValidationError(fmt.Sprintf("capacity must be between %d and %d", minCap, maxCap))
	}

	now := time.Now()
	if req.SoatExpiration.Before(now) {
		return expiredDocument("SOAT")
	}
	if req.LicenseExpiration.Before(now) {
		return expiredDocument("driving license")
	}

	if strings.TrimSpace(req.SoatPhotoURL) == "" {
		return common.NewValidationError("SOAT photo is required")
	}
	if strings.TrimSpace(req.LicensePhotoURL) == "" {
		return common.NewValidationError("license photo is required")
	}

	for i := range req.PickupPoints {
		if err := validatePickupPoint(&req.PickupPoints[i]); err != nil {
			return err
		}
	}
	return nil
}

// ListByOwner returns the caller's vehicles oldest first, meta included.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Vehicle, error) {
	owned, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, common.NewInternalError("failed to list vehicles", err)
	}
	now := time.Now()
	for i := range owned {
		Decorate(&owned[i], now)
	}
	return owned, nil
}

// Update applies a field-wise partial edit. Changes to the plate, brand,
// model, capacity, license number, an expiration date or a document photo
// are material and send the vehicle back to pending with its review
// metadata cleared. Year, color and the vehicle photo are cosmetic.
func (s *Service) Update(ctx context.Context, userID, vehicleID uuid.UUID, req *models.UpdateVehicleRequest) (*models.Vehicle, error) {
	vehicle, err := s.ownedVehicle(ctx, userID, vehicleID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	material := false

	if req.Plate != nil {
		plate := NormalizePlate(*req.Plate)
		if plate != vehicle.Plate {
			if !ValidPlate(plate) {
				return nil, common.NewValidationError("plate must match ABC123 or ABC12D")
			}
			taken, err := s.repo.PlateExists(ctx, plate, vehicle.ID)
			if err != nil {
				return nil, common.NewInternalError("failed to check plate", err)
			}
			if taken {
				return nil, duplicatePlate()
			}
			vehicle.Plate = plate
			material = true
		}
	}
	if req.Brand != nil {
		if brand := strings.TrimSpace(*req.Brand); brand != vehicle.Brand {
			vehicle.Brand = brand
			material = true
		}
	}
	if req.Model != nil {
		if model := strings.TrimSpace(*req.Model); model != vehicle.Model {
			vehicle.Model = model
			material = true
		}
	}
	if req.Capacity != nil && *req.Capacity != vehicle.Capacity {
		minCap, maxCap := s.capacityBounds()
		if *req.Capacity < minCap || *req.Capacity > maxCap {
			return nil, common.NewValidationError(fmt.Sprintf("capacity must be between %d and %d", minCap, maxCap))
		}
		vehicle.Capacity = *req.Capacity
		material = true
	}
	if req.Year != nil {
		vehicle.Year = req.Year
	}
	if req.Color != nil {
		vehicle.Color = req.Color
	}
	if req.VehiclePhotoURL != nil {
		vehicle.VehiclePhotoURL = req.VehiclePhotoURL
	}
	if req.SoatPhotoURL != nil {
		photo := strings.TrimSpace(*req.SoatPhotoURL)
		if photo == "" {
			return nil, common.NewValidationError("SOAT photo is required")
		}
		if photo != vehicle.SoatPhotoURL {
			vehicle.SoatPhotoURL = photo
			material = true
		}
	}
	if req.SoatExpiration != nil && !req.SoatExpiration.Equal(vehicle.SoatExpiration) {
		if req.SoatExpiration.Before(now) {
			return nil, expiredDocument("SOAT")
		}
		vehicle.SoatExpiration = *req.SoatExpiration
		material = true
	}
	if req.LicenseNumber != nil {
		number := strings.TrimSpace(*req.LicenseNumber)
		if number == "" {
			return nil, common.NewValidationError("license number is required")
		}
		if number != vehicle.LicenseNumber {
			vehicle.LicenseNumber = number
			material = true
		}
	}
	if req.LicensePhotoURL != nil {
		photo := strings.TrimSpace(*req.LicensePhotoURL)
		if photo == "" {
			return nil, common.NewValidationError("license photo is required")
		}
		if photo != vehicle.LicensePhotoURL {
			vehicle.LicensePhotoURL = photo
			material = true
		}
	}
	if req.LicenseExpiration != nil && !req.LicenseExpiration.Equal(vehicle.LicenseExpiration) {
		if req.LicenseExpiration.Before(now) {
			return nil, expiredDocument("driving license")
		}
		vehicle.LicenseExpiration = *req.LicenseExpiration
		material = true
	}

	replacePoints := false
	if req.PickupPoints != nil {
		points, err := buildPickupPoints(vehicle.ID, *req.PickupPoints, now)
		if err != nil {
			return nil, err
		}
		vehicle.PickupPoints = points
		replacePoints = true
	}

	if material {
		vehicle.Status = models.VehicleStatusPending
		vehicle.StatusUpdatedAt = now
		vehicle.RequestedReviewAt = nil
		vehicle.ReviewedAt = nil
		vehicle.ReviewedBy = nil
		vehicle.VerificationNotes = nil
	}
	vehicle.UpdatedAt = now

	if err := s.repo.Update(ctx, vehicle, replacePoints); err != nil {
		if errors.Is(err, ErrDuplicatePlate) {
			return nil, duplicatePlate()
		}
		return nil, common.NewInternalError("failed to update vehicle", err)
	}
	Decorate(vehicle, now)
	return vehicle, nil
}

// Activate makes a verified vehicle with current documents the owner's
// active one.
func (s *Service) Activate(ctx context.Context, userID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	vehicle, err := s.ownedVehicle(ctx, userID, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.Status != models.VehicleStatusVerified {
		return nil, common.NewBadRequestError("only verified vehicles can be activated", nil).
			WithCode(CodeInvalidStatusTransition)
	}
	now := time.Now()
	if !vehicle.DocumentsValid(now) {
		return nil, firstExpiredDocument(vehicle, now)
	}
	if err := s.repo.SetActiveVehicle(ctx, userID, vehicle.ID); err != nil {
		return nil, common.NewInternalError("failed to activate vehicle", err)
	}
	Decorate(vehicle, now)
	return vehicle, nil
}

// Delete removes an owned vehicle unless upcoming trips still ride on it,
// then recomputes the owner's driver capability.
func (s *Service) Delete(ctx context.Context, userID, vehicleID uuid.UUID) error {
	vehicle, err := s.ownedVehicle(ctx, userID, vehicleID)
	if err != nil {
		return err
	}
	blocked, err := s.repo.HasActiveTrips(ctx, vehicle.ID)
	if err != nil {
		return common.NewInternalError("failed to check trips", err)
	}
	if blocked {
		return common.NewBadRequestError("vehicle still has upcoming trips", nil).
			WithCode(CodeBlockedByActiveTrips)
	}
	if err := s.repo.Delete(ctx, vehicle.ID); err != nil {
		return common.NewInternalError("failed to delete vehicle", err)
	}
	return s.recomputeOwner(ctx, vehicle.OwnerID)
}

// RequestReview moves an editable vehicle into the review queue.
func (s *Service) RequestReview(ctx context.Context, userID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	vehicle, err := s.ownedVehicle(ctx, userID, vehicleID)
	if err != nil {
		return nil, err
	}
	switch vehicle.Status {
	case models.VehicleStatusPending, models.VehicleStatusRejected, models.VehicleStatusNeedsUpdate:
	default:
		return nil, common.NewBadRequestError(
			fmt.Sprintf("cannot request review from status %s", vehicle.Status), nil).
			WithCode(CodeInvalidStatusTransition)
	}
	now := time.Now()
	if !vehicle.DocumentsValid(now) {
		return nil, firstExpiredDocument(vehicle, now)
	}

	vehicle.Status = models.VehicleStatusUnderReview
	vehicle.StatusUpdatedAt = now
	vehicle.RequestedReviewAt = &now
	vehicle.UpdatedAt = now
	if err := s.repo.Update(ctx, vehicle, false); err != nil {
		return nil, common.NewInternalError("failed to request review", err)
	}
	Decorate(vehicle, now)
	return vehicle, nil
}

// Review records the admin decision on a vehicle under review.
func (s *Service) Review(ctx context.Context, reviewerID, vehicleID uuid.UUID, req *models.ReviewVehicleRequest) (*models.Vehicle, error) {
	ctx, span := tracing.StartSpan(ctx, "vehicles-service", "ReviewVehicle")
	defer span.End()
	span.SetAttributes(attribute.String("vehicle.decision", string(req.Status)))

	vehicle, err := s.repo.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vehicleNotFound(err)
		}
		return nil, common.NewInternalError("failed to load vehicle", err)
	}
	if vehicle.Status != models.VehicleStatusUnderReview {
		return nil, common.NewBadRequestError(
			fmt.Sprintf("cannot review a vehicle in status %s", vehicle.Status), nil).
			WithCode(CodeInvalidStatusTransition)
	}

	now := time.Now()
	vehicle.Status = req.Status
	vehicle.StatusUpdatedAt = now
	vehicle.ReviewedAt = &now
	vehicle.ReviewedBy = &reviewerID
	vehicle.VerificationNotes = req.Notes
	vehicle.UpdatedAt = now
	if err := s.repo.Update(ctx, vehicle, false); err != nil {
		return nil, common.NewInternalError("failed to store review", err)
	}
	Decorate(vehicle, now)
	return vehicle, nil
}

// ListPickupPoints returns the boarding spots of an owned vehicle.
func (s *Service) ListPickupPoints(ctx context.Context, userID, vehicleID uuid.UUID) ([]models.VehiclePickupPoint, error) {
	vehicle, err := s.ownedVehicle(ctx, userID, vehicleID)
	if err != nil {
		return nil, err
	}
	return vehicle.PickupPoints, nil
}

// AddPickupPoint appends a boarding spot to an owned vehicle.
func (s *Service) AddPickupPoint(ctx context.Context, userID, vehicleID uuid.UUID, req *models.PickupPointRequest) (*models.VehiclePickupPoint, error) {
	vehicle, err := s.ownedVehicle(ctx, userID, vehicleID)
	if err != nil {
		return nil, err
	}
	point, err := newPickupPoint(vehicle.ID, req, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddPickupPoint(ctx, point); err != nil {
		return nil, common.NewInternalError("failed to add pickup point", err)
	}
	return point, nil
}

// UpdatePickupPoint rewrites one boarding spot on an owned vehicle.
func (s *Service) UpdatePickupPoint(ctx context.Context, userID, vehicleID, pointID uuid.UUID, req *models.PickupPointRequest) (*models.VehiclePickupPoint, error) {
	if _, err := s.ownedVehicle(ctx, userID, vehicleID); err != nil {
		return nil, err
	}
	if err := validatePickupPoint(req); err != nil {
		return nil, err
	}
	point, err := s.repo.GetPickupPoint(ctx, vehicleID, pointID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("pickup point not found", err)
		}
		return nil, common.NewInternalError("failed to load pickup point", err)
	}
	point.Name = strings.TrimSpace(req.Name)
	point.Description = req.Description
	point.Latitude = req.Latitude
	point.Longitude = req.Longitude
	if err := s.repo.UpdatePickupPoint(ctx, point); err != nil {
		return nil, common.NewInternalError("failed to update pickup point", err)
	}
	return point, nil
}

// DeletePickupPoint removes one boarding spot from an owned vehicle.
func (s *Service) DeletePickupPoint(ctx context.Context, userID, vehicleID, pointID uuid.UUID) error {
	if _, err := s.ownedVehicle(ctx, userID, vehicleID); err != nil {
		return err
	}
	deleted, err := s.repo.DeletePickupPoint(ctx, vehicleID, pointID)
	if err != nil {
		return common.NewInternalError("failed to delete pickup point", err)
	}
	if !deleted {
		return common.NewNotFoundError("pickup point not found", nil)
	}
	return nil
}

// GetOwned loads a vehicle the caller owns, meta included. The trip engine
// uses it to gate creation on ownership and document validity.
func (s *Service) GetOwned(ctx context.Context, userID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	vehicle, err := s.ownedVehicle(ctx, userID, vehicleID)
	if err != nil {
		return nil, err
	}
	Decorate(vehicle, time.Now())
	return vehicle, nil
}

// ownedVehicle loads a vehicle and checks the caller owns it.
func (s *Service) ownedVehicle(ctx context.Context, userID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	vehicle, err := s.repo.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vehicleNotFound(err)
		}
		return nil, common.NewInternalError("failed to load vehicle", err)
	}
	if vehicle.OwnerID != userID {
		return nil, common.NewForbiddenError("vehicle belongs to another user").WithCode(CodeNotOwner)
	}
	return vehicle, nil
}

// recomputeOwner reconciles the owner's roles and active vehicle after a
// deletion. An explicit choice survives as long as the chosen vehicle does.
func (s *Service) recomputeOwner(ctx context.Context, ownerID uuid.UUID) error {
	owner, err := s.repo.GetOwner(ctx, ownerID)
	if err != nil {
		return common.NewInternalError("failed to load owner", err)
	}
	owned, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return common.NewInternalError("failed to list vehicles", err)
	}

	if len(owned) == 0 {
		owner.RemoveRole(models.RoleDriver)
		activeRole := owner.ActiveRole
		if activeRole == models.RoleDriver {
			activeRole = models.RolePassenger
		}
		if err := s.repo.UpdateOwnerVehicleState(ctx, ownerID, owner.Roles, activeRole, nil); err != nil {
			return common.NewInternalError("failed to update owner", err)
		}
		return nil
	}

	if owner.ActiveVehicleID != nil && stillOwned(owned, *owner.ActiveVehicleID) {
		return nil
	}
	next := pickNextActive(owned, time.Now())
	if err := s.repo.SetActiveVehicle(ctx, ownerID, next.ID); err != nil {
		return common.NewInternalError("failed to reassign active vehicle", err)
	}
	return nil
}

func (s *Service) capacityBounds() (int, int) {
	minCap, maxCap := s.cfg.MinCapacity, s.cfg.MaxCapacity
	if minCap <= 0 {
		minCap = 1
	}
	if maxCap <= 0 {
		maxCap = 8
	}
	return minCap, maxCap
}

func stillOwned(owned []models.Vehicle, id uuid.UUID) bool {
	for i := range owned {
		if owned[i].ID == id {
			return true
		}
	}
	return false
}

// pickNextActive prefers the first vehicle with current documents, falling
// back to the oldest.
func pickNextActive(owned []models.Vehicle, now time.Time) *models.Vehicle {
	for i := range owned {
		if owned[i].DocumentsValid(now) {
			return &owned[i]
		}
	}
	return &owned[0]
}

func buildPickupPoints(vehicleID uuid.UUID, reqs []models.PickupPointRequest, now time.Time) ([]models.VehiclePickupPoint, error) {
	points := make([]models.VehiclePickupPoint, 0, len(reqs))
	for i := range reqs {
		point, err := newPickupPoint(vehicleID, &reqs[i], now)
		if err != nil {
			return nil, err
		}
		points = append(points, *point)
	}
	return points, nil
}

func newPickupPoint(vehicleID uuid.UUID, req *models.PickupPointRequest, now time.Time) (*models.VehiclePickupPoint, error) {
	if err := validatePickupPoint(req); err != nil {
		return nil, err
	}
	return &models.VehiclePickupPoint{
		ID:          uuid.New(),
		VehicleID:   vehicleID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CreatedAt:   now,
	}, nil
}

func validatePickupPoint(req *models.PickupPointRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return common.NewValidationError("pickup point name is required")
	}
	if !geo.ValidCoordinate(req.Latitude, req.Longitude) {
		return common.NewValidationError("pickup point coordinates are out of range")
	}
	return nil
}

func duplicatePlate() *common.AppError {
	return common.NewConflictError("plate already registered").WithCode(CodeDuplicatePlate)
}

func expiredDocument(name string) *common.AppError {
	return common.NewBadRequestError(name+" is expired", nil).WithCode(CodeExpiredDocument)
}

func firstExpiredDocument(v *models.Vehicle, now time.Time) *common.AppError {
	if v.SoatExpiration.Before(now) {
		return expiredDocument("SOAT")
	}
	return expiredDocument("driving license")
}

func vehicleNotFound(err error) *common.AppError {
	return common.NewNotFoundError("vehicle not found", err).WithCode(CodeVehicleNotFound)
}
