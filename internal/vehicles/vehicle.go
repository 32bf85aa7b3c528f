// Package vehicles manages the driver vehicle registry: creation with
// document uploads, the verification workflow, pickup points and the
// capability recompute that keeps users.active_vehicle_id consistent.
package vehicles

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/validation"
)

// Client-facing error codes for registry operations.
const (
	CodeDuplicatePlate          = "DUPLICATE_PLATE"
	CodeExpiredDocument         = "EXPIRED_DOCUMENT"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeBlockedByActiveTrips    = "BLOCKED_BY_ACTIVE_TRIPS"
	CodeNotOwner                = "NOT_OWNER"
	CodeVehicleNotFound         = "VEHICLE_NOT_FOUND"
)

// NormalizePlate canonicalizes a plate so "abc 123" and "ABC-123" both
// become ABC123 before storage or comparison.
func NormalizePlate(plate string) string {
	return validation.NormalizePlate(plate)
}

// ValidPlate reports whether a normalized plate matches the Colombian car
// or motorcycle format.
func ValidPlate(plate string) bool {
	return validation.ValidPlate(plate)
}

// NewVehicle builds a pending vehicle from a creation payload. The plate is
// normalized here so every caller stores the canonical form.
func NewVehicle(ownerID uuid.UUID, req *models.CreateVehicleRequest) *models.Vehicle {
	now := time.Now()
	v := &models.Vehicle{
		ID:                uuid.New(),
		OwnerID:           ownerID,
		Plate:             NormalizePlate(req.Plate),
		Brand:             strings.TrimSpace(req.Brand),
		Model:             strings.TrimSpace(req.Model),
		Capacity:          req.Capacity,
		Year:              req.Year,
		Color:             req.Color,
		VehiclePhotoURL:   req.VehiclePhotoURL,
		SoatPhotoURL:      strings.TrimSpace(req.SoatPhotoURL),
		SoatExpiration:    req.SoatExpiration,
		LicenseNumber:     strings.TrimSpace(req.LicenseNumber),
		LicensePhotoURL:   strings.TrimSpace(req.LicensePhotoURL),
		LicenseExpiration: req.LicenseExpiration,
		Status:            models.VehicleStatusPending,
		StatusUpdatedAt:   now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, p := range req.PickupPoints {
		v.PickupPoints = append(v.PickupPoints, models.VehiclePickupPoint{
			ID:          uuid.New(),
			VehicleID:   v.ID,
			Name:        strings.TrimSpace(p.Name),
			Description: p.Description,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			CreatedAt:   now,
		})
	}
	return v
}
