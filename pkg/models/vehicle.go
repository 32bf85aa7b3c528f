package models

import (
	"time"

	"github.com/google/uuid"
)

// VehicleStatus represents the verification state of a vehicle.
type VehicleStatus string

const (
	VehicleStatusPending     VehicleStatus = "pending"
	VehicleStatusUnderReview VehicleStatus = "under_review"
	VehicleStatusVerified    VehicleStatus = "verified"
	VehicleStatusRejected    VehicleStatus = "rejected"
	VehicleStatusNeedsUpdate VehicleStatus = "needs_update"
)

// DocumentState classifies a single vehicle document for the meta block.
type DocumentState string

const (
	DocumentValid    DocumentState = "valid"
	DocumentExpiring DocumentState = "expiring"
	DocumentExpired  DocumentState = "expired"
	DocumentMissing  DocumentState = "missing"
	DocumentInvalid  DocumentState = "invalid"
)

// Vehicle represents a registered vehicle and its verification documents.
type Vehicle struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	OwnerID           uuid.UUID     `json:"owner_id" db:"owner_id"`
	Plate             string        `json:"plate" db:"plate"`
	Brand             string        `json:"brand" db:"brand"`
	Model             string        `json:"model" db:"model"`
	Capacity          int           `json:"capacity" db:"capacity"`
	Year              *int          `json:"year,omitempty" db:"year"`
	Color             *string       `json:"color,omitempty" db:"color"`
	VehiclePhotoURL   *string       `json:"vehicle_photo_url,omitempty" db:"vehicle_photo_url"`
	SoatPhotoURL      string        `json:"soat_photo_url" db:"soat_photo_url"`
	SoatExpiration    time.Time     `json:"soat_expiration" db:"soat_expiration"`
	LicenseNumber     string        `json:"license_number" db:"license_number"`
	LicensePhotoURL   string        `json:"license_photo_url" db:"license_photo_url"`
	LicenseExpiration time.Time     `json:"license_expiration" db:"license_expiration"`
	Status            VehicleStatus `json:"status" db:"status"`
	StatusUpdatedAt   time.Time     `json:"status_updated_at" db:"status_updated_at"`
	RequestedReviewAt *time.Time    `json:"requested_review_at,omitempty" db:"requested_review_at"`
	ReviewedAt        *time.Time    `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewedBy        *uuid.UUID    `json:"reviewed_by,omitempty" db:"reviewed_by"`
	VerificationNotes *string       `json:"verification_notes,omitempty" db:"verification_notes"`
	PickupPoints      []VehiclePickupPoint `json:"pickup_points,omitempty"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`

	Meta *VehicleMeta `json:"meta,omitempty"`
}

// DocumentsValid reports whether both SOAT and license are non-expired at now.
func (v *Vehicle) DocumentsValid(now time.Time) bool {
	return !v.SoatExpiration.Before(now) && !v.LicenseExpiration.Before(now)
}

// VehiclePickupPoint is a boarding spot the owner offers on every trip made
// with this vehicle.
type VehiclePickupPoint struct {
	ID          uuid.UUID `json:"id" db:"id"`
	VehicleID   uuid.UUID `json:"vehicle_id" db:"vehicle_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Latitude    float64   `json:"latitude" db:"latitude"`
	Longitude   float64   `json:"longitude" db:"longitude"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// DocumentMeta describes one document's state for clients.
type DocumentMeta struct {
	Status    DocumentState `json:"status"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	DaysLeft  *int          `json:"days_left,omitempty"`
}

// VehicleMeta is the computed decoration attached to every vehicle read:
// document states, warnings and the actions currently available to the owner.
type VehicleMeta struct {
	Soat             DocumentMeta `json:"soat"`
	License          DocumentMeta `json:"license"`
	DocumentsOK      bool         `json:"documents_ok"`
	Warnings         []string     `json:"warnings,omitempty"`
	CanRequestReview bool         `json:"can_request_review"`
	CanActivate      bool         `json:"can_activate"`
	StatusLabel      string       `json:"status_label"`
	Severity         string       `json:"severity"`
}

// CreateVehicleRequest represents the vehicle creation payload. Photo URLs
// may also arrive as multipart uploads, in which case the handler stores the
// blobs first and fills these fields with the returned paths.
type CreateVehicleRequest struct {
	Plate             string               `json:"plate" binding:"required,plate"`
	Brand             string               `json:"brand" binding:"required"`
	Model             string               `json:"model" binding:"required"`
	Capacity          int                  `json:"capacity" binding:"required"`
	Year              *int                 `json:"year,omitempty"`
	Color             *string              `json:"color,omitempty"`
	VehiclePhotoURL   *string              `json:"vehicle_photo_url,omitempty"`
	SoatPhotoURL      string               `json:"soat_photo_url"`
	SoatExpiration    time.Time            `json:"soat_expiration" binding:"required"`
	LicenseNumber     string               `json:"license_number" binding:"required"`
	LicensePhotoURL   string               `json:"license_photo_url"`
	LicenseExpiration time.Time            `json:"license_expiration" binding:"required"`
	PickupPoints      []PickupPointRequest `json:"pickup_points,omitempty"`
}

// UpdateVehicleRequest is field-wise partial: nil pointers keep the current
// value. PickupPoints, when present, fully replaces the stored list.
type UpdateVehicleRequest struct {
	Plate             *string               `json:"plate,omitempty"`
	Brand             *string               `json:"brand,omitempty"`
	Model             *string               `json:"model,omitempty"`
	Capacity          *int                  `json:"capacity,omitempty"`
	Year              *int                  `json:"year,omitempty"`
	Color             *string               `json:"color,omitempty"`
	VehiclePhotoURL   *string               `json:"vehicle_photo_url,omitempty"`
	SoatPhotoURL      *string               `json:"soat_photo_url,omitempty"`
	SoatExpiration    *time.Time            `json:"soat_expiration,omitempty"`
	LicenseNumber     *string               `json:"license_number,omitempty"`
	LicensePhotoURL   *string               `json:"license_photo_url,omitempty"`
	LicenseExpiration *time.Time            `json:"license_expiration,omitempty"`
	PickupPoints      *[]PickupPointRequest `json:"pickup_points,omitempty"`
}

// PickupPointRequest creates or replaces a pickup point.
type PickupPointRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	Latitude    float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude   float64 `json:"longitude" binding:"min=-180,max=180"`
}

// ReviewVehicleRequest is the admin decision on a vehicle under review.
type ReviewVehicleRequest struct {
	Status VehicleStatus `json:"status" binding:"required,oneof=verified rejected needs_update"`
	Notes  *string       `json:"notes,omitempty"`
}
