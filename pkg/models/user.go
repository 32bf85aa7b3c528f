package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents a capability a user holds. Every account carries the
// passenger role; driver is added when the user registers a vehicle and
// admin is granted out of band.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// PaymentMethod is how a passenger pays for a seat.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentNequi PaymentMethod = "nequi"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m PaymentMethod) bool {
	return m == PaymentCash || m == PaymentNequi
}

// User represents an account in the system. Roles is a set: passenger is
// always present, driver appears while the user owns at least one vehicle.
type User struct {
	ID                     uuid.UUID     `json:"id" db:"id"`
	Email                  string        `json:"email" db:"email"`
	PasswordHash           string        `json:"-" db:"password_hash"`
	FirstName              string        `json:"first_name" db:"first_name"`
	LastName               string        `json:"last_name" db:"last_name"`
	UniversityID           string        `json:"university_id" db:"university_id"`
	Phone                  string        `json:"phone" db:"phone"`
	PhotoURL               *string       `json:"photo_url,omitempty" db:"photo_url"`
	Roles                  []Role        `json:"roles" db:"roles"`
	ActiveRole             Role          `json:"active_role" db:"active_role"`
	ActiveVehicleID        *uuid.UUID    `json:"active_vehicle_id,omitempty" db:"active_vehicle_id"`
	EmergencyContact       *string       `json:"emergency_contact,omitempty" db:"emergency_contact"`
	PreferredPaymentMethod PaymentMethod `json:"preferred_payment_method" db:"preferred_payment_method"`
	CreatedAt              time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at" db:"updated_at"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRole appends role to the set if absent.
func (u *User) AddRole(role Role) {
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
}

// RemoveRole drops role from the set. Passenger is never removed.
func (u *User) RemoveRole(role Role) {
	if role == RolePassenger {
		return
	}
	kept := u.Roles[:0]
	for _, r := range u.Roles {
		if r != role {
			kept = append(kept, r)
		}
	}
	u.Roles = kept
}

// FullName joins first and last name for display and email templates.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PasswordReset is a single-use recovery token. Only the sha-256 hash of the
// raw secret is stored; the raw value travels exclusively in the email.
type PasswordReset struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Used      bool      `json:"used" db:"used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the token can no longer be redeemed at now.
func (p *PasswordReset) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// RegisterRequest represents the registration payload. Vehicle is required
// when Role is driver and ignored otherwise.
type RegisterRequest struct {
	Email        string                `json:"email" binding:"required,email"`
	Password     string                `json:"password" binding:"required,min=8"`
	FirstName    string                `json:"first_name" binding:"required"`
	LastName     string                `json:"last_name" binding:"required"`
	UniversityID string                `json:"university_id" binding:"required"`
	Phone        string                `json:"phone" binding:"required,phone"`
	PhotoURL     *string               `json:"photo_url,omitempty"`
	Role         Role                  `json:"role" binding:"required,oneof=passenger driver"`
	Vehicle      *CreateVehicleRequest `json:"vehicle,omitempty"`
}

// LoginRequest represents login credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the profile and the freshly issued token.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// UpdateProfileRequest mutates the editable profile fields. Nil pointers
// leave the current value untouched.
type UpdateProfileRequest struct {
	FirstName              *string        `json:"first_name,omitempty"`
	LastName               *string        `json:"last_name,omitempty"`
	Phone                  *string        `json:"phone,omitempty"`
	PhotoURL               *string        `json:"photo_url,omitempty"`
	EmergencyContact       *string        `json:"emergency_contact,omitempty"`
	PreferredPaymentMethod *PaymentMethod `json:"preferred_payment_method,omitempty"`
}

// SwitchRoleRequest selects the active role.
type SwitchRoleRequest struct {
	Role Role `json:"role" binding:"required,oneof=passenger driver"`
}

// ForgotPasswordRequest starts the recovery flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest redeems a recovery token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}
