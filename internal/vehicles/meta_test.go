package vehicles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabanago/ride-sharing/pkg/models"
)

func metaVehicle(status models.VehicleStatus, soat, license time.Time) *models.Vehicle {
	return &models.Vehicle{
		SoatPhotoURL:      "uploads/soat.pdf",
		LicensePhotoURL:   "uploads/license.pdf",
		SoatExpiration:    soat,
		LicenseExpiration: license,
		Status:            status,
	}
}

func TestDecorate_DocumentStates(t *testing.T) {
	now := time.Now()
	in60 := now.Add(60 * 24 * time.Hour)
	in10 := now.Add(10 * 24 * time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	t.Run("valid and expiring", func(t *testing.T) {
		v := metaVehicle(models.VehicleStatusPending, in60, in10)
		Decorate(v, now)
		require.NotNil(t, v.Meta)
		assert.Equal(t, models.DocumentValid, v.Meta.Soat.Status)
		assert.Equal(t, models.DocumentExpiring, v.Meta.License.Status)
		require.NotNil(t, v.Meta.License.DaysLeft)
		assert.Equal(t, 10, *v.Meta.License.DaysLeft)
		assert.True(t, v.Meta.DocumentsOK)
	})

	t.Run("expired", func(t *testing.T) {
		v := metaVehicle(models.VehicleStatusPending, yesterday, in60)
		Decorate(v, now)
		assert.Equal(t, models.DocumentExpired, v.Meta.Soat.Status)
		assert.False(t, v.Meta.DocumentsOK)
	})

	t.Run("missing photo", func(t *testing.T) {
		v := metaVehicle(models.VehicleStatusPending, in60, in60)
		v.SoatPhotoURL = ""
		Decorate(v, now)
		assert.Equal(t, models.DocumentMissing, v.Meta.Soat.Status)
		assert.Nil(t, v.Meta.Soat.ExpiresAt)
		assert.False(t, v.Meta.DocumentsOK)
	})

	t.Run("zero expiration is invalid", func(t *testing.T) {
		v := metaVehicle(models.VehicleStatusPending, time.Time{}, in60)
		Decorate(v, now)
		assert.Equal(t, models.DocumentInvalid, v.Meta.Soat.Status)
		assert.False(t, v.Meta.DocumentsOK)
	})
}

func TestDecorate_ActionFlags(t *testing.T) {
	now := time.Now()
	in60 := now.Add(60 * 24 * time.Hour)
	expired := now.Add(-time.Hour)

	tests := []struct {
		name             string
		status           models.VehicleStatus
		soat             time.Time
		canRequestReview bool
		canActivate      bool
	}{
		{"pending with current docs", models.VehicleStatusPending, in60, true, false},
		{"rejected with current docs", models.VehicleStatusRejected, in60, true, false},
		{"needs_update with current docs", models.VehicleStatusNeedsUpdate, in60, true, false},
		{"under_review", models.VehicleStatusUnderReview, in60, false, false},
		{"verified with current docs", models.VehicleStatusVerified, in60, false, true},
		{"pending with expired soat", models.VehicleStatusPending, expired, false, false},
		{"verified with expired soat", models.VehicleStatusVerified, expired, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := metaVehicle(tt.status, tt.soat, in60)
			Decorate(v, now)
			assert.Equal(t, tt.canRequestReview, v.Meta.CanRequestReview)
			assert.Equal(t, tt.canActivate, v.Meta.CanActivate)
		})
	}
}

func TestDecorate_Warnings(t *testing.T) {
	now := time.Now()
	in60 := now.Add(60 * 24 * time.Hour)

	v := metaVehicle(models.VehicleStatusPending, now.Add(-time.Hour), now.Add(12*24*time.Hour))
	Decorate(v, now)
	assert.Contains(t, v.Meta.Warnings, "El SOAT está vencido")
	assert.Contains(t, v.Meta.Warnings, "La licencia de conducción vence en 12 días")

	v = metaVehicle(models.VehicleStatusPending, in60, in60)
	v.LicensePhotoURL = ""
	Decorate(v, now)
	assert.Equal(t, []string{"Falta la foto de la licencia de conducción"}, v.Meta.Warnings)

	v = metaVehicle(models.VehicleStatusVerified, in60, in60)
	Decorate(v, now)
	assert.Empty(t, v.Meta.Warnings)
}

func TestDecorate_StatusLabels(t *testing.T) {
	now := time.Now()
	in60 := now.Add(60 * 24 * time.Hour)

	tests := []struct {
		status   models.VehicleStatus
		label    string
		severity string
	}{
		{models.VehicleStatusPending, "Pendiente de revisión", "warning"},
		{models.VehicleStatusUnderReview, "En revisión", "info"},
		{models.VehicleStatusVerified, "Verificado", "success"},
		{models.VehicleStatusRejected, "Rechazado", "error"},
		{models.VehicleStatusNeedsUpdate, "Requiere actualización", "warning"},
	}
	for _, tt := range tests {
		v := metaVehicle(tt.status, in60, in60)
		Decorate(v, now)
		assert.Equal(t, tt.label, v.Meta.StatusLabel, "status %s", tt.status)
		assert.Equal(t, tt.severity, v.Meta.Severity, "status %s", tt.status)
	}
}
