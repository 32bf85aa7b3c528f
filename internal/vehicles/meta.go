package vehicles

import (
	"fmt"
	"time"

	"github.com/sabanago/ride-sharing/pkg/models"
)

// Documents expiring within this window get an expiring state and a warning.
const expiryWarningWindow = 30 * 24 * time.Hour

type statusLabel struct {
	label    string
	severity string
}

var statusLabels = map[models.VehicleStatus]statusLabel{
	models.VehicleStatusPending:     {"Pendiente de revisión", "warning"},
	models.VehicleStatusUnderReview: {"En revisión", "info"},
	models.VehicleStatusVerified:    {"Verificado", "success"},
	models.VehicleStatusRejected:    {"Rechazado", "error"},
	models.VehicleStatusNeedsUpdate: {"Requiere actualización", "warning"},
}

// Decorate attaches the computed meta block to a vehicle: per-document
// states, Spanish warnings and the actions available to the owner at now.
func Decorate(v *models.Vehicle, now time.Time) {
	meta := &models.VehicleMeta{
		Soat:    documentMeta(v.SoatPhotoURL, v.SoatExpiration, now),
		License: documentMeta(v.LicensePhotoURL, v.LicenseExpiration, now),
	}
	meta.DocumentsOK = documentOK(meta.Soat.Status) && documentOK(meta.License.Status)
	meta.Warnings = append(meta.Warnings, soatWarning(meta.Soat)...)
	meta.Warnings = append(meta.Warnings, licenseWarning(meta.License)...)

	switch v.Status {
	case models.VehicleStatusPending, models.VehicleStatusRejected, models.VehicleStatusNeedsUpdate:
		meta.CanRequestReview = meta.DocumentsOK
	case models.VehicleStatusVerified:
		meta.CanActivate = meta.DocumentsOK
	}

	if sl, ok := statusLabels[v.Status]; ok {
		meta.StatusLabel = sl.label
		meta.Severity = sl.severity
	}
	v.Meta = meta
}

func documentMeta(photoURL string, expiresAt time.Time, now time.Time) models.DocumentMeta {
	if photoURL == "" {
		return models.DocumentMeta{Status: models.DocumentMissing}
	}
	if expiresAt.IsZero() {
		return models.DocumentMeta{Status: models.DocumentInvalid}
	}
	meta := models.DocumentMeta{ExpiresAt: &expiresAt}
	days := int(expiresAt.Sub(now).Hours() / 24)
	meta.DaysLeft = &days
	switch {
	case expiresAt.Before(now):
		meta.Status = models.DocumentExpired
	case expiresAt.Sub(now) <= expiryWarningWindow:
		meta.Status = models.DocumentExpiring
	default:
		meta.Status = models.DocumentValid
	}
	return meta
}

func documentOK(s models.DocumentState) bool {
	return s == models.DocumentValid || s == models.DocumentExpiring
}

func soatWarning(m models.DocumentMeta) []string {
	switch m.Status {
	case models.DocumentMissing:
		return []string{"Falta la foto del SOAT"}
	case models.DocumentInvalid:
		return []string{"La fecha de vencimiento del SOAT no es válida"}
	case models.DocumentExpired:
		return []string{"El SOAT está vencido"}
	case models.DocumentExpiring:
		return []string{fmt.Sprintf("El SOAT vence en %d días", *m.DaysLeft)}
	}
	return nil
}

func licenseWarning(m models.DocumentMeta) []string {
	switch m.Status {
	case models.DocumentMissing:
		return []string{"Falta la foto de la licencia de conducción"}
	case models.DocumentInvalid:
		return []string{"La fecha de vencimiento de la licencia de conducción no es válida"}
	case models.DocumentExpired:
		return []string{"La licencia de conducción está vencida"}
	case models.DocumentExpiring:
		return []string{fmt.Sprintf("La licencia de conducción vence en %d días", *m.DaysLeft)}
	}
	return nil
}
