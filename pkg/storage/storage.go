// Package storage persists uploaded vehicle documents (SOAT, license and
// vehicle photos). Keys are opaque relative paths; callers store them on the
// vehicle row and resolve public URLs through the active backend.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/security"
)

// Provider selects the storage backend.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderS3    Provider = "s3"
)

// AllowedMimeTypes is the upload allowlist for vehicle documents.
var AllowedMimeTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
	"image/heif",
}

// Object describes a stored blob.
type Object struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store is the blob backend. Save returns the object with its opaque key;
// Remove is best-effort cleanup used to roll back partial uploads.
type Store interface {
	Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*Object, error)
	Remove(ctx context.Context, key string) error
	URL(key string) string
	Exists(ctx context.Context, key string) (bool, error)
}

// DocumentKind names the uploadable slots on a vehicle.
type DocumentKind string

const (
	DocumentSoat         DocumentKind = "soat"
	DocumentLicense      DocumentKind = "license"
	DocumentVehiclePhoto DocumentKind = "vehicle"
)

// VehicleDocumentKey builds a collision-free key for a vehicle document:
// vehicles/{owner}/{kind}/{yyyymmdd}_{rand}{ext}. Only the sanitized
// extension of the client filename survives into the key.
func VehicleDocumentKey(ownerID uuid.UUID, kind DocumentKind, filename string) string {
	ext := strings.ToLower(path.Ext(security.SanitizeFilename(filename)))
	uniqueID := uuid.New().String()[:8]
	timestamp := time.Now().Format("20060102")

	return fmt.Sprintf("vehicles/%s/%s/%s_%s%s",
		ownerID.String(),
		string(kind),
		timestamp,
		uniqueID,
		ext,
	)
}

// ValidMimeType checks the upload allowlist. Entries ending in "/*" match
// the whole top-level type.
func ValidMimeType(mimeType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}

	mimeType = strings.ToLower(mimeType)
	for _, a := range allowed {
		a = strings.ToLower(a)
		if a == mimeType {
			return true
		}
		if strings.HasSuffix(a, "/*") && strings.HasPrefix(mimeType, strings.TrimSuffix(a, "*")) {
			return true
		}
	}
	return false
}

// MimeTypeFromFilename maps common document extensions to MIME types.
func MimeTypeFromFilename(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Rollback removes every key, logging nothing and returning nothing: it runs
// on error paths where the original failure is the one worth reporting.
func Rollback(ctx context.Context, store Store, keys []string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		_ = store.Remove(ctx, key)
	}
}
