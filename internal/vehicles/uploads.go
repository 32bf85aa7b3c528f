package vehicles

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/config"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/storage"
)

// Client-facing error codes for document uploads.
const (
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
)

const defaultMaxUploadMB = 5

// uploader stages the multipart document uploads of one request. Saved keys
// are remembered so a failure later in the request rolls every blob back.
type uploader struct {
	store   storage.Store
	ownerID uuid.UUID
	maxSize int64
	saved   []string
}

func newUploader(store storage.Store, cfg config.StorageConfig, ownerID uuid.UUID) *uploader {
	maxMB := cfg.MaxFileSizeMB
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	return &uploader{store: store, ownerID: ownerID, maxSize: int64(maxMB) << 20}
}

// save stores one multipart file field and returns its opaque key. A missing
// field is not an error: the second return reports presence.
func (u *uploader) save(c *gin.Context, field string, kind storage.DocumentKind) (string, bool, error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", false, nil
		}
		return "", false, common.NewBadRequestError("invalid "+field+" upload", err)
	}
	defer file.Close()

	if header.Size > u.maxSize {
		return "", false, common.NewBadRequestError(
			fmt.Sprintf("%s exceeds the %d MiB limit", field, u.maxSize>>20), nil).
			WithCode(CodeFileTooLarge)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = storage.MimeTypeFromFilename(header.Filename)
	}
	if !storage.ValidMimeType(contentType, storage.AllowedMimeTypes) {
		return "", false, common.NewBadRequestError(
			fmt.Sprintf("%s type %s is not allowed", field, contentType), nil).
			WithCode(CodeUnsupportedMediaType)
	}

	key := storage.VehicleDocumentKey(u.ownerID, kind, header.Filename)
	obj, err := u.store.Save(c.Request.Context(), key, file, header.Size, contentType)
	if err != nil {
		return "", false, common.NewInternalError("failed to store "+field, err)
	}
	u.saved = append(u.saved, obj.Key)
	return obj.Key, true, nil
}

// applyCreate stores any uploaded document and writes its key over the
// matching URL field of the create payload.
func (u *uploader) applyCreate(c *gin.Context, req *models.CreateVehicleRequest) error {
	if key, ok, err := u.save(c, "soat_photo", storage.DocumentSoat); err != nil {
		return err
	} else if ok {
		req.SoatPhotoURL = key
	}
	if key, ok, err := u.save(c, "license_photo", storage.DocumentLicense); err != nil {
		return err
	} else if ok {
		req.LicensePhotoURL = key
	}
	if key, ok, err := u.save(c, "vehicle_photo", storage.DocumentVehiclePhoto); err != nil {
		return err
	} else if ok {
		req.VehiclePhotoURL = &key
	}
	return nil
}

// applyUpdate is applyCreate for the partial update payload.
func (u *uploader) applyUpdate(c *gin.Context, req *models.UpdateVehicleRequest) error {
	if key, ok, err := u.save(c, "soat_photo", storage.DocumentSoat); err != nil {
		return err
	} else if ok {
		req.SoatPhotoURL = &key
	}
	if key, ok, err := u.save(c, "license_photo", storage.DocumentLicense); err != nil {
		return err
	} else if ok {
		req.LicensePhotoURL = &key
	}
	if key, ok, err := u.save(c, "vehicle_photo", storage.DocumentVehiclePhoto); err != nil {
		return err
	} else if ok {
		req.VehiclePhotoURL = &key
	}
	return nil
}

// rollback best-effort deletes everything staged in this request.
func (u *uploader) rollback(c *gin.Context) {
	storage.Rollback(c.Request.Context(), u.store, u.saved)
}

// createRequestFromForm binds the multipart variant of the create payload.
// Photo fields may arrive as URLs here or as file uploads applied after.
func createRequestFromForm(c *gin.Context) (*models.CreateVehicleRequest, error) {
	req := &models.CreateVehicleRequest{
		Plate:           c.PostForm("plate"),
		Brand:           c.PostForm("brand"),
		Model:           c.PostForm("model"),
		SoatPhotoURL:    c.PostForm("soat_photo_url"),
		LicenseNumber:   c.PostForm("license_number"),
		LicensePhotoURL: c.PostForm("license_photo_url"),
	}

	capacity, err := strconv.Atoi(c.PostForm("capacity"))
	if err != nil {
		return nil, common.NewValidationError("capacity must be an integer")
	}
	req.Capacity = capacity

	if req.SoatExpiration, err = parseFormDate(c.PostForm("soat_expiration")); err != nil {
		return nil, invalidFormDate("soat_expiration")
	}
	if req.LicenseExpiration, err = parseFormDate(c.PostForm("license_expiration")); err != nil {
		return nil, invalidFormDate("license_expiration")
	}

	if raw, ok := c.GetPostForm("year"); ok && raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return nil, common.NewValidationError("year must be an integer")
		}
		req.Year = &year
	}
	if raw, ok := c.GetPostForm("color"); ok && raw != "" {
		req.Color = &raw
	}
	if raw, ok := c.GetPostForm("vehicle_photo_url"); ok && raw != "" {
		req.VehiclePhotoURL = &raw
	}
	if raw, ok := c.GetPostForm("pickup_points"); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.PickupPoints); err != nil {
			return nil, common.NewValidationError("pickup_points must be a JSON array")
		}
	}
	return req, nil
}

// updateRequestFromForm binds the multipart variant of the update payload.
// Only fields present in the form land in the request.
func updateRequestFromForm(c *gin.Context) (*models.UpdateVehicleRequest, error) {
	req := &models.UpdateVehicleRequest{}

	setString := func(field string, dst **string) {
		if raw, ok := c.GetPostForm(field); ok {
			*dst = &raw
		}
	}
	setString("plate", &req.Plate)
	setString("brand", &req.Brand)
	setString("model", &req.Model)
	setString("color", &req.Color)
	setString("vehicle_photo_url", &req.VehiclePhotoURL)
	setString("soat_photo_url", &req.SoatPhotoURL)
	setString("license_number", &req.LicenseNumber)
	setString("license_photo_url", &req.LicensePhotoURL)

	if raw, ok := c.GetPostForm("capacity"); ok {
		capacity, err := strconv.Atoi(raw)
		if err != nil {
			return nil, common.NewValidationError("capacity must be an integer")
		}
		req.Capacity = &capacity
	}
	if raw, ok := c.GetPostForm("year"); ok {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return nil, common.NewValidationError("year must be an integer")
		}
		req.Year = &year
	}
	if raw, ok := c.GetPostForm("soat_expiration"); ok {
		t, err := parseFormDate(raw)
		if err != nil {
			return nil, invalidFormDate("soat_expiration")
		}
		req.SoatExpiration = &t
	}
	if raw, ok := c.GetPostForm("license_expiration"); ok {
		t, err := parseFormDate(raw)
		if err != nil {
			return nil, invalidFormDate("license_expiration")
		}
		req.LicenseExpiration = &t
	}
	if raw, ok := c.GetPostForm("pickup_points"); ok && raw != "" {
		var points []models.PickupPointRequest
		if err := json.Unmarshal([]byte(raw), &points); err != nil {
			return nil, common.NewValidationError("pickup_points must be a JSON array")
		}
		req.PickupPoints = &points
	}
	return req, nil
}

func parseFormDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func invalidFormDate(field string) *common.AppError {
	return common.NewValidationError(field + " must be YYYY-MM-DD or RFC 3339")
}
