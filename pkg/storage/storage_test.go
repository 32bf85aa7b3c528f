package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleDocumentKey(t *testing.T) {
	ownerID := uuid.New()

	key := VehicleDocumentKey(ownerID, DocumentSoat, "soat-2026.PDF")

	assert.True(t, strings.HasPrefix(key, "vehicles/"+ownerID.String()+"/soat/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"), "extension lowercased, got %s", key)

	// Two keys for the same file never collide.
	other := VehicleDocumentKey(ownerID, DocumentSoat, "soat-2026.PDF")
	assert.NotEqual(t, key, other)
}

func TestValidMimeType(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		allowed  []string
		expect   bool
	}{
		{"pdf allowed", "application/pdf", AllowedMimeTypes, true},
		{"jpeg allowed", "image/jpeg", AllowedMimeTypes, true},
		{"heic allowed", "image/heic", AllowedMimeTypes, true},
		{"case insensitive", "IMAGE/PNG", AllowedMimeTypes, true},
		{"gif rejected", "image/gif", AllowedMimeTypes, false},
		{"zip rejected", "application/zip", AllowedMimeTypes, false},
		{"wildcard", "image/tiff", []string{"image/*"}, true},
		{"empty list allows all", "anything/else", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ValidMimeType(tt.mimeType, tt.allowed))
		})
	}
}

func TestMimeTypeFromFilename(t *testing.T) {
	assert.Equal(t, "application/pdf", MimeTypeFromFilename("soat.pdf"))
	assert.Equal(t, "image/jpeg", MimeTypeFromFilename("photo.JPG"))
	assert.Equal(t, "image/webp", MimeTypeFromFilename("car.webp"))
	assert.Equal(t, "application/octet-stream", MimeTypeFromFilename("file.bin"))
}

func TestLocalStore_SaveRemoveExists(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	content := "pdf-bytes"
	obj, err := store.Save(ctx, "vehicles/abc/soat/doc.pdf", strings.NewReader(content), int64(len(content)), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "vehicles/abc/soat/doc.pdf", obj.Key)
	assert.Equal(t, "/uploads/vehicles/abc/soat/doc.pdf", obj.URL)
	assert.Equal(t, int64(len(content)), obj.Size)

	exists, err := store.Exists(ctx, obj.Key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Remove(ctx, obj.Key))

	exists, err = store.Exists(ctx, obj.Key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Removing again is not an error.
	assert.NoError(t, store.Remove(ctx, obj.Key))
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	for _, key := range []string{"../outside.pdf", "/etc/passwd", "a/../../b"} {
		_, err := store.Save(ctx, key, strings.NewReader("x"), 1, "application/pdf")
		assert.Error(t, err, "key %q must be rejected", key)
	}
}

func TestLocalStore_ShortWriteFails(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	_, err = store.Save(ctx, "doc.pdf", strings.NewReader("abc"), 10, "application/pdf")
	assert.Error(t, err)

	exists, err := store.Exists(ctx, "doc.pdf")
	require.NoError(t, err)
	assert.False(t, exists, "partial file must be cleaned up")
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	for _, key := range []string{"a.pdf", "b.pdf"} {
		_, err := store.Save(ctx, key, strings.NewReader("x"), 1, "application/pdf")
		require.NoError(t, err)
	}

	Rollback(ctx, store, []string{"a.pdf", "", "b.pdf", "never-existed.pdf"})

	for _, key := range []string{"a.pdf", "b.pdf"} {
		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, "%s must be rolled back", key)
	}
}
