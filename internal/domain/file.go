// Package domain contains the core business entities for Shelfkeep.
package domain

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileKind classifies a stored file for content-type and UI purposes.
type FileKind string

const (
	// KindImage covers jpg, jpeg and png uploads.
	KindImage FileKind = "image"

	// KindPDF covers pdf uploads.
	KindPDF FileKind = "pdf"
)

// File represents one persisted asset: its identity, its storage location
// and the display metadata attached to it. The raw bytes live in the
// storage backend; once an upload completes the blob is immutable and only
// the tag set may change.
type File struct {
	// ID is the metadata identifier, assigned at creation.
	ID string `json:"id"`

	// StoredName is the collision-resistant name used as the storage key
	// namespace entry. Generated, never user-supplied.
	StoredName string `json:"file_name"`

	// OriginalName is the client-supplied filename. Display and download
	// suggestion only; it is never used to address storage.
	OriginalName string `json:"original_name"`

	// Extension is the lowercase extension derived from OriginalName.
	Extension string `json:"extension"`

	// Kind is derived from Extension.
	Kind FileKind `json:"file_type"`

	// Size is the byte count measured while streaming to the backend.
	Size int64 `json:"size"`

	// Checksum is the SHA-256 hash of the content, computed during upload.
	Checksum string `json:"checksum,omitempty"`

	// StorageKey is the backend-assigned key. For the filesystem backend
	// this equals StoredName; the GridFS backend assigns its own id and
	// keeps StoredName as metadata.
	StorageKey string `json:"file_id"`

	// Backend names the storage backend holding the content.
	Backend string `json:"-"`

	// Tags is the normalized tag set, insertion order preserved.
	Tags []string `json:"tags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewFile creates a File for an upload with a freshly generated ID and
// stored name. Size, Checksum and StorageKey are filled in after the
// backend acknowledges the bytes.
func NewFile(originalName, extension string, tags []string) *File {
	now := time.Now().UTC()
	return &File{
		ID:           uuid.New().String(),
		StoredName:   uuid.New().String() + "." + extension,
		OriginalName: originalName,
		Extension:    extension,
		Kind:         KindForExtension(extension),
		Tags:         tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ExtensionOf returns the lowercase extension of a client filename without
// the leading dot. Empty when the name has no extension.
func ExtensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ValidateExtension checks ext against the configured allow-list.
// Returns ErrUnsupportedFileType when the extension is missing or not
// allowed. This must pass before any byte reaches permanent storage.
func ValidateExtension(ext string, allowed []string) error {
	if ext == "" {
		return ErrUnsupportedFileType
	}
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return nil
		}
	}
	return ErrUnsupportedFileType
}

// KindForExtension maps an allowed extension to its FileKind.
func KindForExtension(ext string) FileKind {
	if ext == "pdf" {
		return KindPDF
	}
	return KindImage
}

// ContentTypeForExtension maps an allowed extension to the MIME type used
// when serving the file back.
func ContentTypeForExtension(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
