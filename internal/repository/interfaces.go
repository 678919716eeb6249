// Package repository defines data access interfaces for Shelfkeep.
// Implementations exist for SQLite (embedded default) and PostgreSQL;
// a Redis-backed caching decorator can wrap the file repository.
package repository

import (
	"context"

	"github.com/shelfkeep/shelfkeep/internal/domain"
)

// FileRepository persists file metadata. The blob itself lives in the
// storage backend; rows here carry the stored name, the backend key and
// the display metadata.
type FileRepository interface {
	// Create inserts a new file record.
	Create(ctx context.Context, file *domain.File) error

	// GetByStoredName retrieves a file by its stored name.
	// Returns ErrNotFound if no such record exists.
	GetByStoredName(ctx context.Context, storedName string) (*domain.File, error)

	// List returns all file records, newest first.
	List(ctx context.Context) ([]*domain.File, error)

	// UpdateTags replaces the tag set of a file. Last writer wins; the
	// blob is never touched.
	UpdateTags(ctx context.Context, storedName string, tags []string) error

	// Delete removes a file record by stored name.
	// Returns ErrNotFound if no such record exists.
	Delete(ctx context.Context, storedName string) error
}

// WebpageRepository persists saved webpage descriptors.
type WebpageRepository interface {
	// Create inserts a new webpage record.
	Create(ctx context.Context, page *domain.Webpage) error

	// List returns all webpage records, newest first.
	List(ctx context.Context) ([]*domain.Webpage, error)
}

// DatabaseHealth is implemented by the database handles so the health
// endpoint and shutdown path can reach them without knowing the driver.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}

// Stores bundles the repositories the services depend on, regardless of
// which driver produced them.
type Stores struct {
	Files    FileRepository
	Webpages WebpageRepository
}
