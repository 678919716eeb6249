// Package storage defines interfaces for blob storage backends.
// The storage layer is responsible for persisting and retrieving raw
// content; file metadata lives in the repository layer. Backends are
// keyed: the filesystem backend echoes the stored name it was given,
// while the GridFS backend assigns its own identifier.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates the requested key does not exist in the backend.
var ErrNotFound = errors.New("object not found")

// WriteMetadata is attached to the content at write time. Backends that
// keep their own metadata records (GridFS, S3) persist it alongside the
// chunks; the filesystem backend ignores it. Only immutable attributes
// belong here: tags are mutable and live solely in the metadata
// repository, so blob-level records never go stale.
type WriteMetadata struct {
	// ContentType is the MIME type of the content.
	ContentType string

	// FileType is the coarse classification ("image" or "pdf").
	FileType string
}

// Backend defines the interface for storage backends.
// Implementations must be safe for concurrent use with distinct keys;
// collision-resistant naming makes cross-request locking unnecessary.
type Backend interface {
	// Name returns the backend identifier recorded in file metadata
	// ("filesystem", "gridfs", "s3"). Retrieval routes by this name.
	Name() string

	// Store streams content from body under the given name and returns
	// the backend-assigned key together with the byte count written.
	//
	// A mid-stream failure (source error, disk full, lost connection,
	// context cancellation) must leave no partially-written entry
	// addressable by Retrieve: either the complete object becomes
	// visible or nothing does. Source errors are propagated wrapped, so
	// callers can inspect them with errors.Is.
	Store(ctx context.Context, name string, body io.Reader, meta WriteMetadata) (key string, size int64, err error)

	// Retrieve opens the content stored under key and reports its size.
	// Returns ErrNotFound if the key is unknown. The caller must close
	// the returned stream.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// Delete removes the content stored under key.
	// Returns ErrNotFound if the key is unknown.
	Delete(ctx context.Context, key string) error

	// Exists checks whether content is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// RangeReader is implemented by backends that can serve partial reads
// without materializing the whole object. Used for inline previews of
// large media.
type RangeReader interface {
	// RetrieveRange opens a stream over length bytes starting at offset.
	RetrieveRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
}

// Closer is implemented by backends that hold long-lived connections
// (GridFS). The server closes them during shutdown.
type Closer interface {
	Close(ctx context.Context) error
}
