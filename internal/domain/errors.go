// Package domain contains the core business entities for Shelfkeep.
package domain

import "errors"

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// Upload Errors
	// ===========================================

	// ErrNoFileProvided indicates the multipart request carried no file part.
	ErrNoFileProvided = errors.New("no file provided")

	// ErrUnsupportedFileType indicates the extension is missing or not in
	// the allow-list. Detected before any byte is persisted.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrSizeLimitExceeded indicates the upload crossed the configured
	// maximum mid-stream. The partial write is discarded, never truncated.
	ErrSizeLimitExceeded = errors.New("file size limit exceeded")

	// ErrMalformedForm indicates the multipart body could not be parsed
	// (truncated body, bad boundary). A client fault, not a server one.
	ErrMalformedForm = errors.New("malformed multipart form")

	// ===========================================
	// Storage Errors
	// ===========================================

	// ErrStorageWriteFailed indicates the backend failed while persisting
	// content. Any partial artifact has already been cleaned up.
	ErrStorageWriteFailed = errors.New("storage write failed")

	// ErrStorageReadFailed indicates the backend failed while reading
	// content that is known to exist.
	ErrStorageReadFailed = errors.New("storage read failed")

	// ErrFileNotFound indicates the requested stored name or key is unknown.
	ErrFileNotFound = errors.New("file not found")

	// ===========================================
	// Webpage-Save Errors (soft - surfaced as warnings, not failures)
	// ===========================================

	// ErrWebpageURLRequired indicates the save request carried no URL.
	ErrWebpageURLRequired = errors.New("url is required")

	// ErrNetworkFetchFailed indicates the bounded metadata fetch failed.
	ErrNetworkFetchFailed = errors.New("webpage fetch failed")

	// ErrCertificateInvalid indicates the target presented an invalid or
	// expired TLS certificate.
	ErrCertificateInvalid = errors.New("certificate invalid")
)
