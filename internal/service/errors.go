// Package service provides business logic services for Shelfkeep.
package service

import "errors"

// Common service errors.
var (
	// Range errors
	ErrInvalidRange = errors.New("invalid byte range")

	// General errors
	ErrInternalError = errors.New("internal server error")
)
