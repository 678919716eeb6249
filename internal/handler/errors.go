// Package handler provides the HTTP layer for Shelfkeep.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/service"
)

// apiError is the JSON error envelope. Messages are stable and safe to
// show to clients; internals never leak through here.
type apiError struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	HTTPStatusCode int    `json:"-"`
}

// errorResponse wraps apiError for serialization.
type errorResponse struct {
	Error apiError `json:"error"`
}

// mapError translates service and domain errors into the envelope.
func mapError(err error) apiError {
	switch {
	case errors.Is(err, domain.ErrNoFileProvided):
		return apiError{
			Code:           "no_file",
			Message:        "no file was provided in the upload",
			HTTPStatusCode: http.StatusBadRequest,
		}
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return apiError{
			Code:           "unsupported_file_type",
			Message:        "only jpg, jpeg, png and pdf files are accepted",
			HTTPStatusCode: http.StatusBadRequest,
		}
	case errors.Is(err, domain.ErrMalformedForm):
		return apiError{
			Code:           "malformed_form",
			Message:        "the multipart body could not be parsed",
			HTTPStatusCode: http.StatusBadRequest,
		}
	case errors.Is(err, domain.ErrSizeLimitExceeded):
		return apiError{
			Code:           "size_limit_exceeded",
			Message:        "the file exceeds the upload size limit",
			HTTPStatusCode: http.StatusRequestEntityTooLarge,
		}
	case errors.Is(err, domain.ErrFileNotFound):
		return apiError{
			Code:           "not_found",
			Message:        "the requested file does not exist",
			HTTPStatusCode: http.StatusNotFound,
		}
	case errors.Is(err, domain.ErrWebpageURLRequired):
		return apiError{
			Code:           "url_required",
			Message:        "a url is required to save a webpage",
			HTTPStatusCode: http.StatusBadRequest,
		}
	case errors.Is(err, service.ErrInvalidRange):
		return apiError{
			Code:           "invalid_range",
			Message:        "the requested byte range cannot be satisfied",
			HTTPStatusCode: http.StatusRequestedRangeNotSatisfiable,
		}
	case errors.Is(err, domain.ErrStorageWriteFailed):
		return apiError{
			Code:           "storage_write_failed",
			Message:        "the file could not be stored",
			HTTPStatusCode: http.StatusInternalServerError,
		}
	case errors.Is(err, domain.ErrStorageReadFailed):
		return apiError{
			Code:           "storage_read_failed",
			Message:        "the file could not be read from storage",
			HTTPStatusCode: http.StatusInternalServerError,
		}
	default:
		return apiError{
			Code:           "internal_error",
			Message:        "an internal error occurred",
			HTTPStatusCode: http.StatusInternalServerError,
		}
	}
}

// writeError writes the mapped error envelope.
func writeError(w http.ResponseWriter, err error) {
	apiErr := mapError(err)
	writeJSON(w, apiErr.HTTPStatusCode, errorResponse{Error: apiErr})
}

// writeBadRequest writes a 400 envelope with a caller-supplied message.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: apiError{
		Code:    "bad_request",
		Message: message,
	}})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON decodes a JSON request body with a sane size cap.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}
