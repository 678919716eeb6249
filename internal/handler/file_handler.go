package handler

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/service"
)

// FileHandler handles file upload, retrieval, listing, tagging and
// deletion requests.
type FileHandler struct {
	uploadService *service.UploadService
	fileService   *service.FileService
	metrics       *Metrics
	logger        zerolog.Logger
}

// FileHandlerConfig contains configuration for the file handler.
type FileHandlerConfig struct {
	UploadService *service.UploadService
	FileService   *service.FileService
	Metrics       *Metrics
	Logger        zerolog.Logger
}

// NewFileHandler creates a new file handler.
func NewFileHandler(cfg FileHandlerConfig) *FileHandler {
	return &FileHandler{
		uploadService: cfg.UploadService,
		fileService:   cfg.FileService,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.With().Str("handler", "file").Logger(),
	}
}

// =============================================================================
// Response Structs
// =============================================================================

// listFilesResponse is the envelope for file listings.
type listFilesResponse struct {
	Files []*domain.File `json:"files"`
}

// listTagsResponse is the envelope for tag listings.
type listTagsResponse struct {
	Tags []string `json:"tags"`
}

// updateTagsRequest is the body for tag replacement.
type updateTagsRequest struct {
	Tags []string `json:"tags"`
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers file routes.
func (h *FileHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/upload", h.handleUpload)
	r.Get("/api/files", h.handleList)
	r.Get("/api/files/{name}", h.handleGet)
	r.Delete("/api/files/{name}", h.handleDelete)
	r.Put("/api/files/{name}/tags", h.handleUpdateTags)
	r.Get("/api/tags", h.handleListTags)
}

// =============================================================================
// Handlers
// =============================================================================

// handleUpload accepts a multipart form and streams the file part to
// storage. The form is handed to the service unparsed so oversized
// uploads abort without buffering the body.
func (h *FileHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	form, err := r.MultipartReader()
	if err != nil {
		writeError(w, domain.ErrNoFileProvided)
		return
	}

	output, err := h.uploadService.Upload(r.Context(), service.UploadInput{Form: form})
	if err != nil {
		writeError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ObserveUpload(output.File.Size)
	}

	writeJSON(w, http.StatusOK, output.File)
}

// handleGet serves file content by stored name. The download query flag
// switches the disposition to attachment; a Range header yields a 206.
func (h *FileHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	input := service.GetFileInput{
		StoredName: chi.URLParam(r, "name"),
		Download:   r.URL.Query().Get("download") == "true",
		Range:      parseRangeHeader(r.Header.Get("Range")),
	}

	output, err := h.fileService.GetFile(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	defer output.Body.Close()

	w.Header().Set("Content-Type", output.ContentType)
	w.Header().Set("Content-Disposition", output.Disposition)
	w.Header().Set("Content-Length", strconv.FormatInt(output.ContentLength, 10))
	w.Header().Set("Accept-Ranges", "bytes")

	if output.ContentRange != "" {
		w.Header().Set("Content-Range", output.ContentRange)
		w.WriteHeader(http.StatusPartialContent)
	}

	if _, err := io.Copy(w, output.Body); err != nil {
		// Headers are already sent; all we can do is log.
		h.logger.Debug().Err(err).Str("name", input.StoredName).Msg("response stream interrupted")
	}
}

// handleList returns file metadata, filtered by repeated tag params.
func (h *FileHandler) handleList(w http.ResponseWriter, r *http.Request) {
	output, err := h.fileService.ListFiles(r.Context(), service.ListFilesInput{
		Tags: r.URL.Query()["tag"],
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listFilesResponse{Files: output.Files})
}

// handleDelete removes a file and its metadata.
func (h *FileHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.fileService.DeleteFile(r.Context(), service.DeleteFileInput{
		StoredName: chi.URLParam(r, "name"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateTags replaces a file's tag set.
func (h *FileHandler) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	var req updateTagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "request body must be JSON with a tags array")
		return
	}

	output, err := h.fileService.UpdateTags(r.Context(), service.UpdateTagsInput{
		StoredName: chi.URLParam(r, "name"),
		Tags:       req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, output.File)
}

// handleListTags returns the distinct tags across all files.
func (h *FileHandler) handleListTags(w http.ResponseWriter, r *http.Request) {
	output, err := h.fileService.ListTags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listTagsResponse{Tags: output.Tags})
}

// =============================================================================
// Helpers
// =============================================================================

// parseRangeHeader parses a single-range "bytes=a-b" header. Malformed
// or multi-range values are ignored, falling back to a full response.
func parseRangeHeader(value string) *service.ByteRange {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes=") {
		return nil
	}
	spec := strings.TrimPrefix(value, "bytes=")
	if strings.Contains(spec, ",") {
		return nil
	}

	start, end, ok := strings.Cut(spec, "-")
	if !ok || start == "" {
		return nil
	}

	startN, err := strconv.ParseInt(start, 10, 64)
	if err != nil || startN < 0 {
		return nil
	}

	// Open-ended range: serve from the offset to the end.
	endN := int64(math.MaxInt64)
	if end != "" {
		endN, err = strconv.ParseInt(end, 10, 64)
		if err != nil || endN < startN {
			return nil
		}
	}

	return &service.ByteRange{Start: startN, End: endN}
}
