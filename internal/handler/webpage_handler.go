package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/service"
)

// WebpageHandler handles webpage-save requests.
type WebpageHandler struct {
	webpageService *service.WebpageService
	logger         zerolog.Logger
}

// NewWebpageHandler creates a new webpage handler.
func NewWebpageHandler(webpageService *service.WebpageService, logger zerolog.Logger) *WebpageHandler {
	return &WebpageHandler{
		webpageService: webpageService,
		logger:         logger.With().Str("handler", "webpage").Logger(),
	}
}

// =============================================================================
// Request/Response Structs
// =============================================================================

// saveWebpageRequest is the body for saving a webpage link.
type saveWebpageRequest struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// saveWebpageResponse is the saved descriptor plus an optional warning
// when the title fetch failed softly.
type saveWebpageResponse struct {
	*domain.Webpage
	Warning string `json:"warning,omitempty"`
}

// listWebpagesResponse is the envelope for webpage listings.
type listWebpagesResponse struct {
	Webpages []*domain.Webpage `json:"webpages"`
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers webpage routes.
func (h *WebpageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/save-webpage", h.handleSave)
	r.Get("/api/webpages", h.handleList)
}

// =============================================================================
// Handlers
// =============================================================================

// handleSave persists a webpage link with a best-effort title. Fetch
// failures do not fail the request; they surface as a warning field.
func (h *WebpageHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveWebpageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "request body must be JSON with a url")
		return
	}

	output, err := h.webpageService.SaveWebpage(r.Context(), service.SaveWebpageInput{
		URL:  req.URL,
		Tags: req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, saveWebpageResponse{
		Webpage: output.Page,
		Warning: output.Warning,
	})
}

// handleList returns all saved webpage descriptors.
func (h *WebpageHandler) handleList(w http.ResponseWriter, r *http.Request) {
	output, err := h.webpageService.ListWebpages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listWebpagesResponse{Webpages: output.Pages})
}
