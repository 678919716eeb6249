package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/repository"
)

// Router assembles the HTTP surface: API routes, health check and the
// optional metrics endpoint.
type Router struct {
	fileHandler    *FileHandler
	webpageHandler *WebpageHandler
	db             repository.DatabaseHealth
	metrics        *Metrics
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	FileHandler    *FileHandler
	WebpageHandler *WebpageHandler
	DB             repository.DatabaseHealth
	Metrics        *Metrics // nil disables /metrics
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		fileHandler:    config.FileHandler,
		webpageHandler: config.WebpageHandler,
		db:             config.DB,
		metrics:        config.Metrics,
		logger:         config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger(rt.logger))
	if rt.metrics != nil {
		r.Use(metricsMiddleware(rt.metrics))
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.handleHealth)

	rt.fileHandler.RegisterRoutes(r)
	rt.webpageHandler.RegisterRoutes(r)

	return r
}

// handleHealth reports liveness, including a metadata database ping.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.db != nil {
		if err := rt.db.Ping(r.Context()); err != nil {
			rt.logger.Error().Err(err).Msg("health check database ping failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
