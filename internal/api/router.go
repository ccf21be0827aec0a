package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fastchat/relay/internal/metrics"
	"github.com/fastchat/relay/internal/server"
	"github.com/fastchat/relay/internal/store"
)

// Handler serves the REST surface. The presence store may be nil, in
// which case the presence resources answer 503.
type Handler struct {
	ws       *server.Handler
	presence *store.Store
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// New creates a Handler.
func New(ws *server.Handler, presence *store.Store, collector *metrics.Collector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ws:       ws,
		presence: presence,
		metrics:  collector,
		logger:   logger,
	}
}

// NewRouter wires all HTTP routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Get("/health/db", h.handleHealthDB)
	r.Get("/ws/status", h.handleWSStatus)
	r.Handle("/ws", h.ws)

	r.Route("/api", func(api chi.Router) {
		api.Get("/metrics", h.handleMetrics)
		api.Post("/metrics/reset", h.handleMetricsReset)

		api.Route("/presence", func(p chi.Router) {
			p.Post("/heartbeat", h.handleHeartbeat)
			p.Get("/online", h.handleOnline)
			p.Delete("/cleanup", h.handleCleanup)
		})
	})

	return r
}
