package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pontipilat22/logcompany1/internal/shared/auth"
	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/ws"
)

// NewRouter собирает все HTTP маршруты трекинг-сервиса
func NewRouter(
	h *HTTPHandler,
	hub *ws.Hub,
	jwtService *auth.JWTService,
	registry *prometheus.Registry,
	log *logger.Logger,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// liveness / observability
	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// websocket: токен передается первым сообщением после апгрейда,
	// JWT middleware здесь не участвует
	r.Get("/ws/tracking", hub.ServeWS)

	r.Route("/api/v1/tracking", func(r chi.Router) {
		r.Use(JWTMiddleware(jwtService, log))

		r.Post("/gps", h.handleIngestGps)
		r.Post("/gps/batch", h.handleIngestGpsBatch)

		r.Get("/drivers/active", h.handleActiveDrivers)
		r.Get("/drivers/{driver_id}/position", h.handleLatestPosition)
		r.Get("/orders/{order_id}/track", h.handleOrderTrack)
	})

	log.Info(logger.Entry{
		Action:  "http_routes_registered",
		Message: "Tracking routes registered",
	})
	return r
}
