package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/screenscape/sync-server-go/internal/config"
	"github.com/screenscape/sync-server-go/internal/middleware"
)

type RouterDeps struct {
	Link   *LinkHandler
	Sync   *SyncHandler
	User   *UserHandler
	Events *EventsHandler

	DeviceAuth      *middleware.DeviceAuthMiddleware
	LinkRateLimit   *middleware.IPRateLimitMiddleware
	BodyLimit       *middleware.BodyLimitMiddleware
	SecurityHeaders *middleware.SecurityHeadersMiddleware
	CORS            *middleware.CORSMiddleware

	// HealthCheck is optional; a failing check turns /health into a 503.
	HealthCheck func(ctx context.Context) error
	Metrics     http.Handler
}

func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(deps.CORS.Handler)
	r.Use(deps.SecurityHeaders.Handler)

	r.Get("/health", healthHandler(deps.HealthCheck))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(deps.BodyLimit.Handler)

		r.Route("/api/link", func(r chi.Router) {
			r.Use(deps.LinkRateLimit.Handler)
			r.Mount("/", deps.Link.Routes())
		})

		r.Mount("/api/sync", deps.Sync.Routes())
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(deps.DeviceAuth.Handler)

		// Streams outlive the request timeout.
		r.Get("/events", deps.Events.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Use(deps.BodyLimit.Handler)
			r.Mount("/", deps.User.Routes())
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), config.StorePingTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				log.Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status":    "unavailable",
					"timestamp": time.Now().UnixMilli(),
				})
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	}
}
