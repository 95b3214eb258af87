package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"log/slog"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/api/handlers"
	"github.com/avionyx/flightd/pkg/api/middleware"
	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/ws"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// Routes:
//   - GET  /health, /health/ready - probes
//   - POST /auth/register, /auth/login, /auth/authorization_code_flow,
//     /auth/auth_code/rewoke - token flows
//   - GET  /auth/public_key, /auth/verify_authenticated
//   - /v1/vessels/* - vessel lifecycle, permissions, auth codes
//   - /v1/flights/* - flight lifecycle, telemetry queries, bulk reports,
//     commands
//   - POST /v1/users/names - id to display-name resolution
//   - GET  /v1/ws - WebSocket subscriptions
func NewRouter(cfg Config, stores handlers.Stores, tokens *auth.TokenService, bus *events.Bus, hub *ws.Hub, storage handlers.Pinger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	if cfg.MaxBodySize > 0 {
		r.Use(limitBody(int64(cfg.MaxBodySize)))
	}

	healthHandler := handlers.NewHealthHandler(storage)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// The WebSocket endpoint lives outside the request timeout; its
	// connections outlive any single request deadline.
	r.Get("/v1/ws", hub.Handler(tokens.Validate))

	authHandler := handlers.NewAuthHandler(stores, tokens)
	vesselHandler := handlers.NewVesselHandler(stores)
	flightHandler := handlers.NewFlightHandler(stores, bus)
	dataHandler := handlers.NewFlightDataHandler(stores, bus)
	commandHandler := handlers.NewCommandHandler(stores, bus)
	userHandler := handlers.NewUserHandler(stores)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/authorization_code_flow", authHandler.Redeem)
			r.Post("/auth_code/rewoke", authHandler.Revoke)
			r.Get("/public_key", authHandler.PublicKey)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(tokens))
				r.Get("/verify_authenticated", authHandler.Verify)
			})
		})

		// Domain routes resolve the caller once; handlers enforce the
		// per-entity permission levels. Anonymous callers fall back to
		// each entity's no-auth permission.
		r.Route("/v1", func(r chi.Router) {
			r.Use(middleware.OptionalAuth(tokens))

			r.Route("/vessels", func(r chi.Router) {
				r.Get("/", vesselHandler.List)
				r.Post("/", vesselHandler.Create)
				r.Post("/register", vesselHandler.Register)

				r.Route("/{vesselId}", func(r chi.Router) {
					r.Get("/", vesselHandler.Get)
					r.Put("/", vesselHandler.Rename)
					r.Delete("/", vesselHandler.Delete)
					r.Get("/versions/{version}", vesselHandler.GetVersion)
					r.Post("/permissions", vesselHandler.SetPermission)
					r.Post("/auth_codes", vesselHandler.CreateAuthCode)
					r.Get("/auth_codes", vesselHandler.ListAuthCodes)
				})
			})

			r.Route("/flights", func(r chi.Router) {
				r.Get("/", flightHandler.List)
				r.Post("/", flightHandler.Create)

				r.Route("/{flightId}", func(r chi.Router) {
					r.Get("/", flightHandler.Get)
					r.Put("/", flightHandler.Rename)
					r.Delete("/", flightHandler.Delete)
					r.Post("/permissions", flightHandler.SetPermission)

					r.Get("/data", dataHandler.Get)
					r.Post("/data/binary", dataHandler.ReportBinary)

					r.Route("/commands", func(r chi.Router) {
						r.Get("/", commandHandler.GetRange)
						r.Post("/", commandHandler.Dispatch)
						r.Post("/confirm", commandHandler.Confirm)
					})
				})
			})

			r.Post("/users/names", userHandler.GetNames)
		})
	})

	return r
}

// limitBody caps request bodies at max bytes. Reads past the limit fail
// and the connection is closed.
func limitBody(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger logs requests using the internal logger. Healthcheck
// requests are logged at DEBUG level to reduce noise.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.RequestID(requestID),
			slog.String(logger.KeyMethod, r.Method),
			slog.String(logger.KeyPath, r.URL.Path),
			slog.String(logger.KeyClientIP, r.RemoteAddr),
		)

		// Wrap response writer to capture status code
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			logger.RequestID(requestID),
			slog.String(logger.KeyMethod, r.Method),
			slog.String(logger.KeyPath, r.URL.Path),
			slog.Int(logger.KeyStatus, ww.Status()),
			logger.DurationMs(logger.Duration(start)),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
